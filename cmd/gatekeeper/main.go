package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-hr/gatekeeper/internal/app"
	"github.com/odyssey-hr/gatekeeper/internal/auth"
	"github.com/odyssey-hr/gatekeeper/internal/authz"
	"github.com/odyssey-hr/gatekeeper/internal/cryptobox"
	"github.com/odyssey-hr/gatekeeper/internal/edge"
	"github.com/odyssey-hr/gatekeeper/internal/issuer"
	"github.com/odyssey-hr/gatekeeper/internal/observability"
	"github.com/odyssey-hr/gatekeeper/internal/platform/cache"
	"github.com/odyssey-hr/gatekeeper/internal/platform/db"
	"github.com/odyssey-hr/gatekeeper/internal/platform/httpx"
	"github.com/odyssey-hr/gatekeeper/internal/shared"
	"github.com/odyssey-hr/gatekeeper/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	box, err := cryptobox.Select(cfg.CryptoBackend, cfg.SessionSecret)
	if err != nil {
		logger.Error("init crypto box", slog.Any("error", err))
		os.Exit(1)
	}

	if err := db.Migrate(ctx, cfg.PGDSN); err != nil {
		logger.Error("migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	sessionManager := shared.NewSessionManager(box, shared.SessionOptions{
		Names:       shared.CookieNames{Session: cfg.SessionCookie},
		Secure:      cfg.IsProduction(),
		SessionTTL:  cfg.SessionTTL,
		RefreshTTL:  cfg.RefreshTTL,
		MultiTenant: cfg.MultiTenant,
		Logger:      logger,
		Recorder:    metrics,
	})
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	issuerClient := issuer.NewClient(cfg.IssuerURL, cfg.IssuerTimeout)
	var revoker auth.Revoker = issuerClient
	if cfg.RevokeAsync {
		jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, box)
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		revoker = jobClient
	}

	authService := auth.NewService(issuerClient, sessionManager, auth.Options{
		Repo:           auth.NewRepository(dbpool),
		Revocations:    auth.NewRevocationList(redisClient),
		Revoker:        revoker,
		RefreshTimeout: cfg.RefreshTimeout,
		Skew:           cfg.TokenExpirySkew,
		Logger:         logger,
		Recorder:       metrics,
	})
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager, cfg.SignInRateLimit)

	gate := edge.NewGate(cfg.SessionCookie)
	gate.Recorder = metrics

	var pages http.Handler
	if cfg.FrontendURL != "" {
		pages, err = httpx.NewReverseProxy(cfg.FrontendURL, logger)
		if err != nil {
			logger.Error("init page proxy", slog.Any("error", err))
			os.Exit(1)
		}
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		AuthHandler:    authHandler,
		Authz: authz.Middleware{
			Engine:   authz.NewEngine(authz.DefaultPolicy()),
			Logger:   logger,
			Recorder: metrics,
		},
		Gate:       gate,
		JobHandler: jobs.NewHandler(inspector, logger),
		Metrics:    metrics,
		Pages:      pages,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.Bool("revoke_async", cfg.RevokeAsync))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
