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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-hr/gatekeeper/internal/app"
	"github.com/odyssey-hr/gatekeeper/internal/edge"
	"github.com/odyssey-hr/gatekeeper/internal/observability"
	"github.com/odyssey-hr/gatekeeper/internal/platform/httpx"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping edge startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := edge.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(&app.Config{LogFormat: cfg.LogFormat})

	upstream, err := httpx.NewReverseProxy(cfg.UpstreamURL, logger)
	if err != nil {
		logger.Error("init upstream proxy", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	gate := edge.NewGate(cfg.SessionCookie)
	gate.Recorder = metrics

	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.RequestID, middleware.Recoverer, metrics.Middleware)
	r.Get("/_edge/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/_edge/metrics", metrics.Handler())
	r.Handle("/*", gate.Middleware(upstream))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting edge", slog.String("addr", cfg.Addr), slog.String("upstream", cfg.UpstreamURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("edge server", slog.Any("error", err))
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
