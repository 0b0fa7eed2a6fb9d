package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-hr/gatekeeper/internal/auth"
	"github.com/odyssey-hr/gatekeeper/internal/authz"
	"github.com/odyssey-hr/gatekeeper/internal/edge"
	"github.com/odyssey-hr/gatekeeper/internal/observability"
	"github.com/odyssey-hr/gatekeeper/internal/platform/httpx"
	"github.com/odyssey-hr/gatekeeper/internal/shared"
	"github.com/odyssey-hr/gatekeeper/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	AuthHandler    *auth.Handler
	Authz          authz.Middleware
	Gate           *edge.Gate
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
	// Pages serves everything that is not an API route. Nil renders 404.
	Pages http.Handler
}

// NewRouter constructs the chi.Router with gatekeeper defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	if !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Post("/clear-cookies", params.AuthHandler.ClearCookies)
		if params.Authz.Engine != nil {
			r.With(params.AuthHandler.DropRevoked).Get("/authz/check", params.Authz.Check)
		}
		r.NotFound(httpx.NotFound)
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	pages := params.Pages
	if pages == nil {
		pages = http.HandlerFunc(httpx.NotFound)
	}
	if params.Authz.Engine != nil {
		pages = params.AuthHandler.DropRevoked(params.Authz.Enforce(pages))
	}
	if params.Gate != nil {
		pages = params.Gate.Middleware(pages)
	}
	r.Handle("/", pages)
	r.Handle("/*", pages)

	return r
}
