package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewhub/crewhub/internal/authz"
	"github.com/crewhub/crewhub/internal/observability"
	"github.com/crewhub/crewhub/internal/permissions"
	"github.com/crewhub/crewhub/internal/roles"
	"github.com/crewhub/crewhub/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	PermissionsHandler *permissions.Handler
	RolesHandler       *roles.Handler
	UsersHandler       *users.Handler
	AuthzHandler       *authz.Handler
	Guards             authz.Middleware
	Pool               *pgxpool.Pool
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with CrewHub defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Pool != nil {
			if err := params.Pool.Ping(req.Context()); err != nil {
				params.Logger.Error("readiness probe", slog.Any("error", err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	guards := params.Guards

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/permissions", func(pr chi.Router) {
			params.PermissionsHandler.MountRoutes(pr,
				guards.RequirePermission("permissions.view", permissions.ManageName),
				guards.RequirePermission(permissions.ManageName))
		})

		api.Route("/roles", func(rr chi.Router) {
			params.RolesHandler.MountRoutes(rr,
				guards.RequirePermission("roles.view", "roles.manage"),
				guards.RequirePermission("roles.manage"))
		})

		api.Route("/staff", func(sr chi.Router) {
			params.UsersHandler.MountRoutes(sr,
				guards.RequirePermission("staff.view", "staff.manage"),
				guards.RequirePermission("staff.manage"))
		})

		// Self-service endpoints resolve the actor from context and
		// reject anonymous callers themselves.
		params.AuthzHandler.MountRoutes(api)
	})

	return r
}
