package authz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/crewhub/crewhub/internal/platform/httpx"
	"github.com/crewhub/crewhub/internal/shared"
)

// Middleware wires authorization guards for HTTP handlers. Both guards are
// pure functions of actor state and a static requirement list; the actor
// presence check always runs before any permission or role lookup.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequirePermission ensures the current actor has at least one of the
// required permissions (OR semantics).
func (m Middleware) RequirePermission(perms ...string) func(http.Handler) http.Handler {
	return m.guard(perms, m.Service.AuthorizePermission)
}

// RequireAllPermissions ensures the current actor holds every required
// permission.
func (m Middleware) RequireAllPermissions(perms ...string) func(http.Handler) http.Handler {
	return m.guard(perms, m.Service.AuthorizeAllPermissions)
}

// RequireRole ensures the current actor holds at least one of the required
// roles (OR semantics).
func (m Middleware) RequireRole(names ...string) func(http.Handler) http.Handler {
	return m.guard(names, m.Service.AuthorizeRole)
}

func (m Middleware) guard(required []string, authorize func(context.Context, int64, ...string) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			staffID, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			if err := authorize(r.Context(), staffID, required...); err != nil {
				if !errors.Is(err, shared.ErrForbidden) && m.Logger != nil {
					m.Logger.Error("authz guard", slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
