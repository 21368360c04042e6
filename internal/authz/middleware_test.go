package authz

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crewhub/crewhub/internal/permissions"
	"github.com/crewhub/crewhub/internal/roles"
	"github.com/crewhub/crewhub/internal/shared"
)

func newGuardedServer(t *testing.T, guard func(http.Handler) http.Handler) http.Handler {
	t.Helper()
	return guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func requestAs(staffID int64) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if staffID > 0 {
		req = req.WithContext(shared.ContextWithActor(context.Background(), staffID))
	}
	return req
}

func TestRequirePermissionRejectsAnonymousFirst(t *testing.T) {
	repo := newMemoryRepository()
	mw := Middleware{Service: NewService(repo, nil), Logger: slog.Default()}
	handler := newGuardedServer(t, mw.RequirePermission("roles.view"))

	// No actor: 401 even though the permission check would also fail.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(0))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequirePermissionForbidsMissingPermission(t *testing.T) {
	repo := newMemoryRepository()
	repo.direct[1] = []permissions.Permission{perm(1, "dashboard.view")}
	mw := Middleware{Service: NewService(repo, nil), Logger: slog.Default()}
	handler := newGuardedServer(t, mw.RequirePermission("roles.view"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(1))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequirePermissionAllowsAnyMatch(t *testing.T) {
	repo := newMemoryRepository()
	repo.direct[1] = []permissions.Permission{perm(1, "roles.view")}
	mw := Middleware{Service: NewService(repo, nil), Logger: slog.Default()}
	handler := newGuardedServer(t, mw.RequirePermission("roles.view", "roles.manage"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(1))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAllPermissions(t *testing.T) {
	repo := newMemoryRepository()
	repo.direct[1] = []permissions.Permission{perm(1, "a.b")}
	mw := Middleware{Service: NewService(repo, nil), Logger: slog.Default()}
	handler := newGuardedServer(t, mw.RequireAllPermissions("a.b", "c.d"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(1))
	require.Equal(t, http.StatusForbidden, rec.Code)

	repo.direct[1] = append(repo.direct[1], perm(2, "c.d"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(1))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole(t *testing.T) {
	repo := newMemoryRepository()
	repo.staffRoles[1] = []roles.Role{{ID: 10, Name: "manager", Hierarchy: 50}}
	mw := Middleware{Service: NewService(repo, nil), Logger: slog.Default()}
	handler := newGuardedServer(t, mw.RequireRole("admin", "manager"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(1))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(2))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestEmptyRequirementPassesThrough(t *testing.T) {
	mw := Middleware{Service: NewService(newMemoryRepository(), nil), Logger: slog.Default()}
	handler := newGuardedServer(t, mw.RequirePermission())

	// Anonymous request passes: there is nothing to enforce.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(0))
	require.Equal(t, http.StatusOK, rec.Code)
}
