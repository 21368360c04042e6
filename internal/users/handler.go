package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/crewhub/crewhub/internal/platform/httpx"
	"github.com/crewhub/crewhub/internal/shared"
)

// Handler wires HTTP endpoints for staff account management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers staff routes. view guards read access, manage
// guards role and permission link mutations; either may be nil.
func (h *Handler) MountRoutes(r chi.Router, view, manage func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		if view != nil {
			r.Use(view)
		}
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		if manage != nil {
			r.Use(manage)
		}
		r.Post("/{id}/roles", h.assignRole)
		r.Delete("/{id}/roles/{roleID}", h.removeRole)
		r.Post("/{id}/permissions", h.grantPermission)
		r.Delete("/{id}/permissions/{permissionID}", h.revokePermission)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	staff, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list staff", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": staff})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	s, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

type assignRolePayload struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload assignRolePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.service.AssignRole(r.Context(), id, payload.RoleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	roleID, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RemoveRole(r.Context(), id, roleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

type grantPermissionPayload struct {
	PermissionID int64 `json:"permission_id" validate:"required,gt=0"`
}

func (h *Handler) grantPermission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload grantPermissionPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.service.GrantPermission(r.Context(), id, payload.PermissionID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) revokePermission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	permissionID, err := pathID(r, "permissionID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RevokePermission(r.Context(), id, permissionID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.ErrValidation
	}
	return id, nil
}
