package roles

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/crewhub/crewhub/internal/platform/httpx"
	"github.com/crewhub/crewhub/internal/shared"
)

// Handler wires HTTP endpoints for the role registry.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers role routes. view guards read access, manage
// guards mutations; either may be nil.
func (h *Handler) MountRoutes(r chi.Router, view, manage func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		if view != nil {
			r.Use(view)
		}
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/permissions", h.permissions)
	})
	r.Group(func(r chi.Router) {
		if manage != nil {
			r.Use(manage)
		}
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Put("/{id}/permissions", h.syncPermissions)
		r.Post("/{id}/permissions", h.grantPermissions)
		r.Delete("/{id}/permissions", h.revokePermissions)
	})
}

type rolePayload struct {
	Name        string  `json:"name" validate:"required"`
	DisplayName string  `json:"display_name"`
	Description string  `json:"description"`
	Level       string  `json:"level"`
	Hierarchy   int     `json:"hierarchy" validate:"gte=0,lte=1000"`
	IsDefault   bool    `json:"is_default"`
	Permissions []int64 `json:"permissions"`
}

type rolePatch struct {
	DisplayName *string  `json:"display_name"`
	Description *string  `json:"description"`
	Level       *string  `json:"level"`
	Hierarchy   *int     `json:"hierarchy"`
	IsDefault   *bool    `json:"is_default"`
	Permissions *[]int64 `json:"permissions"`
}

type permissionSetPayload struct {
	Permissions []int64 `json:"permissions" validate:"required"`
}

type roleResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Level       string `json:"level"`
	Hierarchy   int    `json:"hierarchy"`
	IsSystem    bool   `json:"is_system"`
	IsEditable  bool   `json:"is_editable"`
	IsDefault   bool   `json:"is_default"`
}

func toResponse(role Role) roleResponse {
	return roleResponse{
		ID:          role.ID,
		Name:        role.Name,
		DisplayName: role.DisplayName,
		Description: role.Description,
		Level:       string(role.Level),
		Hierarchy:   role.Hierarchy,
		IsSystem:    role.IsSystem,
		IsEditable:  role.IsEditable,
		IsDefault:   role.IsDefault,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		items = append(items, toResponse(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload rolePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	role, err := h.service.Create(r.Context(), CreateInput{
		Name:        payload.Name,
		DisplayName: payload.DisplayName,
		Description: payload.Description,
		Level:       Level(payload.Level),
		Hierarchy:   payload.Hierarchy,
		IsDefault:   payload.IsDefault,
		Permissions: payload.Permissions,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(role))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(role))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var patch rolePatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	in := UpdateInput{
		DisplayName: patch.DisplayName,
		Description: patch.Description,
		Hierarchy:   patch.Hierarchy,
		IsDefault:   patch.IsDefault,
		Permissions: patch.Permissions,
	}
	if patch.Level != nil {
		level := Level(*patch.Level)
		in.Level = &level
	}
	role, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(role))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) permissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	perms, err := h.service.Permissions(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": perms})
}

func (h *Handler) syncPermissions(w http.ResponseWriter, r *http.Request) {
	h.mutatePermissions(w, r, h.service.SyncPermissions)
}

func (h *Handler) grantPermissions(w http.ResponseWriter, r *http.Request) {
	h.mutatePermissions(w, r, h.service.GrantPermissions)
}

func (h *Handler) revokePermissions(w http.ResponseWriter, r *http.Request) {
	h.mutatePermissions(w, r, h.service.RevokePermissions)
}

func (h *Handler) mutatePermissions(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64, ids []int64) error) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload permissionSetPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := op(r.Context(), id, payload.Permissions); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.ErrValidation
	}
	return id, nil
}
