package permissions

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/crewhub/crewhub/internal/platform/httpx"
	"github.com/crewhub/crewhub/internal/shared"
)

// Handler wires HTTP endpoints for the permission catalog.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	elevation func(r *http.Request) bool
	validator *validator.Validate
}

// NewHandler constructs a Handler instance. elevation decides whether the
// request's actor may see the reserved admins module.
func NewHandler(logger *slog.Logger, service *Service, elevation func(r *http.Request) bool) *Handler {
	return &Handler{logger: logger, service: service, elevation: elevation, validator: validator.New()}
}

// MountRoutes registers catalog routes. view guards read access, manage
// guards mutations; either may be nil.
func (h *Handler) MountRoutes(r chi.Router, view, manage func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		if view != nil {
			r.Use(view)
		}
		r.Get("/", h.list)
		r.Get("/modules", h.listModules)
		r.Get("/groups", h.listGroups)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		if manage != nil {
			r.Use(manage)
		}
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/groups", h.createGroup)
		r.Put("/groups/{id}", h.updateGroup)
		r.Delete("/groups/{id}", h.deleteGroup)
	})
}

type permissionPayload struct {
	Name        string            `json:"name" validate:"required"`
	DisplayName string            `json:"display_name"`
	Description string            `json:"description"`
	Module      string            `json:"module"`
	GroupID     *int64            `json:"permission_group_id"`
	Guard       string            `json:"guard"`
	Order       int               `json:"order"`
	Metadata    map[string]string `json:"metadata"`
}

type permissionResponse struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Description string            `json:"description"`
	Module      string            `json:"module"`
	GroupID     *int64            `json:"permission_group_id,omitempty"`
	Guard       string            `json:"guard"`
	IsCore      bool              `json:"is_core"`
	Order       int               `json:"order"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func toResponse(p Permission) permissionResponse {
	return permissionResponse{
		ID:          p.ID,
		Name:        p.Name,
		DisplayName: p.DisplayName,
		Description: p.Description,
		Module:      p.Module,
		GroupID:     p.GroupID,
		Guard:       p.Guard,
		IsCore:      p.IsCore,
		Order:       p.Order,
		Metadata:    p.Metadata,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters := parseFilters(r)
	perms, total, err := h.service.List(r.Context(), h.elevated(r), filters)
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		items = append(items, toResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (h *Handler) listModules(w http.ResponseWriter, r *http.Request) {
	modules, err := h.service.ListModules(r.Context(), h.elevated(r))
	if err != nil {
		h.logger.Error("list modules", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"modules": modules})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload permissionPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	p, err := h.service.Create(r.Context(), CreateInput{
		Name:        payload.Name,
		DisplayName: payload.DisplayName,
		Description: payload.Description,
		Module:      payload.Module,
		GroupID:     payload.GroupID,
		Guard:       payload.Guard,
		Order:       payload.Order,
		Metadata:    payload.Metadata,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(p))
}

type permissionPatch struct {
	Name        *string           `json:"name"`
	DisplayName *string           `json:"display_name"`
	Description *string           `json:"description"`
	Module      *string           `json:"module"`
	GroupID     *int64            `json:"permission_group_id"`
	Guard       *string           `json:"guard"`
	Order       *int              `json:"order"`
	Metadata    map[string]string `json:"metadata"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var patch permissionPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	p, err := h.service.Update(r.Context(), id, UpdateInput{
		Name:        patch.Name,
		DisplayName: patch.DisplayName,
		Description: patch.Description,
		Module:      patch.Module,
		GroupID:     patch.GroupID,
		Guard:       patch.Guard,
		Order:       patch.Order,
		Metadata:    patch.Metadata,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(p))
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

type groupPayload struct {
	Name     string `json:"name" validate:"required"`
	Icon     string `json:"icon"`
	Color    string `json:"color"`
	IsActive bool   `json:"active"`
	Order    int    `json:"order"`
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.ListGroups(r.Context())
	if err != nil {
		h.logger.Error("list permission groups", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": groups})
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var payload groupPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	g, err := h.service.CreateGroup(r.Context(), GroupInput{
		Name:     payload.Name,
		Icon:     payload.Icon,
		Color:    payload.Color,
		IsActive: payload.IsActive,
		Order:    payload.Order,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, g)
}

func (h *Handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload groupPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	g, err := h.service.UpdateGroup(r.Context(), id, GroupInput{
		Name:     payload.Name,
		Icon:     payload.Icon,
		Color:    payload.Color,
		IsActive: payload.IsActive,
		Order:    payload.Order,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, g)
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteGroup(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) elevated(r *http.Request) bool {
	if h.elevation == nil {
		return false
	}
	return h.elevation(r)
}

func parseFilters(r *http.Request) shared.ListFilters {
	q := r.URL.Query()
	filters := shared.ListFilters{
		Search: q.Get("search"),
		Module: q.Get("module"),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		filters.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filters.Limit = limit
	}
	if gid, err := strconv.ParseInt(q.Get("group"), 10, 64); err == nil {
		filters.GroupID = &gid
	}
	if raw := q.Get("is_core"); raw != "" {
		core := raw == "true" || raw == "1"
		filters.IsCore = &core
	}
	return filters
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.ErrValidation
	}
	return id, nil
}
