package authz

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/crewhub/crewhub/internal/platform/httpx"
	"github.com/crewhub/crewhub/internal/shared"
)

// Handler exposes introspection endpoints for the current actor.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers introspection routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me/permissions", h.myPermissions)
	r.Get("/me/breakdown", h.myBreakdown)
	r.Get("/me/can-manage/{id}", h.canManage)
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	staffID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	perms, err := h.service.EffectivePermissions(r.Context(), staffID)
	if err != nil {
		h.logger.Error("effective permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.Name)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": names})
}

func (h *Handler) myBreakdown(w http.ResponseWriter, r *http.Request) {
	staffID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	b, err := h.service.Breakdown(r.Context(), staffID)
	if err != nil {
		h.logger.Error("permission breakdown", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) canManage(w http.ResponseWriter, r *http.Request) {
	staffID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	targetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || targetID <= 0 {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	allowed, err := h.service.CanManage(r.Context(), staffID, targetID)
	if err != nil {
		h.logger.Error("can manage", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"can_manage": allowed})
}
