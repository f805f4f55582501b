package policies

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/synergyos/synergyos/internal/platform/httpx"
	"github.com/synergyos/synergyos/internal/session"
)

// Handler serves GET /api/policies.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	cookieName string
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, cookieName string) *Handler {
	return &Handler{logger: logger, service: service, cookieName: cookieName}
}

// MountRoutes registers policy routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	sessionID := session.FromRequest(r, h.cookieName)
	policies, err := h.service.ListWorkspacePolicies(r.Context(), sessionID, r.URL.Query().Get("workspace"))
	if err != nil {
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("list policies", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"policies": policies})
}
