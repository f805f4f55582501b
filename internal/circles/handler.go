package circles

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/synergyos/synergyos/internal/platform/httpx"
	"github.com/synergyos/synergyos/internal/rbac"
	"github.com/synergyos/synergyos/internal/shared"
)

// Handler serves the circle API. Routes expect rbac.Middleware.Authenticate upstream.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: mw, validator: validator.New()}
}

// MountRoutes registers circle routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAll(rbac.ScopeFromQuery("workspace"), shared.PermCircleView)).Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.With(h.rbac.RequireAll(rbac.ScopeFromURLParam("id"), shared.PermCircleView)).Get("/", h.get)
		r.Patch("/", h.update)
		r.Post("/move", h.move)
		r.Delete("/", h.archive)
		r.Get("/history", h.history)
	})
}

type createRequest struct {
	WorkspaceID    string `json:"workspaceId" validate:"required,max=120"`
	Name           string `json:"name" validate:"required,max=200"`
	Purpose        string `json:"purpose" validate:"max=2000"`
	ParentCircleID string `json:"parentCircleId"`
}

type updateRequest struct {
	Name    *string `json:"name" validate:"omitempty,max=200"`
	Purpose *string `json:"purpose" validate:"omitempty,max=2000"`
}

type moveRequest struct {
	ParentCircleID string `json:"parentCircleId"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace")
	if workspaceID == "" {
		httpx.RespondError(w, fmt.Errorf("%w: workspace is required", shared.ErrValidation))
		return
	}
	circles, err := h.service.ListByWorkspace(r.Context(), workspaceID)
	if err != nil {
		h.fail(w, "list circles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"circles": circles})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	circle, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get circle", err)
		return
	}
	httpx.JSON(w, http.StatusOK, circle)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	circle, err := h.service.Create(r.Context(), actor(r), CreateInput(req))
	if err != nil {
		h.fail(w, "create circle", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, circle)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}
	circle, err := h.service.Update(r.Context(), actor(r), chi.URLParam(r, "id"), UpdateInput(req))
	if err != nil {
		h.fail(w, "update circle", err)
		return
	}
	httpx.JSON(w, http.StatusOK, circle)
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !h.decode(w, r, &req) {
		return
	}
	circle, err := h.service.Move(r.Context(), actor(r), chi.URLParam(r, "id"), req.ParentCircleID)
	if err != nil {
		h.fail(w, "move circle", err)
		return
	}
	httpx.JSON(w, http.StatusOK, circle)
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	circle, err := h.service.Archive(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "archive circle", err)
		return
	}
	httpx.JSON(w, http.StatusOK, circle)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.History(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "circle history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": records})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func actor(r *http.Request) string {
	userID, _ := shared.UserFromContext(r.Context())
	return userID
}
