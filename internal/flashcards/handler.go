package flashcards

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/synergyos/synergyos/internal/platform/httpx"
	"github.com/synergyos/synergyos/internal/rbac"
	"github.com/synergyos/synergyos/internal/shared"
)

// Handler serves the flashcard API for the authenticated user.
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

// MountRoutes registers flashcard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.Authenticate)
	r.With(h.rbac.RequireAll(rbac.Unscoped, shared.PermFlashcardView)).Get("/stats", h.stats)
	r.With(h.rbac.RequireAll(rbac.Unscoped, shared.PermFlashcardView)).Get("/due", h.due)
	r.With(h.rbac.RequireAll(rbac.Unscoped, shared.PermFlashcardEdit)).Post("/", h.create)
}

type createRequest struct {
	Question string     `json:"question" validate:"required,max=4000"`
	Answer   string     `json:"answer" validate:"required,max=4000"`
	FSRSDue  *time.Time `json:"fsrsDue"`
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserFromContext(r.Context())
	stats, err := h.service.GetFlashcardStats(r.Context(), userID)
	if err != nil {
		h.logger.Error("flashcard stats", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) due(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserFromContext(r.Context())
	cards, err := h.service.ListDue(r.Context(), userID)
	if err != nil {
		h.logger.Error("flashcards due", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cards": cards})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	userID, _ := shared.UserFromContext(r.Context())
	card, err := h.service.Create(r.Context(), userID, NewCard(req))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, card)
}
