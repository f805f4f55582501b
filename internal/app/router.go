package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/synergyos/synergyos/internal/circles"
	"github.com/synergyos/synergyos/internal/flashcards"
	"github.com/synergyos/synergyos/internal/observability"
	"github.com/synergyos/synergyos/internal/platform/httpx"
	"github.com/synergyos/synergyos/internal/policies"
	"github.com/synergyos/synergyos/internal/rbac"
	"github.com/synergyos/synergyos/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Metrics          *observability.Metrics
	RBACMiddleware   rbac.Middleware
	RBACHandler      *rbac.Handler
	CircleHandler    *circles.Handler
	FlashcardHandler *flashcards.Handler
	PolicyHandler    *policies.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with SynergyOS defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	LegacyRedirects(r)

	r.Route("/api", func(r chi.Router) {
		if params.RBACHandler != nil {
			params.RBACHandler.MountRoutes(r)
		}
		if params.CircleHandler != nil {
			r.Route("/circles", func(r chi.Router) {
				r.Use(params.RBACMiddleware.Authenticate)
				params.CircleHandler.MountRoutes(r)
			})
		}
		if params.FlashcardHandler != nil {
			r.Route("/flashcards", params.FlashcardHandler.MountRoutes)
		}
		if params.PolicyHandler != nil {
			r.Route("/policies", params.PolicyHandler.MountRoutes)
		}
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
