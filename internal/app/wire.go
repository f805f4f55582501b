package app

import (
	"log/slog"
	"net/http"

	"github.com/synergyos/synergyos/internal/circles"
	"github.com/synergyos/synergyos/internal/flashcards"
	"github.com/synergyos/synergyos/internal/observability"
	"github.com/synergyos/synergyos/internal/platform/docstore"
	"github.com/synergyos/synergyos/internal/policies"
	"github.com/synergyos/synergyos/internal/rbac"
	"github.com/synergyos/synergyos/jobs"
)

// Deps are the external resources the services are built on.
type Deps struct {
	Logger   *slog.Logger
	Config   *Config
	Docs     docstore.Store
	Sessions rbac.SessionResolver
	Metrics  *observability.Metrics
}

// Services holds the wired domain services.
type Services struct {
	deps       Deps
	Roles      *rbac.Store
	Authority  *rbac.Authority
	Guard      *rbac.Guard
	Circles    *circles.Service
	Flashcards *flashcards.Service
	Policies   *policies.Service
	Middleware rbac.Middleware
}

// NewServices wires the domain services over deps.
func NewServices(deps Deps) *Services {
	roles := rbac.NewStore(deps.Docs)
	authority := rbac.NewAuthority(roles)
	if deps.Metrics != nil {
		authority = authority.WithObserver(deps.Metrics)
	}
	cookie := ""
	if deps.Config != nil {
		cookie = deps.Config.SessionCookie
	}
	return &Services{
		deps:       deps,
		Roles:      roles,
		Authority:  authority,
		Guard:      rbac.NewGuard(deps.Sessions, authority),
		Circles:    circles.NewService(deps.Docs, circles.NewRecorder(deps.Docs), authority),
		Flashcards: flashcards.NewService(deps.Docs),
		Policies:   policies.NewService(deps.Sessions, deps.Docs, NewSettings(deps.Config)),
		Middleware: rbac.Middleware{
			Sessions:   deps.Sessions,
			Authority:  authority,
			Logger:     deps.Logger,
			CookieName: cookie,
		},
	}
}

// Handler builds the HTTP handler tree. jobHandler may be nil.
func (s *Services) Handler(jobHandler *jobs.Handler) http.Handler {
	logger := s.deps.Logger
	return NewRouter(RouterParams{
		Logger:           logger,
		Config:           s.deps.Config,
		Metrics:          s.deps.Metrics,
		RBACMiddleware:   s.Middleware,
		RBACHandler:      rbac.NewHandler(logger, s.Roles, s.Authority, s.Guard, s.Middleware),
		CircleHandler:    circles.NewHandler(logger, s.Circles, s.Middleware),
		FlashcardHandler: flashcards.NewHandler(logger, s.Flashcards, s.Middleware),
		PolicyHandler:    policies.NewHandler(logger, s.Policies, s.Middleware.CookieName),
		JobHandler:       jobHandler,
	})
}
