package rbac

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/synergyos/synergyos/internal/platform/httpx"
	"github.com/synergyos/synergyos/internal/session"
	"github.com/synergyos/synergyos/internal/shared"
)

// ScopeFunc extracts the authorization scope from a request.
type ScopeFunc func(*http.Request) string

// Unscoped checks permissions without a scope.
func Unscoped(*http.Request) string { return "" }

// ScopeFromURLParam scopes checks to a chi route parameter.
func ScopeFromURLParam(name string) ScopeFunc {
	return func(r *http.Request) string { return chi.URLParam(r, name) }
}

// ScopeFromQuery scopes checks to a query string value.
func ScopeFromQuery(name string) ScopeFunc {
	return func(r *http.Request) string { return r.URL.Query().Get(name) }
}

// Middleware wires session authentication and RBAC authorization for HTTP handlers.
type Middleware struct {
	Sessions   SessionResolver
	Authority  *Authority
	Logger     *slog.Logger
	CookieName string
}

// Authenticate resolves the request's session and stores the user id in
// the request context. Requests without a valid session stop here.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := session.FromRequest(r, m.CookieName)
		userID, err := m.Sessions.Resolve(r.Context(), sessionID)
		if err != nil {
			if !errors.Is(err, shared.ErrUnauthenticated) && m.Logger != nil {
				m.Logger.Error("resolve session", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		ctx := shared.ContextWithSessionID(r.Context(), sessionID)
		ctx = shared.ContextWithUser(ctx, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAny ensures the current user has at least one of the required permissions in scope.
func (m Middleware) RequireAny(scope ScopeFunc, perms ...string) func(http.Handler) http.Handler {
	return m.require("rbac require any", scope, normalizePermissions(perms), hasAnyPermission)
}

// RequireAll ensures the current user has all required permissions in scope.
func (m Middleware) RequireAll(scope ScopeFunc, perms ...string) func(http.Handler) http.Handler {
	return m.require("rbac require all", scope, normalizePermissions(perms), hasAllPermissions)
}

func (m Middleware) require(op string, scope ScopeFunc, normalized []string, allowed func(map[string]bool, []string) bool) func(http.Handler) http.Handler {
	if scope == nil {
		scope = Unscoped
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			userID, ok := shared.UserFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			decisions, err := m.Authority.Decide(r.Context(), userID, scope(r), normalized...)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error(op, slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			if allowed(decisions, normalized) {
				next.ServeHTTP(w, r)
				return
			}
			httpx.RespondError(w, shared.ErrForbidden)
		})
	}
}
