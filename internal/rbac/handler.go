package rbac

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/synergyos/synergyos/internal/platform/httpx"
	"github.com/synergyos/synergyos/internal/session"
	"github.com/synergyos/synergyos/internal/shared"
)

// Handler exposes permission checks and role administration over HTTP.
type Handler struct {
	logger     *slog.Logger
	store      *Store
	authority  *Authority
	guard      *Guard
	rbac       Middleware
	validator  *validator.Validate
	cookieName string
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, store *Store, authority *Authority, guard *Guard, rbac Middleware) *Handler {
	return &Handler{
		logger:     logger,
		store:      store,
		authority:  authority,
		guard:      guard,
		rbac:       rbac,
		validator:  validator.New(),
		cookieName: rbac.CookieName,
	}
}

// MountRoutes registers RBAC routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/permissions/check", h.check)
	r.Post("/permissions/gate", h.gate)

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Authenticate)
		r.Get("/me/roles", h.myRoles)
		r.With(h.rbac.RequireAll(Unscoped, shared.PermPermissionView)).Get("/permissions", h.listPermissions)
		r.With(h.rbac.RequireAll(Unscoped, shared.PermRoleView)).Get("/roles", h.listRoles)
		r.With(h.rbac.RequireAll(Unscoped, shared.PermRoleCreate)).Post("/roles", h.createRole)
		r.Post("/roles/{roleID}/assignments", h.grant)
		r.Delete("/roles/{roleID}/assignments", h.revoke)
		r.With(h.rbac.RequireAll(Unscoped, shared.PermWorkspaceAdmin)).Post("/admin/seed", h.seed)
	})
}

type gateRequest struct {
	Scope   string   `json:"scope"`
	Actions []string `json:"actions" validate:"required,min=1,max=64,dive,required"`
}

type createRoleRequest struct {
	Name        string   `json:"name" validate:"required,max=120"`
	Description string   `json:"description" validate:"max=500"`
	WorkspaceID string   `json:"workspaceId" validate:"max=120"`
	Permissions []string `json:"permissions" validate:"dive,required"`
}

type assignmentRequest struct {
	UserID  string `json:"userId" validate:"required,max=200"`
	ScopeID string `json:"scopeId" validate:"max=200"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	action := strings.TrimSpace(q.Get("action"))
	if action == "" {
		httpx.RespondError(w, fmt.Errorf("%w: action is required", shared.ErrValidation))
		return
	}
	allowed, err := h.guard.CanPerformForSession(r.Context(), session.FromRequest(r, h.cookieName), action, q.Get("scope"))
	if err != nil {
		h.fail(w, "permission check", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"action": normalizeKey(action), "allowed": allowed})
}

func (h *Handler) gate(w http.ResponseWriter, r *http.Request) {
	sessionID := session.FromRequest(r, h.cookieName)
	var req gateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	decisions, err := h.guard.DecideForSession(r.Context(), sessionID, req.Scope, req.Actions...)
	if err != nil {
		h.fail(w, "permission gate", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"scope": req.Scope, "decisions": decisions})
}

func (h *Handler) myRoles(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserFromContext(r.Context())
	scope := r.URL.Query().Get("scope")
	roles, err := h.store.GetRolesForUser(r.Context(), userID, scope)
	if err != nil {
		h.fail(w, "list user roles", err)
		return
	}
	grants, err := h.authority.Grants(r.Context(), userID, scope)
	if err != nil {
		h.fail(w, "list user grants", err)
		return
	}
	keys := EffectiveKeys(grants, scope)
	sort.Strings(keys)
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles, "permissions": keys})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.store.ListPermissions(r.Context())
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.ListRoles(r.Context(), r.URL.Query().Get("workspace"))
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	perms := make([]Permission, 0, len(req.Permissions))
	for _, key := range normalizePermissions(req.Permissions) {
		perm, err := h.store.FindPermission(r.Context(), key)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				err = fmt.Errorf("%w: unknown permission %q", shared.ErrValidation, key)
			}
			h.fail(w, "create role", err)
			return
		}
		perms = append(perms, perm)
	}
	role, err := h.store.CreateRole(r.Context(), NewRole{Name: req.Name, Description: req.Description, WorkspaceID: req.WorkspaceID})
	if err != nil {
		h.fail(w, "create role", err)
		return
	}
	for _, perm := range perms {
		if _, err := h.store.AttachPermission(r.Context(), role.ID, perm.ID); err != nil {
			h.fail(w, "attach permission", err)
			return
		}
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"role": role})
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	req, ok := h.authorizeAssignment(w, r)
	if !ok {
		return
	}
	assignment, err := h.store.GrantRole(r.Context(), req.UserID, chi.URLParam(r, "roleID"), req.ScopeID)
	if err != nil {
		h.fail(w, "grant role", err)
		return
	}
	h.logger.Info("role granted",
		slog.String("role_id", assignment.RoleID),
		slog.String("user_id", assignment.UserID),
		slog.String("scope_id", assignment.ScopeID))
	httpx.JSON(w, http.StatusCreated, map[string]any{"assignment": assignment})
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	req, ok := h.authorizeAssignment(w, r)
	if !ok {
		return
	}
	roleID := chi.URLParam(r, "roleID")
	if err := h.store.RevokeRole(r.Context(), req.UserID, roleID, req.ScopeID); err != nil {
		h.fail(w, "revoke role", err)
		return
	}
	h.logger.Info("role revoked",
		slog.String("role_id", roleID),
		slog.String("user_id", req.UserID),
		slog.String("scope_id", req.ScopeID))
	w.WriteHeader(http.StatusNoContent)
}

// authorizeAssignment decodes the body and checks role.assign in the target scope.
func (h *Handler) authorizeAssignment(w http.ResponseWriter, r *http.Request) (assignmentRequest, bool) {
	var req assignmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return req, false
	}
	if err := h.validate(req); err != nil {
		httpx.RespondError(w, err)
		return req, false
	}
	actor, _ := shared.UserFromContext(r.Context())
	allowed, err := h.authority.CanPerform(r.Context(), actor, shared.PermRoleAssign, req.ScopeID)
	if err != nil {
		h.fail(w, "authorize assignment", err)
		return req, false
	}
	if !allowed {
		httpx.RespondError(w, shared.ErrForbidden)
		return req, false
	}
	// Delegation is bounded by the actor's own authority in the scope.
	covered, err := h.authority.CoversRole(r.Context(), actor, chi.URLParam(r, "roleID"), req.ScopeID)
	if err != nil {
		h.fail(w, "authorize assignment", err)
		return req, false
	}
	if !covered {
		httpx.RespondError(w, fmt.Errorf("%w: role exceeds actor authority", shared.ErrForbidden))
		return req, false
	}
	return req, true
}

func (h *Handler) seed(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.SeedRoles(r.Context())
	if err != nil {
		h.fail(w, "seed roles", err)
		return
	}
	h.logger.Info("rbac catalog seeded",
		slog.Int("permissions_created", report.PermissionsCreated),
		slog.Int("roles_created", report.RolesCreated),
		slog.Int("links_created", report.RolePermissionsCreated))
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) validate(v any) error {
	if err := h.validator.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields = append(fields, fe.Field()+" "+fe.Tag())
			}
			return fmt.Errorf("%w: %s", shared.ErrValidation, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
