package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/synergyos/synergyos/internal/platform/docstore"
	"github.com/synergyos/synergyos/internal/shared"
)

// Store provides typed access to roles, permissions and assignments.
type Store struct {
	docs docstore.Store
}

// NewStore constructs a Store over the document store.
func NewStore(docs docstore.Store) *Store {
	return &Store{docs: docs}
}

// NewRole describes a role to create.
type NewRole struct {
	Name        string
	Description string
	WorkspaceID string
}

// GetRole fetches a role by id.
func (s *Store) GetRole(ctx context.Context, id string) (Role, error) {
	rec, err := s.docs.Get(ctx, docstore.Roles, id)
	if err != nil {
		return Role{}, fmt.Errorf("rbac: get role: %w", err)
	}
	return docstore.Decode[Role](rec)
}

// FindRole looks a role up by name within a workspace. Names compare case-folded.
func (s *Store) FindRole(ctx context.Context, workspaceID, name string) (Role, error) {
	recs, err := s.docs.Query(ctx, docstore.Roles, "by_workspace_name", workspaceID, nameKey(name))
	if err != nil {
		return Role{}, fmt.Errorf("rbac: find role: %w", err)
	}
	if len(recs) == 0 {
		return Role{}, fmt.Errorf("%w: role %q", shared.ErrNotFound, name)
	}
	return docstore.Decode[Role](recs[0])
}

// ListRoles returns system roles plus, when workspaceID is set, that workspace's roles.
func (s *Store) ListRoles(ctx context.Context, workspaceID string) ([]Role, error) {
	recs, err := s.docs.Query(ctx, docstore.Roles, "by_workspace", "")
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	if workspaceID != "" {
		scoped, err := s.docs.Query(ctx, docstore.Roles, "by_workspace", workspaceID)
		if err != nil {
			return nil, fmt.Errorf("rbac: list roles: %w", err)
		}
		recs = append(recs, scoped...)
	}
	return docstore.DecodeAll[Role](recs)
}

// CreateRole inserts a role. A role with the same case-folded name in the
// same workspace yields shared.ErrConflict.
func (s *Store) CreateRole(ctx context.Context, in NewRole) (Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", shared.ErrValidation)
	}
	if _, err := s.FindRole(ctx, in.WorkspaceID, name); err == nil {
		return Role{}, fmt.Errorf("%w: role %q already exists", shared.ErrConflict, name)
	} else if !errors.Is(err, shared.ErrNotFound) {
		return Role{}, err
	}
	role := Role{
		Name:        name,
		NameKey:     nameKey(name),
		Description: strings.TrimSpace(in.Description),
		WorkspaceID: strings.TrimSpace(in.WorkspaceID),
	}
	rec, err := s.docs.Insert(ctx, docstore.Roles, role)
	if err != nil {
		return Role{}, fmt.Errorf("rbac: create role: %w", err)
	}
	return docstore.Decode[Role](rec)
}

// GetPermission fetches a permission by id.
func (s *Store) GetPermission(ctx context.Context, id string) (Permission, error) {
	rec, err := s.docs.Get(ctx, docstore.Permissions, id)
	if err != nil {
		return Permission{}, fmt.Errorf("rbac: get permission: %w", err)
	}
	return docstore.Decode[Permission](rec)
}

// FindPermission looks a permission up by key.
func (s *Store) FindPermission(ctx context.Context, key string) (Permission, error) {
	recs, err := s.docs.Query(ctx, docstore.Permissions, "by_key", normalizeKey(key))
	if err != nil {
		return Permission{}, fmt.Errorf("rbac: find permission: %w", err)
	}
	if len(recs) == 0 {
		return Permission{}, fmt.Errorf("%w: permission %q", shared.ErrNotFound, key)
	}
	return docstore.Decode[Permission](recs[0])
}

// ListPermissions returns every registered permission.
func (s *Store) ListPermissions(ctx context.Context) ([]Permission, error) {
	recs, err := s.docs.List(ctx, docstore.Permissions)
	if err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	return docstore.DecodeAll[Permission](recs)
}

// EnsurePermission returns the permission with the given key, creating it
// when absent. The boolean reports whether it was created.
func (s *Store) EnsurePermission(ctx context.Context, key, description string) (Permission, bool, error) {
	key = normalizeKey(key)
	if key == "" {
		return Permission{}, false, fmt.Errorf("%w: permission key required", shared.ErrValidation)
	}
	existing, err := s.FindPermission(ctx, key)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Permission{}, false, err
	}
	rec, err := s.docs.Insert(ctx, docstore.Permissions, Permission{Key: key, Description: strings.TrimSpace(description)})
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			existing, ferr := s.FindPermission(ctx, key)
			return existing, false, ferr
		}
		return Permission{}, false, fmt.Errorf("rbac: ensure permission: %w", err)
	}
	perm, err := docstore.Decode[Permission](rec)
	return perm, err == nil, err
}

// AttachPermission links a permission to a role. Attaching an existing pair
// is a no-op; the boolean reports whether a link was created.
func (s *Store) AttachPermission(ctx context.Context, roleID, permissionID string) (bool, error) {
	if _, err := s.GetRole(ctx, roleID); err != nil {
		return false, err
	}
	if _, err := s.GetPermission(ctx, permissionID); err != nil {
		return false, err
	}
	recs, err := s.docs.Query(ctx, docstore.RolePermissions, "by_role_permission", roleID, permissionID)
	if err != nil {
		return false, fmt.Errorf("rbac: attach permission: %w", err)
	}
	if len(recs) > 0 {
		return false, nil
	}
	_, err = s.docs.Insert(ctx, docstore.RolePermissions, RolePermission{RoleID: roleID, PermissionID: permissionID})
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return false, nil
		}
		return false, fmt.Errorf("rbac: attach permission: %w", err)
	}
	return true, nil
}

// GetPermissionsForRole returns the permissions linked to a role. An
// unknown role or a role without links yields an empty slice.
func (s *Store) GetPermissionsForRole(ctx context.Context, roleID string) ([]Permission, error) {
	recs, err := s.docs.Query(ctx, docstore.RolePermissions, "by_role", roleID)
	if err != nil {
		return nil, fmt.Errorf("rbac: role permissions: %w", err)
	}
	links, err := docstore.DecodeAll[RolePermission](recs)
	if err != nil {
		return nil, err
	}
	perms := make([]Permission, 0, len(links))
	for _, link := range links {
		perm, err := s.GetPermission(ctx, link.PermissionID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, fmt.Errorf("%w: role %s links missing permission %s", shared.ErrInvariantViolation, roleID, link.PermissionID)
			}
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, nil
}

// ListAssignments returns every role assignment held by the user.
func (s *Store) ListAssignments(ctx context.Context, userID string) ([]Assignment, error) {
	recs, err := s.docs.Query(ctx, docstore.RoleAssignments, "by_user", userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: list assignments: %w", err)
	}
	return docstore.DecodeAll[Assignment](recs)
}

// GetRolesForUser returns the distinct roles the user holds that apply to
// scopeID: unscoped assignments always, scoped ones only on an exact match.
func (s *Store) GetRolesForUser(ctx context.Context, userID, scopeID string) ([]Role, error) {
	assignments, err := s.ListAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(assignments))
	roles := make([]Role, 0, len(assignments))
	for _, a := range assignments {
		if !appliesTo(a.ScopeID, scopeID) {
			continue
		}
		if _, ok := seen[a.RoleID]; ok {
			continue
		}
		seen[a.RoleID] = struct{}{}
		role, err := s.GetRole(ctx, a.RoleID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, fmt.Errorf("%w: assignment %s references missing role %s", shared.ErrInvariantViolation, a.ID, a.RoleID)
			}
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// GrantRole assigns a role to a user within a scope. Granting the same
// (user, role, scope) triple twice returns the existing assignment.
func (s *Store) GrantRole(ctx context.Context, userID, roleID, scopeID string) (Assignment, error) {
	userID = strings.TrimSpace(userID)
	scopeID = strings.TrimSpace(scopeID)
	if userID == "" {
		return Assignment{}, fmt.Errorf("%w: user id required", shared.ErrValidation)
	}
	if _, err := s.GetRole(ctx, roleID); err != nil {
		return Assignment{}, err
	}
	if existing, ok, err := s.findAssignment(ctx, userID, roleID, scopeID); err != nil || ok {
		return existing, err
	}
	rec, err := s.docs.Insert(ctx, docstore.RoleAssignments, Assignment{UserID: userID, RoleID: roleID, ScopeID: scopeID})
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			existing, _, ferr := s.findAssignment(ctx, userID, roleID, scopeID)
			return existing, ferr
		}
		return Assignment{}, fmt.Errorf("rbac: grant role: %w", err)
	}
	return docstore.Decode[Assignment](rec)
}

// RevokeRole removes the (user, role, scope) assignment.
func (s *Store) RevokeRole(ctx context.Context, userID, roleID, scopeID string) error {
	recs, err := s.docs.Query(ctx, docstore.RoleAssignments, "by_user_role_scope",
		strings.TrimSpace(userID), roleID, strings.TrimSpace(scopeID))
	if err != nil {
		return fmt.Errorf("rbac: revoke role: %w", err)
	}
	if len(recs) == 0 {
		return fmt.Errorf("%w: assignment", shared.ErrNotFound)
	}
	for _, rec := range recs {
		if err := s.docs.Delete(ctx, docstore.RoleAssignments, rec.ID); err != nil && !errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("rbac: revoke role: %w", err)
		}
	}
	return nil
}

func (s *Store) findAssignment(ctx context.Context, userID, roleID, scopeID string) (Assignment, bool, error) {
	recs, err := s.docs.Query(ctx, docstore.RoleAssignments, "by_user_role_scope", userID, roleID, scopeID)
	if err != nil {
		return Assignment{}, false, fmt.Errorf("rbac: find assignment: %w", err)
	}
	if len(recs) == 0 {
		return Assignment{}, false, nil
	}
	a, err := docstore.Decode[Assignment](recs[0])
	return a, err == nil, err
}

// appliesTo implements the union scope policy.
func appliesTo(grantScope, checkScope string) bool {
	return grantScope == "" || grantScope == checkScope
}

func nameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
