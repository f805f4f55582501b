package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/synergyos/synergyos/internal/shared"
)

// PermissionSpec is a catalog permission.
type PermissionSpec struct {
	Key         string
	Description string
}

// RoleSpec is a catalog role and the permission keys it confers.
type RoleSpec struct {
	Name        string
	Description string
	Permissions []string
}

// Catalog is the static set of system permissions and roles.
type Catalog struct {
	Permissions []PermissionSpec
	Roles       []RoleSpec
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() Catalog {
	circle := []string{
		shared.PermCircleView, shared.PermCircleCreate, shared.PermCircleEdit,
		shared.PermCircleDelete, shared.PermCircleHistoryView,
	}
	meeting := []string{shared.PermMeetingView, shared.PermMeetingCreate, shared.PermMeetingEdit}
	flashcard := []string{shared.PermFlashcardView, shared.PermFlashcardEdit}

	lead := append(append([]string{}, circle...), shared.PermRoleView, shared.PermRoleAssign)
	lead = append(append(lead, meeting...), shared.PermPolicyView)

	member := []string{
		shared.PermCircleView, shared.PermCircleHistoryView, shared.PermRoleView,
		shared.PermMeetingView, shared.PermMeetingCreate,
	}
	member = append(append(member, flashcard...), shared.PermPolicyView)

	return Catalog{
		Permissions: []PermissionSpec{
			{shared.PermWorkspaceAdmin, "Administer the workspace"},
			{shared.PermCircleView, "View circles"},
			{shared.PermCircleCreate, "Create circles"},
			{shared.PermCircleEdit, "Edit circles"},
			{shared.PermCircleDelete, "Archive circles"},
			{shared.PermCircleHistoryView, "View circle history"},
			{shared.PermRoleView, "View roles"},
			{shared.PermRoleCreate, "Create roles"},
			{shared.PermRoleAssign, "Assign roles to users"},
			{shared.PermPermissionView, "View permissions"},
			{shared.PermMeetingView, "View meetings"},
			{shared.PermMeetingCreate, "Create meetings"},
			{shared.PermMeetingEdit, "Edit meetings"},
			{shared.PermFlashcardView, "View flashcards"},
			{shared.PermFlashcardEdit, "Edit flashcards"},
			{shared.PermPolicyView, "View policies"},
			{shared.PermPolicyEdit, "Edit policies"},
		},
		Roles: []RoleSpec{
			{Name: "Admin", Description: "Full workspace administration", Permissions: shared.CoreScopes()},
			{Name: "Circle Lead", Description: "Leads a circle", Permissions: lead},
			{Name: "Member", Description: "Circle member", Permissions: member},
			{Name: "Guest", Description: "Read-only guest", Permissions: []string{shared.PermCircleView, shared.PermMeetingView, shared.PermPolicyView}},
		},
	}
}

// SeedRoles creates the default catalog where absent. Existing permissions,
// roles and links are detected by natural key and skipped, so repeated runs
// leave the store unchanged.
func (s *Store) SeedRoles(ctx context.Context) (SeedReport, error) {
	return s.Seed(ctx, DefaultCatalog())
}

// Seed applies an arbitrary catalog with the same idempotency rules as SeedRoles.
func (s *Store) Seed(ctx context.Context, catalog Catalog) (SeedReport, error) {
	var report SeedReport

	permIDs := make(map[string]string, len(catalog.Permissions))
	for _, spec := range catalog.Permissions {
		perm, created, err := s.EnsurePermission(ctx, spec.Key, spec.Description)
		if err != nil {
			return report, fmt.Errorf("rbac: seed permission %s: %w", spec.Key, err)
		}
		if created {
			report.PermissionsCreated++
		} else {
			report.PermissionsExisting++
		}
		permIDs[perm.Key] = perm.ID
	}

	for _, spec := range catalog.Roles {
		role, created, err := s.ensureSystemRole(ctx, spec)
		if err != nil {
			return report, fmt.Errorf("rbac: seed role %s: %w", spec.Name, err)
		}
		if created {
			report.RolesCreated++
		} else {
			report.RolesExisting++
		}
		for _, key := range normalizePermissions(spec.Permissions) {
			permID, ok := permIDs[key]
			if !ok {
				return report, fmt.Errorf("%w: role %s references unknown permission %s", shared.ErrInvariantViolation, spec.Name, key)
			}
			linked, err := s.AttachPermission(ctx, role.ID, permID)
			if err != nil {
				return report, fmt.Errorf("rbac: seed role %s: %w", spec.Name, err)
			}
			if linked {
				report.RolePermissionsCreated++
			} else {
				report.RolePermissionsExisting++
			}
		}
	}
	return report, nil
}

func (s *Store) ensureSystemRole(ctx context.Context, spec RoleSpec) (Role, bool, error) {
	role, err := s.FindRole(ctx, "", spec.Name)
	if err == nil {
		return role, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Role{}, false, err
	}
	role, err = s.CreateRole(ctx, NewRole{Name: spec.Name, Description: spec.Description})
	if err == nil {
		return role, true, nil
	}
	// Lost a race with a concurrent seeder.
	if existing, ferr := s.FindRole(ctx, "", spec.Name); ferr == nil {
		return existing, false, nil
	}
	return Role{}, false, err
}
