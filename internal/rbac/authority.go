package rbac

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/synergyos/synergyos/internal/shared"
)

// DecisionObserver receives every authorization decision. err is set when
// the decision could not be made.
type DecisionObserver interface {
	ObserveDecision(action string, allowed bool, err error)
}

// Authority answers permission checks from the role store. Each call loads
// a fresh snapshot; nothing is cached between calls.
type Authority struct {
	store    *Store
	observer DecisionObserver
}

// NewAuthority constructs an Authority.
func NewAuthority(store *Store) *Authority {
	return &Authority{store: store}
}

// WithObserver attaches a decision observer.
func (a *Authority) WithObserver(o DecisionObserver) *Authority {
	a.observer = o
	return a
}

// Grants loads the user's grants that apply to scope, one per distinct
// (role, scope) assignment. Role permission sets load concurrently.
func (a *Authority) Grants(ctx context.Context, userID, scope string) ([]Grant, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id required", shared.ErrUnauthenticated)
	}
	assignments, err := a.store.ListAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}

	applicable := make([]Assignment, 0, len(assignments))
	roleIDs := make([]string, 0, len(assignments))
	keysByRole := make(map[string][]string)
	for _, asg := range assignments {
		if !appliesTo(asg.ScopeID, scope) {
			continue
		}
		applicable = append(applicable, asg)
		if _, ok := keysByRole[asg.RoleID]; !ok {
			keysByRole[asg.RoleID] = nil
			roleIDs = append(roleIDs, asg.RoleID)
		}
	}
	if len(applicable) == 0 {
		return nil, nil
	}

	loaded := make([][]string, len(roleIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, roleID := range roleIDs {
		g.Go(func() error {
			perms, err := a.store.GetPermissionsForRole(gctx, roleID)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(perms))
			for _, p := range perms {
				keys = append(keys, p.Key)
			}
			loaded[i] = keys
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("rbac: load grants: %w", err)
	}
	for i, roleID := range roleIDs {
		keysByRole[roleID] = loaded[i]
	}

	grants := make([]Grant, 0, len(applicable))
	for _, asg := range applicable {
		grants = append(grants, Grant{RoleID: asg.RoleID, ScopeID: asg.ScopeID, PermKeys: keysByRole[asg.RoleID]})
	}
	return grants, nil
}

// CanPerform reports whether the user may perform action within scope.
// Lacking a permission is (false, nil); store failures are returned.
func (a *Authority) CanPerform(ctx context.Context, userID, action, scope string) (bool, error) {
	key := normalizeKey(action)
	if key == "" {
		return false, nil
	}
	decisions, err := a.Decide(ctx, userID, scope, key)
	if err != nil {
		return false, err
	}
	return decisions[key], nil
}

// CoversRole reports whether userID holds every permission linked to
// roleID within scope. A role without permissions is always covered.
func (a *Authority) CoversRole(ctx context.Context, userID, roleID, scope string) (bool, error) {
	perms, err := a.store.GetPermissionsForRole(ctx, roleID)
	if err != nil {
		return false, err
	}
	if len(perms) == 0 {
		return true, nil
	}
	keys := make([]string, 0, len(perms))
	for _, p := range perms {
		keys = append(keys, p.Key)
	}
	decisions, err := a.Decide(ctx, userID, scope, keys...)
	if err != nil {
		return false, err
	}
	for _, key := range normalizePermissions(keys) {
		if !decisions[key] {
			return false, nil
		}
	}
	return true, nil
}

// Decide evaluates several actions against one snapshot of the user's
// grants. Keys of the result are the normalised action names.
func (a *Authority) Decide(ctx context.Context, userID, scope string, actions ...string) (map[string]bool, error) {
	normalized := normalizePermissions(actions)
	if len(normalized) == 0 {
		return nil, fmt.Errorf("%w: at least one action required", shared.ErrValidation)
	}
	grants, err := a.Grants(ctx, userID, scope)
	if err != nil {
		if a.observer != nil {
			for _, action := range normalized {
				a.observer.ObserveDecision(action, false, err)
			}
		}
		return nil, err
	}
	decisions := make(map[string]bool, len(normalized))
	for _, action := range normalized {
		allowed := Evaluate(grants, action, scope)
		decisions[action] = allowed
		if a.observer != nil {
			a.observer.ObserveDecision(action, allowed, nil)
		}
	}
	return decisions, nil
}
