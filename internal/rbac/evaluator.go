package rbac

import "strings"

// Evaluate reports whether action is permitted by the grants that apply to
// scope. A grant applies when it is unscoped or its scope equals scope.
// Keys compare case-insensitively after trimming.
func Evaluate(grants []Grant, action, scope string) bool {
	action = normalizeKey(action)
	if action == "" {
		return false
	}
	for _, g := range grants {
		if !appliesTo(g.ScopeID, scope) {
			continue
		}
		for _, key := range g.PermKeys {
			if normalizeKey(key) == action {
				return true
			}
		}
	}
	return false
}

// EffectiveKeys returns the deduplicated permission keys granted within scope.
func EffectiveKeys(grants []Grant, scope string) []string {
	seen := make(map[string]struct{})
	keys := make([]string, 0)
	for _, g := range grants {
		if !appliesTo(g.ScopeID, scope) {
			continue
		}
		for _, key := range g.PermKeys {
			key = normalizeKey(key)
			if _, ok := seen[key]; ok || key == "" {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	return keys
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = normalizeKey(p)
		if p == "" {
			continue
		}
		if _, ok := unique[p]; ok {
			continue
		}
		unique[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}

func hasAnyPermission(decisions map[string]bool, required []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if decisions[r] {
			return true
		}
	}
	return false
}

func hasAllPermissions(decisions map[string]bool, required []string) bool {
	for _, r := range required {
		if !decisions[r] {
			return false
		}
	}
	return true
}
