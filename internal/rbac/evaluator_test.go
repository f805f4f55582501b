package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	grants := []Grant{
		{RoleID: "member", PermKeys: []string{"circle.view", "Meeting.Create "}},
		{RoleID: "lead", ScopeID: "circle-a", PermKeys: []string{"circle.edit"}},
	}
	cases := []struct {
		name   string
		grants []Grant
		action string
		scope  string
		want   bool
	}{
		{"no grants", nil, "circle.view", "", false},
		{"unscoped grant unscoped check", grants, "circle.view", "", true},
		{"unscoped grant applies in scope", grants, "circle.view", "circle-a", true},
		{"case and space insensitive", grants, " MEETING.create", "", true},
		{"scoped grant in its scope", grants, "circle.edit", "circle-a", true},
		{"scoped grant other scope", grants, "circle.edit", "circle-b", false},
		{"scoped grant unscoped check", grants, "circle.edit", "", false},
		{"absent permission", grants, "circle.delete", "circle-a", false},
		{"empty action", grants, "  ", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Evaluate(tc.grants, tc.action, tc.scope))
		})
	}
}

func TestEffectiveKeys(t *testing.T) {
	grants := []Grant{
		{PermKeys: []string{"circle.view", "circle.view"}},
		{ScopeID: "circle-a", PermKeys: []string{"circle.edit", "CIRCLE.VIEW"}},
	}
	assert.Equal(t, []string{"circle.view"}, EffectiveKeys(grants, ""))
	assert.Equal(t, []string{"circle.view", "circle.edit"}, EffectiveKeys(grants, "circle-a"))
}

func TestNormalizePermissions(t *testing.T) {
	assert.Equal(t, []string{"circle.view", "role.view"}, normalizePermissions([]string{" Circle.View", "", "role.view", "circle.view"}))
}
