package rbac

import "time"

// Role groups permissions. An empty WorkspaceID marks a system role.
type Role struct {
	ID          string    `json:"_id,omitempty"`
	CreatedAt   time.Time `json:"_creationTime"`
	Name        string    `json:"name"`
	NameKey     string    `json:"nameKey"`
	Description string    `json:"description"`
	WorkspaceID string    `json:"workspaceId"`
}

// Permission is an atomic capability identified by a dotted key such as circle.edit.
type Permission struct {
	ID          string    `json:"_id,omitempty"`
	CreatedAt   time.Time `json:"_creationTime"`
	Key         string    `json:"key"`
	Description string    `json:"description"`
}

// RolePermission ties a permission to a role.
type RolePermission struct {
	ID           string `json:"_id,omitempty"`
	RoleID       string `json:"roleId"`
	PermissionID string `json:"permissionId"`
}

// Assignment grants a role to a user, optionally limited to a scope
// (a circle or workspace id). An empty ScopeID is unscoped.
type Assignment struct {
	ID        string    `json:"_id,omitempty"`
	CreatedAt time.Time `json:"_creationTime"`
	UserID    string    `json:"userId"`
	RoleID    string    `json:"roleId"`
	ScopeID   string    `json:"scopeId"`
}

// Grant is the evaluated form of an assignment: the permission keys a
// role confers within a scope.
type Grant struct {
	RoleID   string
	ScopeID  string
	PermKeys []string
}

// SeedReport summarises a seeding run.
type SeedReport struct {
	PermissionsCreated      int `json:"permissionsCreated"`
	PermissionsExisting     int `json:"permissionsExisting"`
	RolesCreated            int `json:"rolesCreated"`
	RolesExisting           int `json:"rolesExisting"`
	RolePermissionsCreated  int `json:"rolePermissionsCreated"`
	RolePermissionsExisting int `json:"rolePermissionsExisting"`
}

// Created reports whether the run inserted anything.
func (r SeedReport) Created() bool {
	return r.PermissionsCreated+r.RolesCreated+r.RolePermissionsCreated > 0
}
