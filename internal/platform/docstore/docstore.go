// Package docstore provides a small document repository over named
// collections with equality indexes, backed by PostgreSQL JSONB or memory.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/synergyos/synergyos/internal/shared"
)

// Collection names.
const (
	Roles           = "roles"
	Permissions     = "permissions"
	RolePermissions = "rolePermissions"
	RoleAssignments = "roleAssignments"
	Circles         = "circles"
	CircleVersions  = "circleVersions"
	Flashcards      = "flashcards"
	Policies        = "policies"
)

// System fields written into every stored body.
const (
	FieldID           = "_id"
	FieldCreationTime = "_creationTime"
)

// Index is an equality index over one or more top-level string fields.
type Index struct {
	Name   string
	Fields []string
	Unique bool
}

// Schema lists the indexes available per collection.
var Schema = map[string][]Index{
	Roles: {
		{Name: "by_workspace", Fields: []string{"workspaceId"}},
		{Name: "by_workspace_name", Fields: []string{"workspaceId", "nameKey"}, Unique: true},
	},
	Permissions: {
		{Name: "by_key", Fields: []string{"key"}, Unique: true},
	},
	RolePermissions: {
		{Name: "by_role", Fields: []string{"roleId"}},
		{Name: "by_role_permission", Fields: []string{"roleId", "permissionId"}, Unique: true},
	},
	RoleAssignments: {
		{Name: "by_user", Fields: []string{"userId"}},
		{Name: "by_role", Fields: []string{"roleId"}},
		{Name: "by_user_role_scope", Fields: []string{"userId", "roleId", "scopeId"}, Unique: true},
	},
	Circles: {
		{Name: "by_workspace", Fields: []string{"workspaceId"}},
		{Name: "by_parent", Fields: []string{"parentCircleId"}},
	},
	CircleVersions: {
		{Name: "by_circle", Fields: []string{"circleId"}},
	},
	Flashcards: {
		{Name: "by_user", Fields: []string{"userId"}},
	},
	Policies: {
		{Name: "by_workspace", Fields: []string{"workspaceId"}},
	},
}

// Record is a stored document. Body carries the system fields.
type Record struct {
	ID        string
	CreatedAt time.Time
	Body      json.RawMessage
}

// Store is the repository contract consumed by the domain packages.
// Query and List return an empty slice, not an error, when nothing matches.
// Results are ordered by id, which follows insertion order.
type Store interface {
	Insert(ctx context.Context, collection string, doc any) (Record, error)
	Get(ctx context.Context, collection, id string) (Record, error)
	Query(ctx context.Context, collection, index string, values ...string) ([]Record, error)
	List(ctx context.Context, collection string) ([]Record, error)
	Replace(ctx context.Context, collection, id string, doc any) error
	Delete(ctx context.Context, collection, id string) error
}

// Decode unmarshals a record body into T.
func Decode[T any](rec Record) (T, error) {
	var out T
	if err := json.Unmarshal(rec.Body, &out); err != nil {
		return out, fmt.Errorf("docstore: decode %s: %w", rec.ID, err)
	}
	return out, nil
}

// DecodeAll unmarshals every record body into T, preserving order.
func DecodeAll[T any](recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := Decode[T](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func lookupIndex(collection, name string, values []string) (Index, error) {
	indexes, ok := Schema[collection]
	if !ok {
		return Index{}, fmt.Errorf("%w: docstore: unknown collection %q", shared.ErrValidation, collection)
	}
	for _, idx := range indexes {
		if idx.Name != name {
			continue
		}
		if len(values) == 0 || len(values) > len(idx.Fields) {
			return Index{}, fmt.Errorf("%w: docstore: index %s.%s takes 1..%d values, got %d", shared.ErrValidation, collection, name, len(idx.Fields), len(values))
		}
		return idx, nil
	}
	return Index{}, fmt.Errorf("%w: docstore: unknown index %s.%s", shared.ErrValidation, collection, name)
}

func checkCollection(collection string) error {
	if _, ok := Schema[collection]; !ok {
		return fmt.Errorf("%w: docstore: unknown collection %q", shared.ErrValidation, collection)
	}
	return nil
}

// encodeBody merges the system fields into the marshalled document.
func encodeBody(doc any, id string, createdAt time.Time) (json.RawMessage, map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("docstore: encode: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, nil, fmt.Errorf("docstore: document must be a JSON object: %w", err)
	}
	fields[FieldID] = id
	fields[FieldCreationTime] = createdAt.UTC().Format(time.RFC3339Nano)
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, nil, fmt.Errorf("docstore: encode: %w", err)
	}
	return body, fields, nil
}

func fieldString(fields map[string]any, name string) string {
	v, ok := fields[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
