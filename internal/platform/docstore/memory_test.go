package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synergyos/synergyos/internal/shared"
)

type roleDoc struct {
	ID          string    `json:"_id,omitempty"`
	CreatedAt   time.Time `json:"_creationTime,omitempty"`
	WorkspaceID string    `json:"workspaceId"`
	Name        string    `json:"name"`
	NameKey     string    `json:"nameKey"`
}

func TestMemoryStoreInsertAndQuery(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemory().WithClock(func() time.Time { return fixed })

	rec, err := store.Insert(ctx, Roles, roleDoc{WorkspaceID: "", Name: "Admin", NameKey: "admin"})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	assert.Equal(t, fixed, rec.CreatedAt)

	_, err = store.Insert(ctx, Roles, roleDoc{WorkspaceID: "ws-1", Name: "Admin", NameKey: "admin"})
	require.NoError(t, err)

	global, err := store.Query(ctx, Roles, "by_workspace", "")
	require.NoError(t, err)
	require.Len(t, global, 1)

	doc, err := Decode[roleDoc](global[0])
	require.NoError(t, err)
	assert.Equal(t, rec.ID, doc.ID)
	assert.Equal(t, "Admin", doc.Name)
	assert.True(t, fixed.Equal(doc.CreatedAt))

	byName, err := store.Query(ctx, Roles, "by_workspace_name", "ws-1", "admin")
	require.NoError(t, err)
	assert.Len(t, byName, 1)
}

func TestMemoryStoreQueryNoMatchIsEmpty(t *testing.T) {
	store := NewMemory()
	recs, err := store.Query(context.Background(), Flashcards, "by_user", "nobody")
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestMemoryStoreUniqueIndex(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	_, err := store.Insert(ctx, Permissions, map[string]string{"key": "circle.view"})
	require.NoError(t, err)
	_, err = store.Insert(ctx, Permissions, map[string]string{"key": "circle.view"})
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, 1, store.Len(Permissions))
}

func TestMemoryStoreUnknownIndex(t *testing.T) {
	store := NewMemory()
	_, err := store.Query(context.Background(), Roles, "by_colour", "red")
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = store.Query(context.Background(), "teams", "by_workspace", "x")
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = store.Query(context.Background(), Roles, "by_workspace")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestMemoryStoreReplaceKeepsSystemFields(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	rec, err := store.Insert(ctx, Circles, map[string]any{"workspaceId": "ws", "name": "Ops"})
	require.NoError(t, err)

	require.NoError(t, store.Replace(ctx, Circles, rec.ID, map[string]any{"workspaceId": "ws", "name": "Operations"}))

	got, err := store.Get(ctx, Circles, rec.ID)
	require.NoError(t, err)
	body, err := Decode[map[string]any](got)
	require.NoError(t, err)
	assert.Equal(t, "Operations", body["name"])
	assert.Equal(t, rec.ID, body[FieldID])
	assert.Equal(t, rec.CreatedAt, got.CreatedAt)

	err = store.Replace(ctx, Circles, "missing", map[string]any{})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	a, err := store.Insert(ctx, Flashcards, map[string]string{"userId": "u1"})
	require.NoError(t, err)
	b, err := store.Insert(ctx, Flashcards, map[string]string{"userId": "u1"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, Flashcards, a.ID))
	assert.ErrorIs(t, store.Delete(ctx, Flashcards, a.ID), shared.ErrNotFound)

	recs, err := store.Query(ctx, Flashcards, "by_user", "u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	all, err := store.List(ctx, Flashcards)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, b.ID, recs[0].ID)

	_, err = store.Get(ctx, Flashcards, a.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMemoryStoreMissingFieldMatchesEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	_, err := store.Insert(ctx, Circles, map[string]string{"workspaceId": "ws"})
	require.NoError(t, err)

	roots, err := store.Query(ctx, Circles, "by_parent", "")
	require.NoError(t, err)
	assert.Len(t, roots, 1)
}
