package circles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synergyos/synergyos/internal/platform/docstore"
	"github.com/synergyos/synergyos/internal/rbac"
	"github.com/synergyos/synergyos/internal/shared"
)

type circleFixture struct {
	mem     *docstore.MemoryStore
	roles   *rbac.Store
	service *Service
}

func newCircleFixture(t *testing.T) *circleFixture {
	t.Helper()
	mem := docstore.NewMemory()
	roles := rbac.NewStore(mem)
	_, err := roles.SeedRoles(context.Background())
	require.NoError(t, err)
	svc := NewService(mem, NewRecorder(mem), rbac.NewAuthority(roles))
	return &circleFixture{mem: mem, roles: roles, service: svc}
}

func (f *circleFixture) grant(t *testing.T, userID, roleName, scope string) {
	t.Helper()
	role, err := f.roles.FindRole(context.Background(), "", roleName)
	require.NoError(t, err)
	_, err = f.roles.GrantRole(context.Background(), userID, role.ID, scope)
	require.NoError(t, err)
}

func TestCreateRecordsInitialVersion(t *testing.T) {
	f := newCircleFixture(t)
	f.grant(t, "admin", "Admin", "")
	ctx := shared.ContextWithUser(context.Background(), "admin")

	root, err := f.service.Create(ctx, "admin", CreateInput{WorkspaceID: "ws", Name: " General ", Purpose: "All hands"})
	require.NoError(t, err)
	assert.Equal(t, "General", root.Name)
	assert.Equal(t, 1, root.Version)
	assert.NotEmpty(t, root.ID)

	history, err := f.service.History(ctx, "admin", root.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ChangeCreate, history[0].ChangeKind)
	assert.Equal(t, root.ID, history[0].CircleID)
}

func TestCreateRequiresPermission(t *testing.T) {
	f := newCircleFixture(t)
	f.grant(t, "guest", "Guest", "")

	_, err := f.service.Create(context.Background(), "guest", CreateInput{WorkspaceID: "ws", Name: "Ops"})
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.Zero(t, f.mem.Len(docstore.Circles))
	assert.Zero(t, f.mem.Len(docstore.CircleVersions))
}

func TestChildCreateWithScopedLead(t *testing.T) {
	f := newCircleFixture(t)
	f.grant(t, "admin", "Admin", "")
	ctx := context.Background()
	root, err := f.service.Create(ctx, "admin", CreateInput{WorkspaceID: "ws", Name: "General"})
	require.NoError(t, err)

	f.grant(t, "lead", "Circle Lead", root.ID)
	child, err := f.service.Create(ctx, "lead", CreateInput{WorkspaceID: "ws", Name: "Ops", ParentCircleID: root.ID})
	require.NoError(t, err)
	assert.Equal(t, root.ID, child.ParentCircleID)

	_, err = f.service.Create(ctx, "lead", CreateInput{WorkspaceID: "ws", Name: "Rogue"})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = f.service.Create(ctx, "admin", CreateInput{WorkspaceID: "other", Name: "X", ParentCircleID: root.ID})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestMoveRequiresCreateAtDestination(t *testing.T) {
	f := newCircleFixture(t)
	f.grant(t, "admin", "Admin", "")
	ctx := context.Background()
	root, err := f.service.Create(ctx, "admin", CreateInput{WorkspaceID: "ws", Name: "General"})
	require.NoError(t, err)
	other, err := f.service.Create(ctx, "admin", CreateInput{WorkspaceID: "ws", Name: "Finance"})
	require.NoError(t, err)
	child, err := f.service.Create(ctx, "admin", CreateInput{WorkspaceID: "ws", Name: "Ops", ParentCircleID: root.ID})
	require.NoError(t, err)

	f.grant(t, "lead", "Circle Lead", child.ID)

	_, err = f.service.Move(ctx, "lead", child.ID, "")
	assert.ErrorIs(t, err, shared.ErrForbidden)
	_, err = f.service.Move(ctx, "lead", child.ID, other.ID)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	stored, err := f.service.Get(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, stored.ParentCircleID)
	assert.Equal(t, 1, stored.Version)

	f.grant(t, "lead", "Circle Lead", other.ID)
	moved, err := f.service.Move(ctx, "lead", child.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, moved.ParentCircleID)
}

func TestUpdateIncrementsVersion(t *testing.T) {
	f := newCircleFixture(t)
	f.grant(t, "admin", "Admin", "")
	ctx := context.Background()
	circle, err := f.service.Create(ctx, "admin", CreateInput{WorkspaceID: "ws", Name: "Ops"})
	require.NoError(t, err)

	name := "Operations"
	updated, err := f.service.Update(ctx, "admin", circle.ID, UpdateInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	unchanged, err := f.service.Update(ctx, "admin", circle.ID, UpdateInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, 2, unchanged.Version)

	stored, err := f.service.Get(ctx, circle.ID)
	require.NoError(t, err)
	assert.Equal(t, "Operations", stored.Name)
	assert.Equal(t, circle.CreatedAt, stored.CreatedAt)

	history, err := f.service.History(ctx, "admin", circle.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, []int{1, 2}, []int{history[0].Version, history[1].Version})

	empty := " "
	_, err = f.service.Update(ctx, "admin", circle.ID, UpdateInput{Name: &empty})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestMoveRejectsCycles(t *testing.T) {
	f := newCircleFixture(t)
	f.grant(t, "admin", "Admin", "")
	ctx := context.Background()
	a, err := f.service.Create(ctx, "admin", CreateInput{WorkspaceID: "ws", Name: "A"})
	require.NoError(t, err)
	b, err := f.service.Create(ctx, "admin", CreateInput{WorkspaceID: "ws", Name: "B", ParentCircleID: a.ID})
	require.NoError(t, err)
	c, err := f.service.Create(ctx, "admin", CreateInput{WorkspaceID: "ws", Name: "C", ParentCircleID: b.ID})
	require.NoError(t, err)

	_, err = f.service.Move(ctx, "admin", a.ID, c.ID)
	assert.ErrorIs(t, err, shared.ErrInvariantViolation)
	_, err = f.service.Move(ctx, "admin", a.ID, a.ID)
	assert.ErrorIs(t, err, shared.ErrInvariantViolation)

	moved, err := f.service.Move(ctx, "admin", c.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, moved.ParentCircleID)
	assert.Equal(t, 2, moved.Version)

	root, err := f.service.Move(ctx, "admin", c.ID, "")
	require.NoError(t, err)
	assert.Empty(t, root.ParentCircleID)

	history, err := f.service.History(ctx, "admin", c.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, ChangeMove, history[2].ChangeKind)
}

func TestArchive(t *testing.T) {
	f := newCircleFixture(t)
	f.grant(t, "admin", "Admin", "")
	ctx := context.Background()
	parent, err := f.service.Create(ctx, "admin", CreateInput{WorkspaceID: "ws", Name: "Parent"})
	require.NoError(t, err)
	child, err := f.service.Create(ctx, "admin", CreateInput{WorkspaceID: "ws", Name: "Child", ParentCircleID: parent.ID})
	require.NoError(t, err)

	_, err = f.service.Archive(ctx, "admin", parent.ID)
	assert.ErrorIs(t, err, shared.ErrConflict)

	archived, err := f.service.Archive(ctx, "admin", child.ID)
	require.NoError(t, err)
	assert.True(t, archived.Archived)
	assert.Equal(t, 2, archived.Version)

	_, err = f.service.Archive(ctx, "admin", child.ID)
	assert.ErrorIs(t, err, shared.ErrConflict)

	_, err = f.service.Archive(ctx, "admin", parent.ID)
	require.NoError(t, err)
}

func TestHistoryRequiresPermission(t *testing.T) {
	f := newCircleFixture(t)
	f.grant(t, "admin", "Admin", "")
	f.grant(t, "guest", "Guest", "")
	circle, err := f.service.Create(context.Background(), "admin", CreateInput{WorkspaceID: "ws", Name: "Ops"})
	require.NoError(t, err)

	_, err = f.service.History(context.Background(), "guest", circle.ID)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = f.service.History(context.Background(), "admin", "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestHistoryFailureUndoesCircleWrite(t *testing.T) {
	f := newCircleFixture(t)
	f.grant(t, "admin", "Admin", "")
	ctx := context.Background()
	broken := NewService(f.mem, NewRecorder(failingInserts{Store: f.mem}), rbac.NewAuthority(f.roles))

	_, err := broken.Create(ctx, "admin", CreateInput{WorkspaceID: "ws", Name: "Ops"})
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
	assert.Zero(t, f.mem.Len(docstore.Circles))
	assert.Zero(t, f.mem.Len(docstore.CircleVersions))

	circle, err := f.service.Create(ctx, "admin", CreateInput{WorkspaceID: "ws", Name: "Ops"})
	require.NoError(t, err)
	name := "Operations"
	_, err = broken.Update(ctx, "admin", circle.ID, UpdateInput{Name: &name})
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
	_, err = broken.Archive(ctx, "admin", circle.ID)
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)

	stored, err := f.service.Get(ctx, circle.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ops", stored.Name)
	assert.Equal(t, 1, stored.Version)
	assert.False(t, stored.Archived)
	assert.Equal(t, 1, f.mem.Len(docstore.CircleVersions))
}
