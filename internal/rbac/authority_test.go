package rbac

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synergyos/synergyos/internal/shared"
)

type recordingObserver struct {
	mu        sync.Mutex
	decisions map[string]bool
	errors    int
}

func (r *recordingObserver) ObserveDecision(action string, allowed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errors++
		return
	}
	if r.decisions == nil {
		r.decisions = map[string]bool{}
	}
	r.decisions[action] = allowed
}

func TestCanPerformWithoutRoles(t *testing.T) {
	f := newFixture(t)
	for _, action := range shared.CoreScopes() {
		allowed, err := f.authority.CanPerform(context.Background(), "nobody", action, "")
		require.NoError(t, err)
		assert.False(t, allowed, action)
	}
}

func TestCanPerformMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grant(t, "user-1", "Member", "")

	allowed, err := f.authority.CanPerform(ctx, "user-1", shared.PermCircleView, "")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = f.authority.CanPerform(ctx, "user-1", shared.PermCircleEdit, "")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestScopedGrantsDoNotLeak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grant(t, "user-1", "Circle Lead", "circle-a")

	inA, err := f.authority.CanPerform(ctx, "user-1", shared.PermCircleEdit, "circle-a")
	require.NoError(t, err)
	assert.True(t, inA)

	inB, err := f.authority.CanPerform(ctx, "user-1", shared.PermCircleEdit, "circle-b")
	require.NoError(t, err)
	assert.False(t, inB)

	unscoped, err := f.authority.CanPerform(ctx, "user-1", shared.PermCircleEdit, "")
	require.NoError(t, err)
	assert.False(t, unscoped)
}

func TestRevokeTakesEffectImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.grant(t, "user-1", "Circle Lead", "")

	allowed, err := f.authority.CanPerform(ctx, "user-1", shared.PermRoleAssign, "")
	require.NoError(t, err)
	require.True(t, allowed)

	require.NoError(t, f.store.RevokeRole(ctx, "user-1", lead.ID, ""))
	allowed, err = f.authority.CanPerform(ctx, "user-1", shared.PermRoleAssign, "")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestDecideBatch(t *testing.T) {
	f := newFixture(t)
	obs := &recordingObserver{}
	f.authority.WithObserver(obs)
	f.grant(t, "user-1", "Guest", "")
	f.grant(t, "user-1", "Member", "circle-a")

	decisions, err := f.authority.Decide(context.Background(), "user-1", "circle-a",
		"circle.view", "Flashcard.Edit", "circle.delete")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{
		"circle.view":    true,
		"flashcard.edit": true,
		"circle.delete":  false,
	}, decisions)
	assert.Equal(t, decisions, obs.decisions)

	_, err = f.authority.Decide(context.Background(), "user-1", "", " ")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCanPerformPropagatesStoreErrors(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "user-1", "Member", "")
	obs := &recordingObserver{}
	f.authority.WithObserver(obs)
	f.docs.fail.Store(true)

	allowed, err := f.authority.CanPerform(context.Background(), "user-1", shared.PermCircleView, "")
	assert.False(t, allowed)
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
	assert.Equal(t, 1, obs.errors)
}

func TestCanPerformRequiresUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.authority.CanPerform(context.Background(), "", shared.PermCircleView, "")
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
	assert.Zero(t, f.docs.calls.Load())
}

func TestCanPerformBlankActionIsDenied(t *testing.T) {
	f := newFixture(t)
	f.grant(t, "admin", "Admin", "")
	f.docs.calls.Store(0)
	for _, action := range []string{"", "   "} {
		allowed, err := f.authority.CanPerform(context.Background(), "admin", action, "")
		require.NoError(t, err)
		assert.False(t, allowed)
	}
	assert.Zero(t, f.docs.calls.Load())
}
