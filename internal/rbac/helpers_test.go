package rbac

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synergyos/synergyos/internal/platform/docstore"
	"github.com/synergyos/synergyos/internal/shared"
)

type stubResolver map[string]string

func (s stubResolver) Resolve(_ context.Context, sessionID string) (string, error) {
	userID, ok := s[sessionID]
	if !ok {
		return "", fmt.Errorf("%w: unknown session", shared.ErrUnauthenticated)
	}
	return userID, nil
}

// countingStore records every call that reaches the document store.
type countingStore struct {
	docstore.Store
	calls atomic.Int64
	fail  atomic.Bool
}

func (c *countingStore) touch() error {
	c.calls.Add(1)
	if c.fail.Load() {
		return fmt.Errorf("%w: simulated outage", shared.ErrStoreUnavailable)
	}
	return nil
}

func (c *countingStore) Insert(ctx context.Context, collection string, doc any) (docstore.Record, error) {
	if err := c.touch(); err != nil {
		return docstore.Record{}, err
	}
	return c.Store.Insert(ctx, collection, doc)
}

func (c *countingStore) Get(ctx context.Context, collection, id string) (docstore.Record, error) {
	if err := c.touch(); err != nil {
		return docstore.Record{}, err
	}
	return c.Store.Get(ctx, collection, id)
}

func (c *countingStore) Query(ctx context.Context, collection, index string, values ...string) ([]docstore.Record, error) {
	if err := c.touch(); err != nil {
		return nil, err
	}
	return c.Store.Query(ctx, collection, index, values...)
}

func (c *countingStore) List(ctx context.Context, collection string) ([]docstore.Record, error) {
	if err := c.touch(); err != nil {
		return nil, err
	}
	return c.Store.List(ctx, collection)
}

func (c *countingStore) Replace(ctx context.Context, collection, id string, doc any) error {
	if err := c.touch(); err != nil {
		return err
	}
	return c.Store.Replace(ctx, collection, id, doc)
}

func (c *countingStore) Delete(ctx context.Context, collection, id string) error {
	if err := c.touch(); err != nil {
		return err
	}
	return c.Store.Delete(ctx, collection, id)
}

type fixture struct {
	docs      *countingStore
	mem       *docstore.MemoryStore
	store     *Store
	authority *Authority
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := docstore.NewMemory()
	docs := &countingStore{Store: mem}
	store := NewStore(docs)
	_, err := store.SeedRoles(context.Background())
	require.NoError(t, err)
	docs.calls.Store(0)
	return &fixture{docs: docs, mem: mem, store: store, authority: NewAuthority(store)}
}

func (f *fixture) grant(t *testing.T, userID, roleName, scopeID string) Role {
	t.Helper()
	role, err := f.store.FindRole(context.Background(), "", roleName)
	require.NoError(t, err)
	_, err = f.store.GrantRole(context.Background(), userID, role.ID, scopeID)
	require.NoError(t, err)
	return role
}
