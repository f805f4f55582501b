package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/synergyos/synergyos/internal/platform/db"
	"github.com/synergyos/synergyos/internal/platform/docstore"
)

// OpenDocstore connects the configured document store driver. On success
// the returned close func is non-nil; on error it is nil.
func OpenDocstore(ctx context.Context, cfg *Config, logger *slog.Logger) (docstore.Store, func(), error) {
	switch cfg.DocstoreDriver {
	case DriverMemory:
		logger.Warn("using in-memory docstore, data is lost on exit")
		return docstore.NewMemory(), func() {}, nil
	case DriverPostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
		if err != nil {
			return nil, nil, err
		}
		store := docstore.NewPostgres(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported docstore driver %q", cfg.DocstoreDriver)
	}
}
