package app

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synergyos/synergyos/internal/platform/docstore"
)

func TestOpenDocstoreMemory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, closeFn, err := OpenDocstore(t.Context(), &Config{DocstoreDriver: DriverMemory}, logger)
	require.NoError(t, err)
	defer closeFn()

	_, ok := store.(*docstore.MemoryStore)
	assert.True(t, ok)
}

func TestOpenDocstoreUnknownDriver(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, _, err := OpenDocstore(t.Context(), &Config{DocstoreDriver: "bolt"}, logger)
	assert.Error(t, err)
}
