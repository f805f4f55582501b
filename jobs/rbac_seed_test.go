package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/synergyos/synergyos/internal/jobs"
	"github.com/synergyos/synergyos/internal/platform/docstore"
	"github.com/synergyos/synergyos/internal/rbac"
	"github.com/synergyos/synergyos/internal/shared"
)

type stubSeeder struct {
	report rbac.SeedReport
	err    error
	calls  int
}

func (s *stubSeeder) SeedRoles(context.Context) (rbac.SeedReport, error) {
	s.calls++
	return s.report, s.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := NewSeedTask(SeedPayload{RequestedBy: "ops"})
	require.NoError(t, err)
	return task
}

func TestNewSeedTaskPayload(t *testing.T) {
	task := seedTask(t)
	assert.Equal(t, TaskRBACSeed, task.Type())

	var payload SeedPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "ops", payload.RequestedBy)
}

func TestSeedJobSeedsMemoryStore(t *testing.T) {
	docs := docstore.NewMemory()
	store := rbac.NewStore(docs)
	job := NewSeedJob(store, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(t.Context(), seedTask(t)))
	require.NoError(t, job.Handle(t.Context(), seedTask(t)))

	assert.Equal(t, 4, docs.Len(docstore.Roles))
	perms, err := store.ListPermissions(t.Context())
	require.NoError(t, err)
	assert.Len(t, perms, len(rbac.DefaultCatalog().Permissions))
}

func TestSeedJobRecordsCreatedRows(t *testing.T) {
	registry := prometheus.NewRegistry()
	seeder := &stubSeeder{report: rbac.SeedReport{PermissionsCreated: 2, RolesCreated: 1}}
	job := NewSeedJob(seeder, quietLogger(), jobmetrics.NewMetrics(registry))

	require.NoError(t, job.Handle(t.Context(), seedTask(t)))

	families, err := registry.Gather()
	require.NoError(t, err)
	rows := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "synergy_rbac_seed_rows_created_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			rows[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{"permission": 2, "role": 1}, rows)
}

func TestSeedJobRejectsBadPayload(t *testing.T) {
	seeder := &stubSeeder{}
	job := NewSeedJob(seeder, quietLogger(), nil)

	err := job.Handle(t.Context(), asynq.NewTask(TaskRBACSeed, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Zero(t, seeder.calls)
}

func TestSeedJobRetryPolicy(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		skipRetry bool
	}{
		{"store outage retried", fmt.Errorf("%w: down", shared.ErrStoreUnavailable), false},
		{"broken catalog skipped", fmt.Errorf("%w: unknown key", shared.ErrInvariantViolation), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := NewSeedJob(&stubSeeder{err: tc.err}, quietLogger(), nil)
			err := job.Handle(t.Context(), seedTask(t))
			require.Error(t, err)
			assert.Equal(t, tc.skipRetry, errors.Is(err, asynq.SkipRetry))
			assert.ErrorIs(t, err, tc.err)
		})
	}
}
