package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/synergyos/synergyos/internal/jobs"
	"github.com/synergyos/synergyos/internal/rbac"
	"github.com/synergyos/synergyos/internal/shared"
)

// Seeder applies the default RBAC catalog.
type Seeder interface {
	SeedRoles(ctx context.Context) (rbac.SeedReport, error)
}

// SeedJob handles rbac:seed tasks.
type SeedJob struct {
	Seeder  Seeder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSeedJob wires dependencies for the seed handler.
func NewSeedJob(seeder Seeder, logger *slog.Logger, metrics *jobmetrics.Metrics) *SeedJob {
	return &SeedJob{Seeder: seeder, Logger: logger, Metrics: metrics}
}

// Handle processes rbac:seed tasks. Store outages are retried by asynq;
// catalog invariant failures are not.
func (j *SeedJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Seeder == nil {
		return errors.New("rbac seed: handler not configured")
	}
	var payload SeedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskRBACSeed)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("requested_by", payload.RequestedBy))
	report, err := j.Seeder.SeedRoles(ctx)
	if err != nil {
		logger.Error("rbac seed failed", slog.Any("error", err))
		if errors.Is(err, shared.ErrInvariantViolation) || errors.Is(err, shared.ErrValidation) {
			return fmt.Errorf("rbac seed: %w: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("rbac seed: %w", err)
	}

	j.Metrics.AddSeedRows("permission", report.PermissionsCreated)
	j.Metrics.AddSeedRows("role", report.RolesCreated)
	j.Metrics.AddSeedRows("role_permission", report.RolePermissionsCreated)
	logger.Info("rbac seed complete",
		slog.Int("permissions_created", report.PermissionsCreated),
		slog.Int("roles_created", report.RolesCreated),
		slog.Int("links_created", report.RolePermissionsCreated),
		slog.Int("links_existing", report.RolePermissionsExisting))
	return nil
}

func (j *SeedJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
