package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRBACSeed seeds the permission and role catalog.
	TaskRBACSeed = "rbac:seed"
)

// seedUniqueWindow collapses duplicate seed requests enqueued close together.
const seedUniqueWindow = time.Minute

// SeedPayload describes who asked for a seeding run.
type SeedPayload struct {
	RequestedBy string `json:"requested_by"`
	Reason      string `json:"reason,omitempty"`
}

// NewSeedTask constructs an rbac:seed task.
func NewSeedTask(payload SeedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRBACSeed, data,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(5),
		asynq.Unique(seedUniqueWindow),
	), nil
}
