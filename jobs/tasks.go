package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuthzWarmup pre-populates effective permission caches after a
	// manifest sync or bulk role change.
	TaskAuthzWarmup = "authz:warmup"
)

// AuthzWarmupPayload scopes a warmup run. An empty StaffIDs slice means
// every active staff account.
type AuthzWarmupPayload struct {
	StaffIDs []int64 `json:"staff_ids,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// NewAuthzWarmupTask constructs an Asynq task.
func NewAuthzWarmupTask(payload AuthzWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuthzWarmup, data), nil
}
