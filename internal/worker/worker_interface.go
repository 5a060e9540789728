package worker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Job types handled by the monitoring workers.
const (
	JobTypeRunPipeline    = "run-pipeline"
	JobTypeEvaluateAlerts = "evaluate-alerts"
	JobTypeRetention      = "cleanup-retention"
)

type JobPayload struct {
	JobID      string         `json:"job_id"`
	Type       string         `json:"type"`
	Params     map[string]any `json:"params"`
	MaxRetries int            `json:"max_retries"`
	RetryCount int            `json:"retry_count"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

// JobHandler executes one job. The returned map is stored as the execution's result summary.
type JobHandler func(ctx context.Context, params map[string]any) (map[string]any, error)

// ErrPermanent marks a job failure that must not be retried.
var ErrPermanent = errors.New("permanent job failure")

// Queue transports jobs between submitters and pool workers.
type Queue interface {
	// Enqueue adds the job unless a job with the same id is already pending or running.
	// It reports whether the job was accepted.
	Enqueue(ctx context.Context, job JobPayload) (bool, error)
	// Requeue pushes a retry of an already claimed job.
	Requeue(ctx context.Context, job JobPayload) error
	// Dequeue waits up to wait for a job and returns nil when none arrived.
	Dequeue(ctx context.Context, wait time.Duration) (*JobPayload, error)
	// Release frees the job id once the job reached a terminal state.
	Release(ctx context.Context, jobID string) error
	Close() error
}

type Pool interface {
	Start(ctx context.Context, managerWg *sync.WaitGroup)

	SubmitJob(ctx context.Context, job JobPayload) (bool, error)

	RegisterJob(jobType string, handler JobHandler)

	GetName() string
}
