package worker

import (
	"time"

	"monitoring-service/internal/utils"

	"github.com/google/uuid"
)

// WorkerJobStatus represents the execution state of a job
type WorkerJobStatus string

const (
	JobStatusPending   WorkerJobStatus = "pending"
	JobStatusRunning   WorkerJobStatus = "running"
	JobStatusCompleted WorkerJobStatus = "completed"
	JobStatusFailed    WorkerJobStatus = "failed"
	JobStatusRetrying  WorkerJobStatus = "retrying"
)

// WorkerJobExecution represents one attempt of a queued job
type WorkerJobExecution struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	JobID         string          `db:"job_id" json:"job_id"`
	JobType       string          `db:"job_type" json:"job_type"`
	Status        WorkerJobStatus `db:"status" json:"status"`
	RetryCount    int             `db:"retry_count" json:"retry_count"`
	MaxRetries    int             `db:"max_retries" json:"max_retries"`
	StartedAt     *time.Time      `db:"started_at" json:"started_at,omitempty"`
	CompletedAt   *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	ErrorMessage  *string         `db:"error_message" json:"error_message,omitempty"`
	ResultSummary utils.JSONMap   `db:"result_summary" json:"result_summary,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// IsValidJobStatus checks if a job status is valid
func IsValidJobStatus(status WorkerJobStatus) bool {
	switch status {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusRetrying:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further attempt follows this status.
func (s WorkerJobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}
