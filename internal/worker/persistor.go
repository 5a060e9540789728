package worker

import (
	"context"
)

// WorkerPersistor keeps the execution history of queued jobs.
type WorkerPersistor interface {
	CreateJobExecution(ctx context.Context, execution *WorkerJobExecution) error
	UpdateJobExecution(ctx context.Context, execution *WorkerJobExecution) error
	GetJobExecutionsByJobID(ctx context.Context, jobID string, limit int) ([]*WorkerJobExecution, error)
}
