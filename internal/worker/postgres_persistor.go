package worker

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresPersistor implements WorkerPersistor on the worker_job_execution table
type PostgresPersistor struct {
	db *sqlx.DB
}

func NewPostgresPersistor(db *sqlx.DB) *PostgresPersistor {
	return &PostgresPersistor{db: db}
}

// CreateJobExecution creates a new job execution record
func (p *PostgresPersistor) CreateJobExecution(ctx context.Context, execution *WorkerJobExecution) error {
	query := `
		INSERT INTO worker_job_execution (
			id, job_id, job_type, status, retry_count, max_retries,
			started_at, completed_at, error_message, result_summary, created_at
		) VALUES (
			:id, :job_id, :job_type, :status, :retry_count, :max_retries,
			:started_at, :completed_at, :error_message, :result_summary, :created_at
		)`

	if _, err := p.db.NamedExecContext(ctx, query, execution); err != nil {
		return fmt.Errorf("failed to create job execution: %w", err)
	}
	return nil
}

// UpdateJobExecution updates an existing job execution record
func (p *PostgresPersistor) UpdateJobExecution(ctx context.Context, execution *WorkerJobExecution) error {
	query := `
		UPDATE worker_job_execution SET
			status = :status,
			retry_count = :retry_count,
			started_at = :started_at,
			completed_at = :completed_at,
			error_message = :error_message,
			result_summary = :result_summary
		WHERE id = :id`

	result, err := p.db.NamedExecContext(ctx, query, execution)
	if err != nil {
		return fmt.Errorf("failed to update job execution: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("job execution not found: %s", execution.ID)
	}
	return nil
}

// GetJobExecutionsByJobID returns the attempts of a job, newest first
func (p *PostgresPersistor) GetJobExecutionsByJobID(ctx context.Context, jobID string, limit int) ([]*WorkerJobExecution, error) {
	query := `
		SELECT id, job_id, job_type, status, retry_count, max_retries,
		       started_at, completed_at, error_message, result_summary, created_at
		FROM worker_job_execution
		WHERE job_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var executions []*WorkerJobExecution
	if err := p.db.SelectContext(ctx, &executions, query, jobID, limit); err != nil {
		return nil, fmt.Errorf("failed to query job executions: %w", err)
	}
	return executions, nil
}
