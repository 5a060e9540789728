package repository

import (
	"context"
	"log/slog"
	"time"

	"monitoring-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ExecutionRepository struct {
	db *sqlx.DB
}

func NewExecutionRepository(db *sqlx.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

func (r *ExecutionRepository) CreateExecution(ctx context.Context, execution *models.PipelineExecution) error {
	if execution.ID == uuid.Nil {
		execution.ID = uuid.New()
	}
	if execution.StartedAt.IsZero() {
		execution.StartedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO pipeline_execution (
			id, run_id, area_id, index_id, status, error_message, records_created, started_at, completed_at
		) VALUES (
			:id, :run_id, :area_id, :index_id, :status, :error_message, :records_created, :started_at, :completed_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, execution); err != nil {
		slog.Error("Failed to create pipeline execution", "run_id", execution.RunID, "error", err)
		return models.StorageError("failed to create pipeline execution", err)
	}
	return nil
}

func (r *ExecutionRepository) FinishExecution(ctx context.Context, execution *models.PipelineExecution) error {
	if execution.CompletedAt == nil {
		now := time.Now().UTC()
		execution.CompletedAt = &now
	}

	query := `
		UPDATE pipeline_execution SET
			status = :status,
			error_message = :error_message,
			records_created = :records_created,
			completed_at = :completed_at
		WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, execution); err != nil {
		slog.Error("Failed to finish pipeline execution", "id", execution.ID, "error", err)
		return models.StorageError("failed to finish pipeline execution", err)
	}
	return nil
}

func (r *ExecutionRepository) ListExecutions(ctx context.Context, runID uuid.UUID) ([]models.PipelineExecution, error) {
	var executions []models.PipelineExecution
	err := r.db.SelectContext(ctx, &executions,
		`SELECT * FROM pipeline_execution WHERE run_id = $1 ORDER BY started_at`, runID)
	if err != nil {
		return nil, models.StorageError("failed to list pipeline executions", err)
	}
	return executions, nil
}
