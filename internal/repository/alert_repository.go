package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"monitoring-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type AlertRepository struct {
	db *sqlx.DB
}

func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `
	id, area_id, index_id, record_id, alert_type, message, threshold_value, actual_value,
	severity, is_resolved, created_at, resolved_at`

// CreateAlertIfAbsent inserts the alert unless the record already carries one of the same type.
func (r *AlertRepository) CreateAlertIfAbsent(ctx context.Context, alert *models.Alert) (*models.Alert, bool, error) {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO monitoring_alert (` + alertColumns + `)
		VALUES (
			:id, :area_id, :index_id, :record_id, :alert_type, :message, :threshold_value, :actual_value,
			:severity, :is_resolved, :created_at, :resolved_at
		)
		ON CONFLICT (record_id, alert_type) DO NOTHING`

	result, err := r.db.NamedExecContext(ctx, query, alert)
	if err != nil {
		slog.Error("Failed to insert alert",
			"record_id", alert.RecordID,
			"alert_type", alert.AlertType,
			"error", err)
		return nil, false, models.StorageError("failed to insert alert", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, models.StorageError("failed to check inserted alert", err)
	}

	var stored models.Alert
	err = r.db.GetContext(ctx, &stored,
		`SELECT`+alertColumns+` FROM monitoring_alert WHERE record_id = $1 AND alert_type = $2`,
		alert.RecordID, alert.AlertType)
	if err != nil {
		return nil, false, models.StorageError("failed to load alert", err)
	}
	return &stored, affected > 0, nil
}

func (r *AlertRepository) GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	var alert models.Alert
	if err := r.db.GetContext(ctx, &alert, `SELECT`+alertColumns+` FROM monitoring_alert WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("alert %s: %w", id, models.ErrNotFound)
		}
		return nil, models.StorageError("failed to get alert", err)
	}
	return &alert, nil
}

func (r *AlertRepository) ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error) {
	query := `SELECT` + alertColumns + `
		FROM monitoring_alert
		WHERE area_id = $1
		  AND ($2::boolean IS NULL OR is_resolved = $2)
		ORDER BY created_at DESC`
	args := []any{filter.AreaID, filter.Resolved}
	if filter.Limit > 0 {
		query += ` LIMIT $3`
		args = append(args, filter.Limit)
	}

	var alerts []models.Alert
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		slog.Error("Failed to list alerts", "area_id", filter.AreaID, "error", err)
		return nil, models.StorageError("failed to list alerts", err)
	}
	return alerts, nil
}

// ResolveAlert marks the alert resolved. Resolving twice keeps the first resolution time.
func (r *AlertRepository) ResolveAlert(ctx context.Context, id uuid.UUID, resolvedAt time.Time) (*models.Alert, error) {
	var alert models.Alert
	query := `
		UPDATE monitoring_alert
		SET is_resolved = TRUE, resolved_at = COALESCE(resolved_at, $2)
		WHERE id = $1
		RETURNING` + alertColumns

	if err := r.db.GetContext(ctx, &alert, query, id, resolvedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("alert %s: %w", id, models.ErrNotFound)
		}
		slog.Error("Failed to resolve alert", "id", id, "error", err)
		return nil, models.StorageError("failed to resolve alert", err)
	}
	slog.Info("Resolved alert", "id", id)
	return &alert, nil
}

func (r *AlertRepository) DeleteResolvedAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM monitoring_alert WHERE is_resolved AND resolved_at < $1`, cutoff)
	if err != nil {
		return 0, models.StorageError("failed to delete resolved alerts", err)
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}
