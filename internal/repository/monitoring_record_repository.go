package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"monitoring-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MonitoringRecordRepository struct {
	db *sqlx.DB
}

func NewMonitoringRecordRepository(db *sqlx.DB) *MonitoringRecordRepository {
	return &MonitoringRecordRepository{db: db}
}

const recordSelect = `
	SELECT r.id, r.area_id, r.index_id, r.image_id, v.code AS index_code,
	       r.mean_value, r.min_value, r.max_value, r.std_value, r.pixel_count,
	       r.status, r.error_message, r.acquisition_date, r.calculated_at
	FROM monitoring_record r
	JOIN vegetation_index v ON v.id = r.index_id`

// ============================================================================
// CREATE OPERATIONS
// ============================================================================

// CreateRecordIfAbsent inserts with ON CONFLICT DO NOTHING on (area_id, index_id, image_id)
// and reads back whichever row won.
func (r *MonitoringRecordRepository) CreateRecordIfAbsent(
	ctx context.Context,
	record *models.MonitoringRecord,
) (*models.MonitoringRecord, bool, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CalculatedAt.IsZero() {
		record.CalculatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO monitoring_record (
			id, area_id, index_id, image_id,
			mean_value, min_value, max_value, std_value, pixel_count,
			status, error_message, acquisition_date, calculated_at
		) VALUES (
			:id, :area_id, :index_id, :image_id,
			:mean_value, :min_value, :max_value, :std_value, :pixel_count,
			:status, :error_message, :acquisition_date, :calculated_at
		)
		ON CONFLICT (area_id, index_id, image_id) DO NOTHING`

	result, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		slog.Error("Failed to insert monitoring record",
			"area_id", record.AreaID,
			"index_id", record.IndexID,
			"image_id", record.ImageID,
			"error", err)
		return nil, false, models.StorageError("failed to insert monitoring record", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, models.StorageError("failed to check inserted monitoring record", err)
	}

	var stored models.MonitoringRecord
	err = r.db.GetContext(ctx, &stored,
		recordSelect+` WHERE r.area_id = $1 AND r.index_id = $2 AND r.image_id = $3`,
		record.AreaID, record.IndexID, record.ImageID)
	if err != nil {
		return nil, false, models.StorageError("failed to load monitoring record", err)
	}

	if affected > 0 {
		slog.Info("Created monitoring record",
			"id", stored.ID,
			"area_id", stored.AreaID,
			"index", stored.IndexCode,
			"mean", stored.MeanValue)
	}
	return &stored, affected > 0, nil
}

// ============================================================================
// READ OPERATIONS
// ============================================================================

func (r *MonitoringRecordRepository) GetRecord(ctx context.Context, id uuid.UUID) (*models.MonitoringRecord, error) {
	var record models.MonitoringRecord
	if err := r.db.GetContext(ctx, &record, recordSelect+` WHERE r.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("monitoring record %s: %w", id, models.ErrNotFound)
		}
		return nil, models.StorageError("failed to get monitoring record", err)
	}
	return &record, nil
}

func (r *MonitoringRecordRepository) HasCompletedInWindow(
	ctx context.Context,
	areaID, indexID uuid.UUID,
	from, to time.Time,
) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM monitoring_record
			WHERE area_id = $1 AND index_id = $2 AND status = 'completed'
			  AND acquisition_date BETWEEN $3 AND $4
		)`
	if err := r.db.GetContext(ctx, &exists, query, areaID, indexID, from, to); err != nil {
		return false, models.StorageError("failed to check record coverage", err)
	}
	return exists, nil
}

func (r *MonitoringRecordRepository) LastCompletedCalculation(ctx context.Context, areaID, indexID uuid.UUID) (*time.Time, error) {
	var last sql.NullTime
	query := `
		SELECT MAX(calculated_at) FROM monitoring_record
		WHERE area_id = $1 AND index_id = $2 AND status = 'completed'`
	if err := r.db.GetContext(ctx, &last, query, areaID, indexID); err != nil {
		return nil, models.StorageError("failed to get last calculation", err)
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

func (r *MonitoringRecordRepository) PreviousCompleted(ctx context.Context, record *models.MonitoringRecord) (*models.MonitoringRecord, error) {
	var previous models.MonitoringRecord
	query := recordSelect + `
		WHERE r.area_id = $1 AND r.index_id = $2 AND r.id <> $3
		  AND r.status = 'completed' AND r.calculated_at < $4
		ORDER BY r.calculated_at DESC
		LIMIT 1`

	err := r.db.GetContext(ctx, &previous, query, record.AreaID, record.IndexID, record.ID, record.CalculatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, models.StorageError("failed to get previous monitoring record", err)
	}
	return &previous, nil
}

func (r *MonitoringRecordRepository) ListRecords(ctx context.Context, filter models.RecordFilter) ([]models.MonitoringRecord, error) {
	conditions := []string{"r.area_id = $1"}
	args := []any{filter.AreaID}

	if filter.IndexCode != "" {
		args = append(args, strings.ToUpper(filter.IndexCode))
		conditions = append(conditions, fmt.Sprintf("v.code = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("r.acquisition_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("r.acquisition_date <= $%d", len(args)))
	}

	query := recordSelect + ` WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY r.acquisition_date DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var records []models.MonitoringRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		slog.Error("Failed to list monitoring records", "area_id", filter.AreaID, "error", err)
		return nil, models.StorageError("failed to list monitoring records", err)
	}
	return records, nil
}

// IndexStatistics aggregates completed records of an area per index.
func (r *MonitoringRecordRepository) IndexStatistics(ctx context.Context, areaID uuid.UUID) ([]models.IndexStatistics, error) {
	query := `
		SELECT v.code AS index_code,
		       COUNT(*) AS count,
		       AVG(r.mean_value) AS mean_of_means,
		       MIN(r.min_value) AS min_of_mins,
		       MAX(r.max_value) AS max_of_maxs,
		       AVG(r.std_value) AS avg_std,
		       MIN(r.acquisition_date) AS first_acquisition,
		       MAX(r.acquisition_date) AS last_acquisition
		FROM monitoring_record r
		JOIN vegetation_index v ON v.id = r.index_id
		WHERE r.area_id = $1 AND r.status = 'completed'
		GROUP BY v.code
		ORDER BY v.code`

	var stats []models.IndexStatistics
	if err := r.db.SelectContext(ctx, &stats, query, areaID); err != nil {
		return nil, models.StorageError("failed to aggregate monitoring records", err)
	}
	return stats, nil
}

// ============================================================================
// DELETE OPERATIONS
// ============================================================================

func (r *MonitoringRecordRepository) DeleteRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM monitoring_record WHERE calculated_at < $1`, cutoff)
	if err != nil {
		return 0, models.StorageError("failed to delete old monitoring records", err)
	}
	deleted, _ := result.RowsAffected()
	slog.Info("Deleted old monitoring records", "cutoff", cutoff, "count", deleted)
	return deleted, nil
}
