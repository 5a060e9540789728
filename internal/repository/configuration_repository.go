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

type ConfigurationRepository struct {
	db *sqlx.DB
}

func NewConfigurationRepository(db *sqlx.DB) *ConfigurationRepository {
	return &ConfigurationRepository{db: db}
}

const configurationSelect = `
	SELECT c.id, c.area_id, c.index_id, v.code AS index_code, c.is_enabled, c.frequency_days,
	       c.low_threshold, c.high_threshold, c.change_threshold_percent,
	       c.cloud_cover_max, c.min_pixel_count, c.created_at, c.updated_at
	FROM monitoring_configuration c
	JOIN vegetation_index v ON v.id = c.index_id`

// UpsertConfiguration writes the configuration for (area, index). On conflict the stored id and
// created_at are kept and returned into cfg.
func (r *ConfigurationRepository) UpsertConfiguration(ctx context.Context, cfg *models.MonitoringConfiguration) error {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	query := `
		INSERT INTO monitoring_configuration (
			id, area_id, index_id, is_enabled, frequency_days,
			low_threshold, high_threshold, change_threshold_percent,
			cloud_cover_max, min_pixel_count, created_at, updated_at
		) VALUES (
			:id, :area_id, :index_id, :is_enabled, :frequency_days,
			:low_threshold, :high_threshold, :change_threshold_percent,
			:cloud_cover_max, :min_pixel_count, :created_at, :updated_at
		)
		ON CONFLICT (area_id, index_id) DO UPDATE SET
			is_enabled = EXCLUDED.is_enabled,
			frequency_days = EXCLUDED.frequency_days,
			low_threshold = EXCLUDED.low_threshold,
			high_threshold = EXCLUDED.high_threshold,
			change_threshold_percent = EXCLUDED.change_threshold_percent,
			cloud_cover_max = EXCLUDED.cloud_cover_max,
			min_pixel_count = EXCLUDED.min_pixel_count,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	rows, err := r.db.NamedQueryContext(ctx, query, cfg)
	if err != nil {
		slog.Error("Failed to upsert monitoring configuration",
			"area_id", cfg.AreaID,
			"index_id", cfg.IndexID,
			"error", err)
		return models.StorageError("failed to upsert monitoring configuration", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&cfg.ID, &cfg.CreatedAt); err != nil {
			return models.StorageError("failed to scan monitoring configuration", err)
		}
	}
	if err := rows.Err(); err != nil {
		return models.StorageError("failed to upsert monitoring configuration", err)
	}

	slog.Info("Upserted monitoring configuration",
		"id", cfg.ID,
		"area_id", cfg.AreaID,
		"index_id", cfg.IndexID,
		"enabled", cfg.IsEnabled)
	return nil
}

func (r *ConfigurationRepository) GetConfiguration(ctx context.Context, areaID, indexID uuid.UUID) (*models.MonitoringConfiguration, error) {
	var cfg models.MonitoringConfiguration
	err := r.db.GetContext(ctx, &cfg, configurationSelect+` WHERE c.area_id = $1 AND c.index_id = $2`, areaID, indexID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("configuration for area %s index %s: %w", areaID, indexID, models.ErrNotFound)
		}
		return nil, models.StorageError("failed to get monitoring configuration", err)
	}
	return &cfg, nil
}

func (r *ConfigurationRepository) ListEnabledConfigurations(ctx context.Context, filter ConfigurationFilter) ([]models.MonitoringConfiguration, error) {
	query := configurationSelect + `
		JOIN area_of_interest a ON a.id = c.area_id
		WHERE c.is_enabled AND a.is_active AND v.is_active
		  AND ($1::uuid IS NULL OR c.area_id = $1)
		  AND ($2 = '' OR v.code = $2)
		ORDER BY c.area_id, v.code`

	var configs []models.MonitoringConfiguration
	if err := r.db.SelectContext(ctx, &configs, query, filter.AreaID, strings.ToUpper(filter.IndexCode)); err != nil {
		slog.Error("Failed to list enabled configurations", "error", err)
		return nil, models.StorageError("failed to list enabled configurations", err)
	}
	return configs, nil
}
