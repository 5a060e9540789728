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

type AreaRepository struct {
	db *sqlx.DB
}

func NewAreaRepository(db *sqlx.DB) *AreaRepository {
	return &AreaRepository{db: db}
}

const areaColumns = `
	id, name, description, ST_AsBinary(geometry) AS geometry, owner_id, is_active, crop_type,
	area_hectares, centroid_lat, centroid_lon, created_at, updated_at`

// ============================================================================
// CREATE OPERATIONS
// ============================================================================

// CreateArea persists an area. Derived fields must already be populated by the caller.
func (r *AreaRepository) CreateArea(ctx context.Context, area *models.AreaOfInterest) error {
	if area.ID == uuid.Nil {
		area.ID = uuid.New()
	}
	now := time.Now().UTC()
	area.CreatedAt = now
	area.UpdatedAt = now

	slog.Info("Creating area of interest",
		"id", area.ID,
		"owner_id", area.OwnerID,
		"area_hectares", area.AreaHectares)

	query := `
		INSERT INTO area_of_interest (
			id, name, description, geometry, owner_id, is_active, crop_type,
			area_hectares, centroid_lat, centroid_lon, created_at, updated_at
		) VALUES (
			:id, :name, :description, ST_GeomFromEWKT(:geometry), :owner_id, :is_active, :crop_type,
			:area_hectares, :centroid_lat, :centroid_lon, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, area); err != nil {
		slog.Error("Failed to create area of interest", "id", area.ID, "error", err)
		return models.StorageError("failed to create area", err)
	}
	return nil
}

// ============================================================================
// READ OPERATIONS
// ============================================================================

func (r *AreaRepository) GetArea(ctx context.Context, id uuid.UUID) (*models.AreaOfInterest, error) {
	query := `SELECT` + areaColumns + ` FROM area_of_interest WHERE id = $1`

	var area models.AreaOfInterest
	if err := r.db.GetContext(ctx, &area, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("area %s: %w", id, models.ErrNotFound)
		}
		slog.Error("Failed to get area of interest", "id", id, "error", err)
		return nil, models.StorageError("failed to get area", err)
	}
	return &area, nil
}

func (r *AreaRepository) ListAreas(ctx context.Context, ownerID *uuid.UUID, activeOnly bool) ([]models.AreaOfInterest, error) {
	query := `SELECT` + areaColumns + `
		FROM area_of_interest
		WHERE ($1::uuid IS NULL OR owner_id = $1)
		  AND (NOT $2 OR is_active)
		ORDER BY created_at DESC`

	var areas []models.AreaOfInterest
	if err := r.db.SelectContext(ctx, &areas, query, ownerID, activeOnly); err != nil {
		slog.Error("Failed to list areas of interest", "error", err)
		return nil, models.StorageError("failed to list areas", err)
	}
	return areas, nil
}

// ============================================================================
// UPDATE OPERATIONS
// ============================================================================

func (r *AreaRepository) UpdateArea(ctx context.Context, area *models.AreaOfInterest) error {
	area.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE area_of_interest SET
			name = :name,
			description = :description,
			geometry = ST_GeomFromEWKT(:geometry),
			is_active = :is_active,
			crop_type = :crop_type,
			area_hectares = :area_hectares,
			centroid_lat = :centroid_lat,
			centroid_lon = :centroid_lon,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, area)
	if err != nil {
		slog.Error("Failed to update area of interest", "id", area.ID, "error", err)
		return models.StorageError("failed to update area", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("area %s: %w", area.ID, models.ErrNotFound)
	}
	return nil
}

// ============================================================================
// DELETE OPERATIONS
// ============================================================================

// DeleteArea removes the area. Configurations, records, alerts and executions cascade.
func (r *AreaRepository) DeleteArea(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM area_of_interest WHERE id = $1`, id)
	if err != nil {
		slog.Error("Failed to delete area of interest", "id", id, "error", err)
		return models.StorageError("failed to delete area", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("area %s: %w", id, models.ErrNotFound)
	}
	slog.Info("Deleted area of interest", "id", id)
	return nil
}
