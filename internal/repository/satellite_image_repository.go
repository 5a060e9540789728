package repository

import (
	"context"
	"log/slog"
	"time"

	"monitoring-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type SatelliteImageRepository struct {
	db *sqlx.DB
}

func NewSatelliteImageRepository(db *sqlx.DB) *SatelliteImageRepository {
	return &SatelliteImageRepository{db: db}
}

// GetOrCreateImage inserts the image unless its external id is already known and returns the stored row.
// Stored images are never updated.
func (r *SatelliteImageRepository) GetOrCreateImage(ctx context.Context, image *models.SatelliteImage) (*models.SatelliteImage, error) {
	if image.ID == uuid.Nil {
		image.ID = uuid.New()
	}
	if image.CreatedAt.IsZero() {
		image.CreatedAt = time.Now().UTC()
	}

	insert := `
		INSERT INTO satellite_image (
			id, provider, external_id, acquisition_date, cloud_cover, resolution_m, bounds, created_at
		) VALUES (
			:id, :provider, :external_id, :acquisition_date, :cloud_cover, :resolution_m,
			ST_GeomFromEWKT(:bounds), :created_at
		)
		ON CONFLICT (external_id) DO NOTHING`

	if _, err := r.db.NamedExecContext(ctx, insert, image); err != nil {
		slog.Error("Failed to insert satellite image", "external_id", image.ExternalID, "error", err)
		return nil, models.StorageError("failed to insert satellite image", err)
	}

	var stored models.SatelliteImage
	query := `
		SELECT id, provider, external_id, acquisition_date, cloud_cover, resolution_m,
		       ST_AsBinary(bounds) AS bounds, created_at
		FROM satellite_image WHERE external_id = $1`
	if err := r.db.GetContext(ctx, &stored, query, image.ExternalID); err != nil {
		return nil, models.StorageError("failed to load satellite image", err)
	}
	return &stored, nil
}
