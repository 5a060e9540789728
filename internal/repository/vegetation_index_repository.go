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

type VegetationIndexRepository struct {
	db *sqlx.DB
}

func NewVegetationIndexRepository(db *sqlx.DB) *VegetationIndexRepository {
	return &VegetationIndexRepository{db: db}
}

// UpsertIndex inserts by code or refreshes name, description, formula and active flag.
// xmax = 0 identifies a row produced by the INSERT branch.
func (r *VegetationIndexRepository) UpsertIndex(ctx context.Context, index *models.VegetationIndexDefinition) (bool, error) {
	if index.ID == uuid.Nil {
		index.ID = uuid.New()
	}
	index.Code = strings.ToUpper(index.Code)
	if index.CreatedAt.IsZero() {
		index.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO vegetation_index (id, code, name, description, formula, is_active, created_at)
		VALUES (:id, :code, :name, :description, :formula, :is_active, :created_at)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			formula = EXCLUDED.formula,
			is_active = EXCLUDED.is_active
		RETURNING id, (xmax = 0) AS inserted`

	rows, err := r.db.NamedQueryContext(ctx, query, index)
	if err != nil {
		slog.Error("Failed to upsert vegetation index", "code", index.Code, "error", err)
		return false, models.StorageError("failed to upsert vegetation index", err)
	}
	defer rows.Close()

	var inserted bool
	if rows.Next() {
		if err := rows.Scan(&index.ID, &inserted); err != nil {
			return false, models.StorageError("failed to scan vegetation index", err)
		}
	}
	if err := rows.Err(); err != nil {
		return false, models.StorageError("failed to upsert vegetation index", err)
	}
	return inserted, nil
}

func (r *VegetationIndexRepository) GetIndexByCode(ctx context.Context, code string) (*models.VegetationIndexDefinition, error) {
	var index models.VegetationIndexDefinition
	err := r.db.GetContext(ctx, &index, `SELECT * FROM vegetation_index WHERE code = $1`, strings.ToUpper(code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("vegetation index %s: %w", code, models.ErrNotFound)
		}
		return nil, models.StorageError("failed to get vegetation index", err)
	}
	return &index, nil
}

func (r *VegetationIndexRepository) ListIndices(ctx context.Context, activeOnly bool) ([]models.VegetationIndexDefinition, error) {
	var indices []models.VegetationIndexDefinition
	err := r.db.SelectContext(ctx, &indices,
		`SELECT * FROM vegetation_index WHERE (NOT $1 OR is_active) ORDER BY code`, activeOnly)
	if err != nil {
		return nil, models.StorageError("failed to list vegetation indices", err)
	}
	return indices, nil
}
