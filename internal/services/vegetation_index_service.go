package services

import (
	"context"
	"fmt"
	"log/slog"

	"monitoring-service/internal/catalog"
	"monitoring-service/internal/models"
	"monitoring-service/internal/repository"
)

type SeedResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

type VegetationIndexService struct {
	store repository.IndexStore
}

func NewVegetationIndexService(store repository.IndexStore) *VegetationIndexService {
	return &VegetationIndexService{store: store}
}

// Seed upserts every catalog index. Running it twice only updates.
func (s *VegetationIndexService) Seed(ctx context.Context) (SeedResult, error) {
	indices, err := catalog.Indices()
	if err != nil {
		return SeedResult{}, err
	}

	var result SeedResult
	for i := range indices {
		created, err := s.store.UpsertIndex(ctx, &indices[i])
		if err != nil {
			return result, fmt.Errorf("failed to seed index %s: %w", indices[i].Code, err)
		}
		if created {
			result.Created++
			slog.Info("Created vegetation index", "code", indices[i].Code)
		} else {
			result.Updated++
			slog.Info("Updated vegetation index", "code", indices[i].Code)
		}
	}

	slog.Info("Vegetation index catalog seeded", "created", result.Created, "updated", result.Updated)
	return result, nil
}

func (s *VegetationIndexService) List(ctx context.Context, activeOnly bool) ([]models.VegetationIndexDefinition, error) {
	return s.store.ListIndices(ctx, activeOnly)
}
