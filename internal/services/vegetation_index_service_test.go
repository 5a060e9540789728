package services

import (
	"context"
	"testing"

	"monitoring-service/internal/models"
	"monitoring-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVegetationIndexService_SeedIsRepeatable(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewVegetationIndexService(store)

	first, err := svc.Seed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Created: 11}, first)

	second, err := svc.Seed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Updated: 11}, second)

	indices, err := svc.List(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, indices, 11)

	ndvi, err := store.GetIndexByCode(context.Background(), "ndvi")
	require.NoError(t, err)
	assert.Equal(t, models.IndexNDVI, ndvi.Code)
	assert.Contains(t, ndvi.Formula, "NIR")
}
