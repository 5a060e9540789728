package services

import (
	"context"
	"testing"

	"monitoring-service/internal/models"
	"monitoring-service/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationService_DefaultsOnCreate(t *testing.T) {
	store := repository.NewMemoryStore()
	seedIndex(t, store, models.IndexNDVI)
	area := seedArea(t, store, 0)

	cfg, err := NewConfigurationService(store).Upsert(context.Background(), area.ID, "ndvi", models.ConfigurationSettings{})

	require.NoError(t, err)
	assert.True(t, cfg.IsEnabled)
	assert.Equal(t, models.DefaultFrequencyDays, cfg.FrequencyDays)
	assert.Equal(t, models.DefaultCloudCoverMax, cfg.CloudCoverMax)
	assert.Equal(t, models.DefaultMinPixelCount, cfg.MinPixelCount)
	assert.Nil(t, cfg.LowThreshold)
	assert.Equal(t, models.IndexNDVI, cfg.IndexCode)
}

func TestConfigurationService_UpdateKeepsUnsetFields(t *testing.T) {
	store := repository.NewMemoryStore()
	seedIndex(t, store, models.IndexNDVI)
	area := seedArea(t, store, 0)
	svc := NewConfigurationService(store)

	first, err := svc.Upsert(context.Background(), area.ID, models.IndexNDVI, models.ConfigurationSettings{
		LowThreshold:  ptr(0.2),
		FrequencyDays: ptr(5),
	})
	require.NoError(t, err)

	second, err := svc.Upsert(context.Background(), area.ID, models.IndexNDVI, models.ConfigurationSettings{
		HighThreshold: ptr(0.8),
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.FrequencyDays)
	require.NotNil(t, second.LowThreshold)
	assert.Equal(t, 0.2, *second.LowThreshold)
	assert.Equal(t, 0.8, *second.HighThreshold)
}

func TestConfigurationService_ClearsThresholds(t *testing.T) {
	store := repository.NewMemoryStore()
	seedIndex(t, store, models.IndexNDVI)
	area := seedArea(t, store, 0)
	svc := NewConfigurationService(store)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, area.ID, models.IndexNDVI, models.ConfigurationSettings{
		LowThreshold:           ptr(0.2),
		HighThreshold:          ptr(0.8),
		ChangeThresholdPercent: ptr(15.0),
	})
	require.NoError(t, err)

	cleared, err := svc.Upsert(ctx, area.ID, models.IndexNDVI, models.ConfigurationSettings{
		ClearLowThreshold:    true,
		ClearChangeThreshold: true,
	})
	require.NoError(t, err)
	assert.Nil(t, cleared.LowThreshold)
	assert.Nil(t, cleared.ChangeThresholdPercent)
	require.NotNil(t, cleared.HighThreshold)
	assert.Equal(t, 0.8, *cleared.HighThreshold)

	stored, err := svc.Get(ctx, area.ID, models.IndexNDVI)
	require.NoError(t, err)
	assert.Nil(t, stored.LowThreshold)
	assert.Nil(t, stored.ChangeThresholdPercent)

	_, err = svc.Upsert(ctx, area.ID, models.IndexNDVI, models.ConfigurationSettings{
		HighThreshold:      ptr(0.9),
		ClearHighThreshold: true,
	})
	assertValidationError(t, err)
	assert.Contains(t, err.Error(), "clear_high_threshold")
}

func TestConfigurationService_RejectsInvalidSettings(t *testing.T) {
	store := repository.NewMemoryStore()
	seedIndex(t, store, models.IndexNDVI)
	area := seedArea(t, store, 0)
	svc := NewConfigurationService(store)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, area.ID, models.IndexNDVI, models.ConfigurationSettings{
		LowThreshold:  ptr(0.6),
		HighThreshold: ptr(0.4),
	})
	assertValidationError(t, err)
	assert.Contains(t, err.Error(), "low_threshold")

	_, err = svc.Upsert(ctx, area.ID, models.IndexNDVI, models.ConfigurationSettings{FrequencyDays: ptr(0)})
	assertValidationError(t, err)
	assert.Contains(t, err.Error(), "frequency_days")

	_, err = svc.Upsert(ctx, area.ID, models.IndexNDVI, models.ConfigurationSettings{CloudCoverMax: ptr(101.0)})
	assertValidationError(t, err)

	_, err = svc.Upsert(ctx, area.ID, models.IndexNDVI, models.ConfigurationSettings{ChangeThresholdPercent: ptr(-1.0)})
	assertValidationError(t, err)

	_, err = svc.Upsert(ctx, area.ID, "XYZ", models.ConfigurationSettings{})
	assertValidationError(t, err)
	assert.Contains(t, err.Error(), "index_code")

	_, err = svc.Upsert(ctx, uuid.New(), models.IndexNDVI, models.ConfigurationSettings{})
	assert.ErrorIs(t, err, models.ErrNotFound)
}
