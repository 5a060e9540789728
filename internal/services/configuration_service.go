package services

import (
	"context"
	"errors"
	"strings"

	"monitoring-service/internal/models"
	"monitoring-service/internal/repository"

	"github.com/google/uuid"
)

type ConfigurationService struct {
	store repository.Store
}

func NewConfigurationService(store repository.Store) *ConfigurationService {
	return &ConfigurationService{store: store}
}

// Upsert creates or updates the configuration of (area, index code). Nil settings keep the stored
// value, or take the default when the configuration is new. Clear flags reset a threshold to unset.
func (s *ConfigurationService) Upsert(
	ctx context.Context,
	areaID uuid.UUID,
	indexCode string,
	settings models.ConfigurationSettings,
) (*models.MonitoringConfiguration, error) {
	if err := validateStruct(settings); err != nil {
		return nil, err
	}

	if _, err := s.store.GetArea(ctx, areaID); err != nil {
		return nil, err
	}
	index, err := s.resolveIndex(ctx, indexCode)
	if err != nil {
		return nil, err
	}

	cfg, err := s.store.GetConfiguration(ctx, areaID, index.ID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		cfg = &models.MonitoringConfiguration{
			AreaID:        areaID,
			IndexID:       index.ID,
			IsEnabled:     true,
			FrequencyDays: models.DefaultFrequencyDays,
			CloudCoverMax: models.DefaultCloudCoverMax,
			MinPixelCount: models.DefaultMinPixelCount,
		}
	case err != nil:
		return nil, err
	}

	if err := applySettings(cfg, settings); err != nil {
		return nil, err
	}
	if cfg.LowThreshold != nil && cfg.HighThreshold != nil && *cfg.LowThreshold >= *cfg.HighThreshold {
		return nil, models.NewValidationError("low_threshold",
			"must be lower than high_threshold (%g >= %g)", *cfg.LowThreshold, *cfg.HighThreshold)
	}

	if err := s.store.UpsertConfiguration(ctx, cfg); err != nil {
		return nil, err
	}
	cfg.IndexCode = index.Code
	return cfg, nil
}

func (s *ConfigurationService) Get(ctx context.Context, areaID uuid.UUID, indexCode string) (*models.MonitoringConfiguration, error) {
	index, err := s.resolveIndex(ctx, indexCode)
	if err != nil {
		return nil, err
	}
	cfg, err := s.store.GetConfiguration(ctx, areaID, index.ID)
	if err != nil {
		return nil, err
	}
	cfg.IndexCode = index.Code
	return cfg, nil
}

func (s *ConfigurationService) ListEnabled(ctx context.Context, filter repository.ConfigurationFilter) ([]models.MonitoringConfiguration, error) {
	return s.store.ListEnabledConfigurations(ctx, filter)
}

func (s *ConfigurationService) resolveIndex(ctx context.Context, code string) (*models.VegetationIndexDefinition, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, models.NewValidationError("index_code", "is required")
	}
	index, err := s.store.GetIndexByCode(ctx, code)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.NewValidationError("index_code", "unknown vegetation index %q", code)
	}
	return index, err
}

func applySettings(cfg *models.MonitoringConfiguration, in models.ConfigurationSettings) error {
	switch {
	case in.ClearLowThreshold && in.LowThreshold != nil:
		return models.NewValidationError("clear_low_threshold", "cannot be combined with low_threshold")
	case in.ClearHighThreshold && in.HighThreshold != nil:
		return models.NewValidationError("clear_high_threshold", "cannot be combined with high_threshold")
	case in.ClearChangeThreshold && in.ChangeThresholdPercent != nil:
		return models.NewValidationError("clear_change_threshold", "cannot be combined with change_threshold_percent")
	}

	if in.IsEnabled != nil {
		cfg.IsEnabled = *in.IsEnabled
	}
	if in.FrequencyDays != nil {
		cfg.FrequencyDays = *in.FrequencyDays
	}
	if in.LowThreshold != nil || in.ClearLowThreshold {
		cfg.LowThreshold = in.LowThreshold
	}
	if in.HighThreshold != nil || in.ClearHighThreshold {
		cfg.HighThreshold = in.HighThreshold
	}
	if in.ChangeThresholdPercent != nil || in.ClearChangeThreshold {
		cfg.ChangeThresholdPercent = in.ChangeThresholdPercent
	}
	if in.CloudCoverMax != nil {
		cfg.CloudCoverMax = *in.CloudCoverMax
	}
	if in.MinPixelCount != nil {
		cfg.MinPixelCount = *in.MinPixelCount
	}
	return nil
}
