package services

import (
	"context"
	"log/slog"
	"time"

	"monitoring-service/internal/models"
	"monitoring-service/internal/repository"
)

const DefaultRetentionDays = 365

type RetentionResult struct {
	Cutoff         time.Time `json:"cutoff"`
	RecordsDeleted int64     `json:"records_deleted"`
	AlertsDeleted  int64     `json:"alerts_deleted"`
}

// RetentionService removes monitoring history older than the retention window.
type RetentionService struct {
	store repository.Store
	now   func() time.Time
}

func NewRetentionService(store repository.Store) *RetentionService {
	return &RetentionService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Cleanup deletes records calculated and alerts resolved before now - daysToKeep.
// Alerts of a deleted record go with it.
func (s *RetentionService) Cleanup(ctx context.Context, daysToKeep int) (RetentionResult, error) {
	if daysToKeep <= 0 {
		return RetentionResult{}, models.NewValidationError("days_to_keep", "must be positive, got %d", daysToKeep)
	}

	result := RetentionResult{Cutoff: s.now().AddDate(0, 0, -daysToKeep)}

	alerts, err := s.store.DeleteResolvedAlertsBefore(ctx, result.Cutoff)
	if err != nil {
		return result, err
	}
	result.AlertsDeleted = alerts

	records, err := s.store.DeleteRecordsBefore(ctx, result.Cutoff)
	if err != nil {
		return result, err
	}
	result.RecordsDeleted = records

	slog.Info("Retention cleanup finished",
		"cutoff", result.Cutoff,
		"records_deleted", result.RecordsDeleted,
		"alerts_deleted", result.AlertsDeleted)
	return result, nil
}
