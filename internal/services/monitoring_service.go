package services

import (
	"context"
	"strings"
	"time"

	"monitoring-service/internal/models"
	"monitoring-service/internal/repository"

	"github.com/google/uuid"
)

// MonitoringService answers read queries over records and alerts and resolves alerts.
type MonitoringService struct {
	store repository.Store
	now   func() time.Time
}

func NewMonitoringService(store repository.Store) *MonitoringService {
	return &MonitoringService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// GetRecords lists the records of an area, newest acquisition first.
// indexCode, from and to are optional.
func (s *MonitoringService) GetRecords(
	ctx context.Context,
	areaID uuid.UUID,
	indexCode string,
	from, to *time.Time,
) ([]models.MonitoringRecord, error) {
	if from != nil && to != nil && from.After(*to) {
		return nil, models.NewValidationError("from", "must not be after to")
	}
	if _, err := s.store.GetArea(ctx, areaID); err != nil {
		return nil, err
	}

	records, err := s.store.ListRecords(ctx, models.RecordFilter{
		AreaID:    areaID,
		IndexCode: strings.ToUpper(strings.TrimSpace(indexCode)),
		From:      from,
		To:        to,
	})
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.MonitoringRecord{}
	}
	return records, nil
}

// GetAlerts lists the alerts of an area. A nil resolved returns both states.
func (s *MonitoringService) GetAlerts(ctx context.Context, areaID uuid.UUID, resolved *bool) ([]models.Alert, error) {
	if _, err := s.store.GetArea(ctx, areaID); err != nil {
		return nil, err
	}
	alerts, err := s.store.ListAlerts(ctx, models.AlertFilter{AreaID: areaID, Resolved: resolved})
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	return alerts, nil
}

// ResolveAlert marks an alert resolved. Resolving twice keeps the first resolution time.
func (s *MonitoringService) ResolveAlert(ctx context.Context, alertID uuid.UUID) (*models.Alert, error) {
	return s.store.ResolveAlert(ctx, alertID, s.now())
}

func (s *MonitoringService) GetRunExecutions(ctx context.Context, runID uuid.UUID) ([]models.PipelineExecution, error) {
	return s.store.ListExecutions(ctx, runID)
}
