package services

import (
	"context"
	"errors"
	"log/slog"

	"monitoring-service/internal/event"
	"monitoring-service/internal/metrics"
	"monitoring-service/internal/models"
	"monitoring-service/internal/repository"

	"github.com/google/uuid"
)

// AlertNotifier delivers created alerts to downstream consumers.
type AlertNotifier interface {
	PublishAlert(ctx context.Context, event event.AlertEvent) error
}

// AlertEvaluator loads the context of a committed record, runs the AlertEngine and persists the result.
type AlertEvaluator struct {
	store    repository.Store
	engine   *AlertEngine
	notifier AlertNotifier
}

// NewAlertEvaluator creates an evaluator. notifier may be nil.
func NewAlertEvaluator(store repository.Store, engine *AlertEngine, notifier AlertNotifier) *AlertEvaluator {
	return &AlertEvaluator{store: store, engine: engine, notifier: notifier}
}

// EvaluateRecord raises the alerts of a completed record and returns the ones created by this call.
// Records in any other status, or without a configuration, produce nothing. Re-evaluating the same
// record never duplicates an alert.
func (e *AlertEvaluator) EvaluateRecord(ctx context.Context, recordID uuid.UUID) ([]models.Alert, error) {
	record, err := e.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.Status != models.RecordStatusCompleted {
		slog.Info("Skipping alert evaluation for record not completed",
			"record_id", record.ID,
			"status", record.Status)
		return nil, nil
	}

	cfg, err := e.store.GetConfiguration(ctx, record.AreaID, record.IndexID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	previous, err := e.store.PreviousCompleted(ctx, record)
	if err != nil {
		return nil, err
	}

	var created []models.Alert
	for _, candidate := range e.engine.Evaluate(record, cfg, previous) {
		alert := candidate
		stored, isNew, err := e.store.CreateAlertIfAbsent(ctx, &alert)
		if err != nil {
			return created, err
		}
		if !isNew {
			continue
		}

		metrics.AlertsRaised.WithLabelValues(string(stored.AlertType), string(stored.Severity)).Inc()
		slog.Info("Alert raised",
			"alert_id", stored.ID,
			"record_id", stored.RecordID,
			"type", stored.AlertType,
			"severity", stored.Severity,
			"actual", stored.ActualValue)
		created = append(created, *stored)
		e.publish(ctx, *stored)
	}
	return created, nil
}

// RecordCompleted evaluates inline. It lets offline runs skip the job queue.
func (e *AlertEvaluator) RecordCompleted(ctx context.Context, record *models.MonitoringRecord) error {
	_, err := e.EvaluateRecord(ctx, record.ID)
	return err
}

func (e *AlertEvaluator) publish(ctx context.Context, alert models.Alert) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.PublishAlert(ctx, event.NewAlertEvent(alert)); err != nil {
		slog.Error("Failed to publish alert event", "alert_id", alert.ID, "error", err)
	}
}
