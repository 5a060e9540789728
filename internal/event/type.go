package event

import (
	"time"

	"monitoring-service/internal/models"

	"github.com/google/uuid"
)

// AlertEvent is published once for every alert row created by the alert evaluator.
type AlertEvent struct {
	AlertID        uuid.UUID            `json:"alert_id"`
	AreaID         uuid.UUID            `json:"area_id"`
	IndexID        uuid.UUID            `json:"index_id"`
	RecordID       uuid.UUID            `json:"record_id"`
	AlertType      models.AlertType     `json:"alert_type"`
	Severity       models.AlertSeverity `json:"severity"`
	Message        string               `json:"message"`
	ThresholdValue *float64             `json:"threshold_value,omitempty"`
	ActualValue    float64              `json:"actual_value"`
	CreatedAt      time.Time            `json:"created_at"`
}

func NewAlertEvent(alert models.Alert) AlertEvent {
	return AlertEvent{
		AlertID:        alert.ID,
		AreaID:         alert.AreaID,
		IndexID:        alert.IndexID,
		RecordID:       alert.RecordID,
		AlertType:      alert.AlertType,
		Severity:       alert.Severity,
		Message:        alert.Message,
		ThresholdValue: alert.ThresholdValue,
		ActualValue:    alert.ActualValue,
		CreatedAt:      alert.CreatedAt,
	}
}

const AlertEventsQueue string = "monitoring_alert_events"
