package services

import (
	"fmt"
	"math"

	"monitoring-service/internal/models"
)

// AlertEngine evaluates the alert rules of a configuration against a completed record.
// It has no side effects; persistence and notification belong to AlertEvaluator.
type AlertEngine struct{}

func NewAlertEngine() *AlertEngine {
	return &AlertEngine{}
}

// Evaluate applies, in order, the low threshold, high threshold and change rules. Each rule
// contributes at most one alert. previous may be nil; change detection is then skipped, as it
// is when the previous mean is zero.
func (e *AlertEngine) Evaluate(
	record *models.MonitoringRecord,
	cfg *models.MonitoringConfiguration,
	previous *models.MonitoringRecord,
) []models.Alert {
	if record == nil || cfg == nil {
		return nil
	}

	var alerts []models.Alert
	mean := record.MeanValue

	if cfg.LowThreshold != nil && mean < *cfg.LowThreshold {
		alerts = append(alerts, newAlert(record, models.AlertTypeThresholdLow, models.AlertSeverityMedium,
			fmt.Sprintf("Value %.4f is below low threshold %g", mean, *cfg.LowThreshold),
			*cfg.LowThreshold, mean))
	}

	if cfg.HighThreshold != nil && mean > *cfg.HighThreshold {
		alerts = append(alerts, newAlert(record, models.AlertTypeThresholdHigh, models.AlertSeverityMedium,
			fmt.Sprintf("Value %.4f is above high threshold %g", mean, *cfg.HighThreshold),
			*cfg.HighThreshold, mean))
	}

	if cfg.ChangeThresholdPercent != nil && previous != nil && previous.MeanValue != 0 {
		change := math.Abs(mean-previous.MeanValue) / math.Abs(previous.MeanValue) * 100
		if change > *cfg.ChangeThresholdPercent {
			alerts = append(alerts, newAlert(record, models.AlertTypeChangeDetected, models.AlertSeverityHigh,
				fmt.Sprintf("Significant change detected: %.2f%% change from previous value", change),
				*cfg.ChangeThresholdPercent, change))
		}
	}

	return alerts
}

func newAlert(
	record *models.MonitoringRecord,
	alertType models.AlertType,
	severity models.AlertSeverity,
	message string,
	threshold, actual float64,
) models.Alert {
	return models.Alert{
		AreaID:         record.AreaID,
		IndexID:        record.IndexID,
		RecordID:       record.ID,
		AlertType:      alertType,
		Message:        message,
		ThresholdValue: &threshold,
		ActualValue:    actual,
		Severity:       severity,
	}
}
