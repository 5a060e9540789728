package services

import (
	"testing"

	"monitoring-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(mean float64) *models.MonitoringRecord {
	return &models.MonitoringRecord{
		ID:        uuid.New(),
		AreaID:    uuid.New(),
		IndexID:   uuid.New(),
		MeanValue: mean,
		Status:    models.RecordStatusCompleted,
	}
}

func TestAlertEngine_LowThreshold(t *testing.T) {
	record := testRecord(0.2)

	alerts := NewAlertEngine().Evaluate(record, &models.MonitoringConfiguration{LowThreshold: ptr(0.3)}, nil)

	require.Len(t, alerts, 1)
	alert := alerts[0]
	assert.Equal(t, models.AlertTypeThresholdLow, alert.AlertType)
	assert.Equal(t, models.AlertSeverityMedium, alert.Severity)
	assert.Equal(t, 0.2, alert.ActualValue)
	require.NotNil(t, alert.ThresholdValue)
	assert.Equal(t, 0.3, *alert.ThresholdValue)
	assert.Equal(t, record.ID, alert.RecordID)
	assert.Equal(t, record.AreaID, alert.AreaID)
	assert.Equal(t, "Value 0.2000 is below low threshold 0.3", alert.Message)
}

func TestAlertEngine_HighThreshold(t *testing.T) {
	alerts := NewAlertEngine().Evaluate(testRecord(0.95), &models.MonitoringConfiguration{
		LowThreshold:  ptr(0.3),
		HighThreshold: ptr(0.9),
	}, nil)

	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTypeThresholdHigh, alerts[0].AlertType)
	assert.Equal(t, models.AlertSeverityMedium, alerts[0].Severity)
	assert.Equal(t, "Value 0.9500 is above high threshold 0.9", alerts[0].Message)
}

func TestAlertEngine_ChangeDetected(t *testing.T) {
	alerts := NewAlertEngine().Evaluate(
		testRecord(0.6),
		&models.MonitoringConfiguration{ChangeThresholdPercent: ptr(15.0)},
		testRecord(0.5),
	)

	require.Len(t, alerts, 1)
	alert := alerts[0]
	assert.Equal(t, models.AlertTypeChangeDetected, alert.AlertType)
	assert.Equal(t, models.AlertSeverityHigh, alert.Severity)
	assert.InDelta(t, 20.0, alert.ActualValue, 1e-9)
	assert.Equal(t, 15.0, *alert.ThresholdValue)
	assert.Equal(t, "Significant change detected: 20.00% change from previous value", alert.Message)
}

func TestAlertEngine_ChangeDetectionGuards(t *testing.T) {
	engine := NewAlertEngine()
	cfg := &models.MonitoringConfiguration{ChangeThresholdPercent: ptr(15.0)}

	assert.Empty(t, engine.Evaluate(testRecord(0.6), cfg, testRecord(0)), "zero previous mean")
	assert.Empty(t, engine.Evaluate(testRecord(0.6), cfg, nil), "no previous record")
	assert.Empty(t, engine.Evaluate(testRecord(0.55), cfg, testRecord(0.5)), "10% is below the threshold")
}

func TestAlertEngine_RulesAccumulate(t *testing.T) {
	alerts := NewAlertEngine().Evaluate(
		testRecord(0.1),
		&models.MonitoringConfiguration{LowThreshold: ptr(0.3), ChangeThresholdPercent: ptr(50.0)},
		testRecord(0.6),
	)

	require.Len(t, alerts, 2)
	assert.Equal(t, models.AlertTypeThresholdLow, alerts[0].AlertType)
	assert.Equal(t, models.AlertTypeChangeDetected, alerts[1].AlertType)
}

func TestAlertEngine_NoRulesConfigured(t *testing.T) {
	assert.Empty(t, NewAlertEngine().Evaluate(testRecord(0.1), &models.MonitoringConfiguration{}, testRecord(0.9)))
	assert.Nil(t, NewAlertEngine().Evaluate(nil, &models.MonitoringConfiguration{}, nil))
}
