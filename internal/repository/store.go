package repository

import (
	"context"
	"time"

	"monitoring-service/internal/models"

	"github.com/google/uuid"
)

// Every method wraps persistence failures with models.ErrStorage and missing rows with models.ErrNotFound.

type AreaStore interface {
	CreateArea(ctx context.Context, area *models.AreaOfInterest) error
	UpdateArea(ctx context.Context, area *models.AreaOfInterest) error
	GetArea(ctx context.Context, id uuid.UUID) (*models.AreaOfInterest, error)
	ListAreas(ctx context.Context, ownerID *uuid.UUID, activeOnly bool) ([]models.AreaOfInterest, error)
	DeleteArea(ctx context.Context, id uuid.UUID) error
}

type IndexStore interface {
	// UpsertIndex inserts or updates by code and reports whether a row was created.
	UpsertIndex(ctx context.Context, index *models.VegetationIndexDefinition) (bool, error)
	GetIndexByCode(ctx context.Context, code string) (*models.VegetationIndexDefinition, error)
	ListIndices(ctx context.Context, activeOnly bool) ([]models.VegetationIndexDefinition, error)
}

// ConfigurationFilter narrows enabled configuration lookups. Zero values mean no filter.
type ConfigurationFilter struct {
	AreaID    *uuid.UUID
	IndexCode string
}

type ConfigurationStore interface {
	UpsertConfiguration(ctx context.Context, cfg *models.MonitoringConfiguration) error
	GetConfiguration(ctx context.Context, areaID, indexID uuid.UUID) (*models.MonitoringConfiguration, error)
	// ListEnabledConfigurations returns enabled configurations of active areas and active indices.
	ListEnabledConfigurations(ctx context.Context, filter ConfigurationFilter) ([]models.MonitoringConfiguration, error)
}

type ImageStore interface {
	// GetOrCreateImage returns the stored image with the same external id, inserting it first if needed.
	GetOrCreateImage(ctx context.Context, image *models.SatelliteImage) (*models.SatelliteImage, error)
}

type RecordStore interface {
	// CreateRecordIfAbsent atomically inserts the record unless (area, index, image) exists.
	// It returns the stored row and whether this call created it.
	CreateRecordIfAbsent(ctx context.Context, record *models.MonitoringRecord) (*models.MonitoringRecord, bool, error)
	GetRecord(ctx context.Context, id uuid.UUID) (*models.MonitoringRecord, error)
	// HasCompletedInWindow reports a completed record whose acquisition date falls in [from, to].
	HasCompletedInWindow(ctx context.Context, areaID, indexID uuid.UUID, from, to time.Time) (bool, error)
	// LastCompletedCalculation returns the newest calculated_at of completed records, or nil.
	LastCompletedCalculation(ctx context.Context, areaID, indexID uuid.UUID) (*time.Time, error)
	// PreviousCompleted returns the latest other completed record of the same (area, index)
	// calculated strictly before record, or nil when there is none.
	PreviousCompleted(ctx context.Context, record *models.MonitoringRecord) (*models.MonitoringRecord, error)
	ListRecords(ctx context.Context, filter models.RecordFilter) ([]models.MonitoringRecord, error)
	IndexStatistics(ctx context.Context, areaID uuid.UUID) ([]models.IndexStatistics, error)
	DeleteRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type AlertStore interface {
	// CreateAlertIfAbsent inserts unless (record, alert type) exists and reports whether it created the row.
	CreateAlertIfAbsent(ctx context.Context, alert *models.Alert) (*models.Alert, bool, error)
	GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error)
	ResolveAlert(ctx context.Context, id uuid.UUID, resolvedAt time.Time) (*models.Alert, error)
	DeleteResolvedAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type ExecutionStore interface {
	CreateExecution(ctx context.Context, execution *models.PipelineExecution) error
	FinishExecution(ctx context.Context, execution *models.PipelineExecution) error
	ListExecutions(ctx context.Context, runID uuid.UUID) ([]models.PipelineExecution, error)
}

// Store is the full persistence surface of the service.
type Store interface {
	AreaStore
	IndexStore
	ConfigurationStore
	ImageStore
	RecordStore
	AlertStore
	ExecutionStore
}
