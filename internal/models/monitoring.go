package models

import (
	"time"

	"github.com/google/uuid"
)

type AreaOfInterest struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description"`
	Geometry     Geometry  `db:"geometry" json:"geometry"`
	OwnerID      uuid.UUID `db:"owner_id" json:"owner_id"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CropType     *string   `db:"crop_type" json:"crop_type,omitempty"`
	AreaHectares float64   `db:"area_hectares" json:"area_hectares"`
	CentroidLat  float64   `db:"centroid_lat" json:"centroid_lat"`
	CentroidLon  float64   `db:"centroid_lon" json:"centroid_lon"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

type VegetationIndexDefinition struct {
	ID          uuid.UUID `db:"id" json:"id" yaml:"-"`
	Code        string    `db:"code" json:"code" yaml:"code"`
	Name        string    `db:"name" json:"name" yaml:"name"`
	Description string    `db:"description" json:"description" yaml:"description"`
	Formula     string    `db:"formula" json:"formula" yaml:"formula"`
	IsActive    bool      `db:"is_active" json:"is_active" yaml:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at" yaml:"-"`
}

// SatelliteImage is shared by every area whose window covers it and is never mutated after creation.
type SatelliteImage struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Provider        Provider  `db:"provider" json:"provider"`
	ExternalID      string    `db:"external_id" json:"external_id"`
	AcquisitionDate time.Time `db:"acquisition_date" json:"acquisition_date"`
	CloudCover      float64   `db:"cloud_cover" json:"cloud_cover"`
	ResolutionM     float64   `db:"resolution_m" json:"resolution_m"`
	Bounds          Geometry  `db:"bounds" json:"bounds,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// MonitoringRecord holds the zonal statistics of one index over one area for one image.
// (AreaID, IndexID, ImageID) is unique.
type MonitoringRecord struct {
	ID              uuid.UUID    `db:"id" json:"id"`
	AreaID          uuid.UUID    `db:"area_id" json:"area_id"`
	IndexID         uuid.UUID    `db:"index_id" json:"index_id"`
	ImageID         uuid.UUID    `db:"image_id" json:"image_id"`
	IndexCode       string       `db:"index_code" json:"index_code,omitempty"`
	MeanValue       float64      `db:"mean_value" json:"mean_value"`
	MinValue        float64      `db:"min_value" json:"min_value"`
	MaxValue        float64      `db:"max_value" json:"max_value"`
	StdValue        float64      `db:"std_value" json:"std_value"`
	PixelCount      int          `db:"pixel_count" json:"pixel_count"`
	Status          RecordStatus `db:"status" json:"status"`
	ErrorMessage    *string      `db:"error_message" json:"error_message,omitempty"`
	AcquisitionDate time.Time    `db:"acquisition_date" json:"acquisition_date"`
	CalculatedAt    time.Time    `db:"calculated_at" json:"calculated_at"`
}

// MonitoringConfiguration decides whether and how an index is monitored over an area.
// (AreaID, IndexID) is unique.
type MonitoringConfiguration struct {
	ID                     uuid.UUID `db:"id" json:"id"`
	AreaID                 uuid.UUID `db:"area_id" json:"area_id"`
	IndexID                uuid.UUID `db:"index_id" json:"index_id"`
	IndexCode              string    `db:"index_code" json:"index_code,omitempty"`
	IsEnabled              bool      `db:"is_enabled" json:"is_enabled"`
	FrequencyDays          int       `db:"frequency_days" json:"frequency_days"`
	LowThreshold           *float64  `db:"low_threshold" json:"low_threshold,omitempty"`
	HighThreshold          *float64  `db:"high_threshold" json:"high_threshold,omitempty"`
	ChangeThresholdPercent *float64  `db:"change_threshold_percent" json:"change_threshold_percent,omitempty"`
	CloudCoverMax          float64   `db:"cloud_cover_max" json:"cloud_cover_max"`
	MinPixelCount          int       `db:"min_pixel_count" json:"min_pixel_count"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`
}

const (
	DefaultFrequencyDays = 30
	DefaultCloudCoverMax = 20.0
	DefaultMinPixelCount = 10
)

// Alert is raised at most once per (RecordID, AlertType).
type Alert struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	AreaID         uuid.UUID     `db:"area_id" json:"area_id"`
	IndexID        uuid.UUID     `db:"index_id" json:"index_id"`
	RecordID       uuid.UUID     `db:"record_id" json:"record_id"`
	AlertType      AlertType     `db:"alert_type" json:"alert_type"`
	Message        string        `db:"message" json:"message"`
	ThresholdValue *float64      `db:"threshold_value" json:"threshold_value,omitempty"`
	ActualValue    float64       `db:"actual_value" json:"actual_value"`
	Severity       AlertSeverity `db:"severity" json:"severity"`
	IsResolved     bool          `db:"is_resolved" json:"is_resolved"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	ResolvedAt     *time.Time    `db:"resolved_at" json:"resolved_at,omitempty"`
}

// PipelineExecution is the outcome of one (area, index) configuration inside a pipeline run.
type PipelineExecution struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	RunID          uuid.UUID       `db:"run_id" json:"run_id"`
	AreaID         uuid.UUID       `db:"area_id" json:"area_id"`
	IndexID        uuid.UUID       `db:"index_id" json:"index_id"`
	Status         ExecutionStatus `db:"status" json:"status"`
	ErrorMessage   *string         `db:"error_message" json:"error_message,omitempty"`
	RecordsCreated int             `db:"records_created" json:"records_created"`
	StartedAt      time.Time       `db:"started_at" json:"started_at"`
	CompletedAt    *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}

// StatisticTuple is one per-image result produced by the index calculator.
type StatisticTuple struct {
	ExternalImageID string    `json:"external_image_id"`
	Provider        Provider  `json:"provider"`
	AcquisitionDate time.Time `json:"acquisition_date"`
	CloudCover      float64   `json:"cloud_cover"`
	ResolutionM     float64   `json:"resolution_m"`
	Synthetic       bool      `json:"synthetic,omitempty"`
	Mean            float64   `json:"mean"`
	Min             float64   `json:"min"`
	Max             float64   `json:"max"`
	Std             float64   `json:"std"`
	PixelCount      int       `json:"pixel_count"`
}
