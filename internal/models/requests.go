package models

import (
	"time"

	"github.com/google/uuid"
)

type SubmitAreaRequest struct {
	Name        string    `json:"name" validate:"required,max=255"`
	Description string    `json:"description"`
	Geometry    Geometry  `json:"geometry"`
	OwnerID     uuid.UUID `json:"owner_id" validate:"required"`
	CropType    *string   `json:"crop_type,omitempty"`
}

type UpdateAreaRequest struct {
	Name        *string   `json:"name,omitempty" validate:"omitnil,min=1,max=255"`
	Description *string   `json:"description,omitempty"`
	Geometry    *Geometry `json:"geometry,omitempty"`
	IsActive    *bool     `json:"is_active,omitempty"`
	CropType    *string   `json:"crop_type,omitempty"`
}

// ConfigurationSettings carries the writable fields of a monitoring configuration.
// Nil fields keep the stored value, or the default on first creation.
type ConfigurationSettings struct {
	IsEnabled              *bool    `json:"is_enabled,omitempty"`
	FrequencyDays          *int     `json:"frequency_days,omitempty" validate:"omitnil,min=1,max=365"`
	LowThreshold           *float64 `json:"low_threshold,omitempty"`
	HighThreshold          *float64 `json:"high_threshold,omitempty"`
	ChangeThresholdPercent *float64 `json:"change_threshold_percent,omitempty" validate:"omitnil,min=0,max=100"`
	CloudCoverMax          *float64 `json:"cloud_cover_max,omitempty" validate:"omitnil,min=0,max=100"`
	MinPixelCount          *int     `json:"min_pixel_count,omitempty" validate:"omitnil,min=1"`

	// Clear flags drop a stored threshold; they cannot be combined with a value for the same field.
	ClearLowThreshold    bool `json:"clear_low_threshold,omitempty"`
	ClearHighThreshold   bool `json:"clear_high_threshold,omitempty"`
	ClearChangeThreshold bool `json:"clear_change_threshold,omitempty"`
}

// RunRequest selects which configurations a pipeline run covers.
type RunRequest struct {
	AreaID    *uuid.UUID `json:"area_id,omitempty"`
	IndexCode string     `json:"index_code,omitempty"`
	DaysBack  int        `json:"days_back" validate:"min=0,max=3650"`
	Force     bool       `json:"force"`
	Provider  Provider   `json:"provider,omitempty"`
	// RespectCadence skips configurations calculated less than frequency_days ago. Scheduled runs set it.
	RespectCadence bool `json:"respect_cadence"`
}

const DefaultDaysBack = 30

type RunSummary struct {
	RunID     uuid.UUID `json:"run_id"`
	Processed int       `json:"processed"`
	Errors    int       `json:"errors"`
	Skipped   int       `json:"skipped"`
}

// RecordFilter narrows monitoring record lookups. Zero values mean no filter.
type RecordFilter struct {
	AreaID    uuid.UUID
	IndexCode string
	From      *time.Time
	To        *time.Time
	Limit     int
}

type AlertFilter struct {
	AreaID   uuid.UUID
	Resolved *bool
	Limit    int
}

type IndexStatistics struct {
	IndexCode  string     `json:"index_code" db:"index_code"`
	Count      int        `json:"count" db:"count"`
	MeanOfMean float64    `json:"mean_of_means" db:"mean_of_means"`
	MinOfMin   float64    `json:"min_of_mins" db:"min_of_mins"`
	MaxOfMax   float64    `json:"max_of_maxs" db:"max_of_maxs"`
	AvgStd     float64    `json:"avg_std" db:"avg_std"`
	First      *time.Time `json:"first_acquisition,omitempty" db:"first_acquisition"`
	Last       *time.Time `json:"last_acquisition,omitempty" db:"last_acquisition"`
}

type AlertSummary struct {
	Total      int            `json:"total"`
	Resolved   int            `json:"resolved"`
	Unresolved int            `json:"unresolved"`
	ByType     map[string]int `json:"by_type"`
	BySeverity map[string]int `json:"by_severity"`
}

type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

type TrendResult struct {
	IndexCode   string         `json:"index_code"`
	Slope       float64        `json:"slope_per_day"`
	RSquared    float64        `json:"r_squared"`
	Direction   TrendDirection `json:"direction"`
	SampleCount int            `json:"sample_count"`
}

type Anomaly struct {
	RecordID        uuid.UUID `json:"record_id"`
	AcquisitionDate time.Time `json:"acquisition_date"`
	Value           float64   `json:"value"`
	ZScore          float64   `json:"z_score"`
}
