package models

// Provider identifies a satellite imagery collection.
type Provider string

const (
	ProviderSentinel2 Provider = "SENTINEL2"
	ProviderLandsat   Provider = "LANDSAT"
	ProviderMODIS     Provider = "MODIS"
)

// ResolutionMeters is the nominal ground resolution used as the zonal statistics scale.
func (p Provider) ResolutionMeters() float64 {
	switch p {
	case ProviderSentinel2:
		return 10
	case ProviderLandsat:
		return 30
	case ProviderMODIS:
		return 250
	default:
		return 30
	}
}

func IsValidProvider(p Provider) bool {
	switch p {
	case ProviderSentinel2, ProviderLandsat, ProviderMODIS:
		return true
	default:
		return false
	}
}

type RecordStatus string

const (
	RecordStatusPending    RecordStatus = "pending"
	RecordStatusProcessing RecordStatus = "processing"
	RecordStatusCompleted  RecordStatus = "completed"
	RecordStatusFailed     RecordStatus = "failed"
)

type AlertType string

const (
	AlertTypeThresholdLow   AlertType = "threshold_low"
	AlertTypeThresholdHigh  AlertType = "threshold_high"
	AlertTypeChangeDetected AlertType = "change_detected"
	AlertTypeAnomaly        AlertType = "anomaly"
)

type AlertSeverity string

const (
	AlertSeverityLow      AlertSeverity = "low"
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityCritical AlertSeverity = "critical"
)

// ExecutionStatus tracks one (area, index) unit of work inside a pipeline run.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusSkipped   ExecutionStatus = "skipped"
)

// Index codes known to the catalog.
const (
	IndexNDVI  = "NDVI"
	IndexEVI   = "EVI"
	IndexSAVI  = "SAVI"
	IndexNDMI  = "NDMI"
	IndexNBR   = "NBR"
	IndexNDWI  = "NDWI"
	IndexGNDVI = "GNDVI"
	IndexOSAVI = "OSAVI"
	IndexLAI   = "LAI"
	IndexNDRE  = "NDRE"
	IndexCIRE  = "CIRE"
)
