// Package gateway talks to the earth-observation provider that lists imagery,
// evaluates spectral index expressions and reduces them over area geometries.
package gateway

import (
	"context"
	"time"

	"monitoring-service/internal/models"

	"github.com/twpayne/go-geom"
)

// ImageDescriptor identifies one provider image intersecting an area.
type ImageDescriptor struct {
	ExternalID      string          `json:"id"`
	Provider        models.Provider `json:"provider"`
	AcquisitionDate time.Time       `json:"acquisition_time"`
	CloudCover      float64         `json:"cloud_cover"`
	ResolutionM     float64         `json:"resolution_m"`
	Synthetic       bool            `json:"synthetic,omitempty"`
}

// Raster is a provider-side handle to an evaluated index image.
type Raster struct {
	Handle     string
	Image      ImageDescriptor
	IndexCode  string
	Expression string
}

type ZonalStats struct {
	Mean       float64
	Min        float64
	Max        float64
	Std        float64
	PixelCount int
}

// Gateway is constructed once at startup and shared by all workers.
//
// Ready returns nil or an error wrapping models.ErrGatewayUnavailable.
// ComputeIndex returns models.ErrUnsupportedIndex when the provider has no formula for the code.
// Per-image failures from ComputeIndex and ZonalStatistics wrap models.ErrComputation.
type Gateway interface {
	Ready(ctx context.Context) error
	ListImages(ctx context.Context, area geom.T, start, end time.Time, cloudCoverMax float64, provider models.Provider) ([]ImageDescriptor, error)
	ComputeIndex(ctx context.Context, image ImageDescriptor, indexCode string) (Raster, error)
	ZonalStatistics(ctx context.Context, raster Raster, area geom.T, scale float64) (ZonalStats, error)
	Close() error
}
