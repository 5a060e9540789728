package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"monitoring-service/internal/gateway"
	"monitoring-service/internal/metrics"
	"monitoring-service/internal/models"
)

// CalculationRequest is one (area, index, window) unit handed to the calculator.
type CalculationRequest struct {
	Area          *models.AreaOfInterest
	IndexCode     string
	Start         time.Time
	End           time.Time
	Provider      models.Provider
	CloudCoverMax float64
}

// IndexCalculator turns provider imagery into per-image statistic tuples.
type IndexCalculator struct {
	gateway      gateway.Gateway
	geometry     *GeometryService
	imageTimeout time.Duration
}

func NewIndexCalculator(gw gateway.Gateway, geometry *GeometryService, imageTimeout time.Duration) *IndexCalculator {
	return &IndexCalculator{
		gateway:      gw,
		geometry:     geometry,
		imageTimeout: imageTimeout,
	}
}

// Process lists the images covering the area and reduces each one to zonal statistics.
//
// A failure on a single image (unsupported index, computation error, per-image timeout) is logged and
// skipped. An unavailable gateway aborts the call with models.ErrGatewayUnavailable.
// Tuples are returned ordered by acquisition date.
func (c *IndexCalculator) Process(ctx context.Context, req CalculationRequest) ([]models.StatisticTuple, error) {
	if req.Area == nil {
		return nil, models.NewValidationError("area", "is required")
	}
	if !req.End.After(req.Start) {
		return nil, models.NewValidationError("window", "end %s must be after start %s",
			req.End.Format(time.DateOnly), req.Start.Format(time.DateOnly))
	}
	if !models.IsValidProvider(req.Provider) {
		return nil, models.NewValidationError("provider", "unsupported provider %q", req.Provider)
	}
	if err := c.geometry.Validate(req.Area.Geometry); err != nil {
		return nil, err
	}
	if err := c.gateway.Ready(ctx); err != nil {
		return nil, err
	}

	images, err := c.gateway.ListImages(ctx, req.Area.Geometry.T, req.Start, req.End, req.CloudCoverMax, req.Provider)
	if err != nil {
		return nil, fmt.Errorf("failed to list images for area %s: %w", req.Area.ID, err)
	}
	if len(images) > gateway.MaxImagesPerCall {
		images = images[:gateway.MaxImagesPerCall]
	}

	slog.Info("Processing images",
		"area_id", req.Area.ID,
		"index", req.IndexCode,
		"provider", req.Provider,
		"images", len(images))

	scale := req.Provider.ResolutionMeters()
	tuples := make([]models.StatisticTuple, 0, len(images))
	for _, image := range images {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		tuple, err := c.processImage(ctx, req, image, scale)
		if err == nil {
			tuples = append(tuples, tuple)
			continue
		}

		switch {
		case errors.Is(err, models.ErrGatewayUnavailable):
			return nil, err
		case errors.Is(err, models.ErrUnsupportedIndex):
			metrics.ImagesSkipped.WithLabelValues("unsupported_index").Inc()
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			metrics.ImagesSkipped.WithLabelValues("timeout").Inc()
		case errors.Is(err, models.ErrComputation):
			metrics.ImagesSkipped.WithLabelValues("computation").Inc()
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			metrics.ImagesSkipped.WithLabelValues("other").Inc()
		}
		slog.Warn("Skipping image",
			"area_id", req.Area.ID,
			"index", req.IndexCode,
			"image", image.ExternalID,
			"error", err)
	}

	sort.SliceStable(tuples, func(i, j int) bool {
		return tuples[i].AcquisitionDate.Before(tuples[j].AcquisitionDate)
	})
	return tuples, nil
}

func (c *IndexCalculator) processImage(
	ctx context.Context,
	req CalculationRequest,
	image gateway.ImageDescriptor,
	scale float64,
) (models.StatisticTuple, error) {
	if c.imageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.imageTimeout)
		defer cancel()
	}

	raster, err := c.gateway.ComputeIndex(ctx, image, req.IndexCode)
	if err != nil {
		return models.StatisticTuple{}, err
	}
	stats, err := c.gateway.ZonalStatistics(ctx, raster, req.Area.Geometry.T, scale)
	if err != nil {
		return models.StatisticTuple{}, err
	}

	resolution := image.ResolutionM
	if resolution == 0 {
		resolution = scale
	}
	provider := image.Provider
	if provider == "" {
		provider = req.Provider
	}
	return models.StatisticTuple{
		ExternalImageID: image.ExternalID,
		Provider:        provider,
		AcquisitionDate: image.AcquisitionDate,
		CloudCover:      image.CloudCover,
		ResolutionM:     resolution,
		Synthetic:       image.Synthetic,
		Mean:            stats.Mean,
		Min:             stats.Min,
		Max:             stats.Max,
		Std:             stats.Std,
		PixelCount:      stats.PixelCount,
	}, nil
}
