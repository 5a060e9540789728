package gateway

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"monitoring-service/internal/models"

	"github.com/twpayne/go-geom"
)

// revisitDays approximates how often each provider images the same spot.
var revisitDays = map[models.Provider]int{
	models.ProviderSentinel2: 5,
	models.ProviderLandsat:   8,
	models.ProviderMODIS:     16,
}

// SyntheticGateway produces deterministic imagery and statistics for development and demos.
// Every descriptor it returns is flagged Synthetic. It is only built when GATEWAY_MODE=synthetic.
type SyntheticGateway struct {
	closed atomic.Bool
}

func NewSyntheticGateway() *SyntheticGateway {
	slog.Warn("Synthetic earth observation gateway enabled: monitoring values are generated, not observed")
	return &SyntheticGateway{}
}

func (g *SyntheticGateway) Ready(ctx context.Context) error {
	if g.closed.Load() {
		return fmt.Errorf("%w: gateway closed", models.ErrGatewayUnavailable)
	}
	return ctx.Err()
}

func (g *SyntheticGateway) ListImages(
	ctx context.Context,
	area geom.T,
	start, end time.Time,
	cloudCoverMax float64,
	provider models.Provider,
) ([]ImageDescriptor, error) {
	if err := g.Ready(ctx); err != nil {
		return nil, err
	}
	if _, err := Collection(provider); err != nil {
		return nil, err
	}

	step := revisitDays[provider]
	key := areaKey(area)
	day := time.Unix(0, 0).UTC()

	startDay := int(start.UTC().Sub(day).Hours() / 24)
	endDay := int(end.UTC().Sub(day).Hours() / 24)
	first := startDay + (step-startDay%step)%step

	images := make([]ImageDescriptor, 0)
	for d := first; d <= endDay && len(images) < MaxImagesPerCall; d += step {
		acquired := day.AddDate(0, 0, d).Add(10*time.Hour + 30*time.Minute)
		id := fmt.Sprintf("SYN_%s_%s_%s", provider, acquired.Format("20060102"), key)
		cloud := math.Round(unit(id, "cloud")*6000) / 100
		if cloud >= cloudCoverMax {
			continue
		}
		images = append(images, ImageDescriptor{
			ExternalID:      id,
			Provider:        provider,
			AcquisitionDate: acquired,
			CloudCover:      cloud,
			ResolutionM:     provider.ResolutionMeters(),
			Synthetic:       true,
		})
	}
	return images, nil
}

func (g *SyntheticGateway) ComputeIndex(ctx context.Context, image ImageDescriptor, indexCode string) (Raster, error) {
	if err := g.Ready(ctx); err != nil {
		return Raster{}, err
	}
	expression, err := Expression(image.Provider, indexCode)
	if err != nil {
		return Raster{}, err
	}
	code := strings.ToUpper(indexCode)
	return Raster{
		Handle:     image.ExternalID + "|" + code,
		Image:      image,
		IndexCode:  code,
		Expression: expression,
	}, nil
}

func (g *SyntheticGateway) ZonalStatistics(ctx context.Context, raster Raster, area geom.T, scale float64) (ZonalStats, error) {
	if err := g.Ready(ctx); err != nil {
		return ZonalStats{}, err
	}
	if scale <= 0 {
		return ZonalStats{}, fmt.Errorf("%w: scale must be positive", models.ErrComputation)
	}

	// seasonal curve plus a per-image perturbation
	doy := float64(raster.Image.AcquisitionDate.YearDay())
	season := 0.5 + 0.25*math.Sin(2*math.Pi*(doy-100)/365)
	mean := season + (unit(raster.Handle, "mean")-0.5)*0.1
	std := 0.02 + unit(raster.Handle, "std")*0.04

	widthM, heightM := boundsMeters(area)
	pixels := int(widthM * heightM / (scale * scale))

	return ZonalStats{
		Mean:       round4(mean),
		Min:        round4(mean - 2.5*std),
		Max:        round4(mean + 2.5*std),
		Std:        round4(std),
		PixelCount: pixels,
	}, nil
}

func (g *SyntheticGateway) Close() error {
	g.closed.Store(true)
	return nil
}

func unit(parts ...string) float64 {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return float64(h.Sum64()%1_000_000) / 1_000_000
}

func areaKey(area geom.T) string {
	b := area.Bounds()
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%.5f,%.5f,%.5f,%.5f", b.Min(0), b.Min(1), b.Max(0), b.Max(1))
	return fmt.Sprintf("%08x", h.Sum32())
}

func boundsMeters(area geom.T) (float64, float64) {
	b := area.Bounds()
	midLat := (b.Min(1) + b.Max(1)) / 2
	width := (b.Max(0) - b.Min(0)) * 111_320 * math.Cos(midLat*math.Pi/180)
	height := (b.Max(1) - b.Min(1)) * 110_540
	return math.Abs(width), math.Abs(height)
}

func round4(v float64) float64 {
	return math.Round(v*10_000) / 10_000
}
