package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"monitoring-service/internal/event"
	"monitoring-service/internal/gateway"
	"monitoring-service/internal/models"
	"monitoring-service/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

// ============================================================================
// FAKE GATEWAY
// ============================================================================

type fakeGateway struct {
	mu sync.Mutex

	readyErr   error
	images     []gateway.ImageDescriptor
	stats      map[string]gateway.ZonalStats
	computeErr map[string]error
	blocking   map[string]bool
	// listErr lets a test fail the listing of selected areas only.
	listErr func(area geom.T) error

	listCalls int
}

func newFakeGateway(images ...gateway.ImageDescriptor) *fakeGateway {
	return &fakeGateway{
		images:     images,
		stats:      map[string]gateway.ZonalStats{},
		computeErr: map[string]error{},
		blocking:   map[string]bool{},
	}
}

func (g *fakeGateway) Ready(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.readyErr
}

func (g *fakeGateway) ListImages(
	_ context.Context,
	area geom.T,
	start, end time.Time,
	cloudCoverMax float64,
	_ models.Provider,
) ([]gateway.ImageDescriptor, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++
	if g.listErr != nil {
		if err := g.listErr(area); err != nil {
			return nil, err
		}
	}

	var out []gateway.ImageDescriptor
	for _, img := range g.images {
		if img.AcquisitionDate.Before(start) || img.AcquisitionDate.After(end) || img.CloudCover > cloudCoverMax {
			continue
		}
		out = append(out, img)
	}
	return out, nil
}

func (g *fakeGateway) ComputeIndex(ctx context.Context, image gateway.ImageDescriptor, indexCode string) (gateway.Raster, error) {
	g.mu.Lock()
	err := g.computeErr[image.ExternalID]
	block := g.blocking[image.ExternalID]
	g.mu.Unlock()

	if err != nil {
		return gateway.Raster{}, err
	}
	if block {
		<-ctx.Done()
		return gateway.Raster{}, ctx.Err()
	}
	return gateway.Raster{Handle: image.ExternalID, Image: image, IndexCode: indexCode}, nil
}

func (g *fakeGateway) ZonalStatistics(_ context.Context, raster gateway.Raster, _ geom.T, _ float64) (gateway.ZonalStats, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if stats, ok := g.stats[raster.Image.ExternalID]; ok {
		return stats, nil
	}
	return gateway.ZonalStats{Mean: 0.5, Min: 0.1, Max: 0.9, Std: 0.1, PixelCount: 100}, nil
}

func (g *fakeGateway) Close() error { return nil }

func (g *fakeGateway) addImage(id string, acquired time.Time, mean float64, pixels int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.images = append(g.images, gateway.ImageDescriptor{
		ExternalID:      id,
		Provider:        models.ProviderSentinel2,
		AcquisitionDate: acquired,
		CloudCover:      5,
		ResolutionM:     10,
	})
	g.stats[id] = gateway.ZonalStats{Mean: mean, Min: mean - 0.1, Max: mean + 0.1, Std: 0.05, PixelCount: pixels}
}

// ============================================================================
// FAKE NOTIFIER
// ============================================================================

type recordingNotifier struct {
	mu     sync.Mutex
	events []event.AlertEvent
	err    error
}

func (n *recordingNotifier) PublishAlert(_ context.Context, e event.AlertEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

// ============================================================================
// STORE FIXTURES
// ============================================================================

func seedIndex(t *testing.T, store repository.Store, code string) *models.VegetationIndexDefinition {
	t.Helper()
	index := &models.VegetationIndexDefinition{Code: code, Name: code, IsActive: true}
	_, err := store.UpsertIndex(context.Background(), index)
	require.NoError(t, err)
	return index
}

func seedArea(t *testing.T, store repository.Store, lon float64) *models.AreaOfInterest {
	t.Helper()
	area, err := NewAreaService(store, NewGeometryService()).Submit(context.Background(), models.SubmitAreaRequest{
		Name:     fmt.Sprintf("field-%g", lon),
		Geometry: squareGeometry(t, lon, 0, 0.01),
		OwnerID:  uuid.New(),
	})
	require.NoError(t, err)
	return area
}

func seedConfig(
	t *testing.T,
	store repository.Store,
	area *models.AreaOfInterest,
	code string,
	settings models.ConfigurationSettings,
) *models.MonitoringConfiguration {
	t.Helper()
	cfg, err := NewConfigurationService(store).Upsert(context.Background(), area.ID, code, settings)
	require.NoError(t, err)
	return cfg
}

func ptr[T any](v T) *T { return &v }

func daysAgo(n int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -n)
}

// failingStore injects a storage failure into record creation.
type failingStore struct {
	*repository.MemoryStore
}

func (s *failingStore) CreateRecordIfAbsent(context.Context, *models.MonitoringRecord) (*models.MonitoringRecord, bool, error) {
	return nil, false, models.StorageError("failed to insert monitoring record", fmt.Errorf("connection refused"))
}
