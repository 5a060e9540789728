package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"monitoring-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// HELPERS
// ============================================================================

type fixture struct {
	store *MemoryStore
	area  models.AreaOfInterest
	index models.VegetationIndexDefinition
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := NewMemoryStore()

	area := models.AreaOfInterest{Name: "north field", OwnerID: uuid.New(), IsActive: true}
	require.NoError(t, store.CreateArea(ctx, &area))

	index := models.VegetationIndexDefinition{Code: "ndvi", Name: "NDVI", IsActive: true}
	_, err := store.UpsertIndex(ctx, &index)
	require.NoError(t, err)

	return &fixture{store: store, area: area, index: index}
}

func (f *fixture) image(t *testing.T, externalID string, acquired time.Time) *models.SatelliteImage {
	t.Helper()
	img, err := f.store.GetOrCreateImage(context.Background(), &models.SatelliteImage{
		Provider:        models.ProviderSentinel2,
		ExternalID:      externalID,
		AcquisitionDate: acquired,
		ResolutionM:     10,
	})
	require.NoError(t, err)
	return img
}

func (f *fixture) record(t *testing.T, img *models.SatelliteImage, mean float64, calculated time.Time) *models.MonitoringRecord {
	t.Helper()
	rec, created, err := f.store.CreateRecordIfAbsent(context.Background(), &models.MonitoringRecord{
		AreaID:          f.area.ID,
		IndexID:         f.index.ID,
		ImageID:         img.ID,
		MeanValue:       mean,
		MinValue:        mean - 0.1,
		MaxValue:        mean + 0.1,
		StdValue:        0.05,
		PixelCount:      100,
		Status:          models.RecordStatusCompleted,
		AcquisitionDate: img.AcquisitionDate,
		CalculatedAt:    calculated,
	})
	require.NoError(t, err)
	require.True(t, created)
	return rec
}

// ============================================================================
// UNIQUENESS
// ============================================================================

func TestUpsertIndex_NormalizesCodeAndUpdatesInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assert.Equal(t, "NDVI", f.index.Code)

	again := models.VegetationIndexDefinition{Code: "NDVI", Name: "Renamed", IsActive: false}
	created, err := f.store.UpsertIndex(ctx, &again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, f.index.ID, again.ID)

	stored, err := f.store.GetIndexByCode(ctx, "ndvi")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Name)
	assert.False(t, stored.IsActive)
}

func TestGetOrCreateImage_ReturnsExistingByExternalID(t *testing.T) {
	f := newFixture(t)
	acquired := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	first := f.image(t, "S2_20240501", acquired)
	second := f.image(t, "S2_20240501", acquired.Add(time.Hour))

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, acquired, second.AcquisitionDate)
}

func TestCreateRecordIfAbsent_SecondInsertReturnsStoredRow(t *testing.T) {
	f := newFixture(t)
	img := f.image(t, "S2_A", time.Now().UTC())
	first := f.record(t, img, 0.5, time.Now().UTC())

	dup, created, err := f.store.CreateRecordIfAbsent(context.Background(), &models.MonitoringRecord{
		AreaID: f.area.ID, IndexID: f.index.ID, ImageID: img.ID, MeanValue: 0.9,
		Status: models.RecordStatusCompleted,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, dup.ID)
	assert.Equal(t, 0.5, dup.MeanValue)
	assert.Equal(t, "NDVI", dup.IndexCode)
}

func TestCreateRecordIfAbsent_ConcurrentInsertsKeepOneRow(t *testing.T) {
	f := newFixture(t)
	img := f.image(t, "S2_RACE", time.Now().UTC())

	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := f.store.CreateRecordIfAbsent(context.Background(), &models.MonitoringRecord{
				AreaID: f.area.ID, IndexID: f.index.ID, ImageID: img.ID,
				Status: models.RecordStatusCompleted,
			})
			assert.NoError(t, err)
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	records, err := f.store.ListRecords(context.Background(), models.RecordFilter{AreaID: f.area.ID})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCreateAlertIfAbsent_OnePerRecordAndType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.record(t, f.image(t, "S2_B", time.Now().UTC()), 0.2, time.Now().UTC())

	alert := models.Alert{AreaID: f.area.ID, IndexID: f.index.ID, RecordID: rec.ID,
		AlertType: models.AlertTypeThresholdLow, Severity: models.AlertSeverityHigh}
	_, created, err := f.store.CreateAlertIfAbsent(ctx, &alert)
	require.NoError(t, err)
	assert.True(t, created)

	dup := alert
	dup.ID = uuid.Nil
	_, created, err = f.store.CreateAlertIfAbsent(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, created)

	other := alert
	other.ID = uuid.Nil
	other.AlertType = models.AlertTypeChangeDetected
	_, created, err = f.store.CreateAlertIfAbsent(ctx, &other)
	require.NoError(t, err)
	assert.True(t, created)
}

// ============================================================================
// QUERIES
// ============================================================================

func TestPreviousCompleted_PicksLatestEarlierCalculation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	oldest := f.record(t, f.image(t, "I1", base), 0.3, base)
	middle := f.record(t, f.image(t, "I2", base.AddDate(0, 0, 5)), 0.4, base.Add(time.Hour))
	latest := f.record(t, f.image(t, "I3", base.AddDate(0, 0, 10)), 0.5, base.Add(2*time.Hour))

	prev, err := f.store.PreviousCompleted(ctx, latest)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, middle.ID, prev.ID)

	prev, err = f.store.PreviousCompleted(ctx, oldest)
	require.NoError(t, err)
	assert.Nil(t, prev)
}

func TestListEnabledConfigurations_SkipsInactiveAreasAndIndices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.UpsertConfiguration(ctx, &models.MonitoringConfiguration{
		AreaID: f.area.ID, IndexID: f.index.ID, IsEnabled: true, FrequencyDays: 30,
	}))
	configs, err := f.store.ListEnabledConfigurations(ctx, ConfigurationFilter{IndexCode: "ndvi"})
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "NDVI", configs[0].IndexCode)

	area := f.area
	area.IsActive = false
	require.NoError(t, f.store.UpdateArea(ctx, &area))

	configs, err = f.store.ListEnabledConfigurations(ctx, ConfigurationFilter{})
	require.NoError(t, err)
	assert.Empty(t, configs)
}

func TestIndexStatistics_AggregatesCompletedRecords(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	f.record(t, f.image(t, "S1", base), 0.4, base)
	f.record(t, f.image(t, "S2", base.AddDate(0, 0, 5)), 0.6, base.Add(time.Hour))

	stats, err := f.store.IndexStatistics(context.Background(), f.area.ID)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].Count)
	assert.InDelta(t, 0.5, stats[0].MeanOfMean, 1e-9)
	assert.InDelta(t, 0.3, stats[0].MinOfMin, 1e-9)
	assert.InDelta(t, 0.7, stats[0].MaxOfMax, 1e-9)
	assert.Equal(t, base, *stats[0].First)
}

// ============================================================================
// RETENTION AND CASCADES
// ============================================================================

func TestDeleteArea_CascadesToRecordsAndAlerts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	img := f.image(t, "S2_C", time.Now().UTC())
	rec := f.record(t, img, 0.2, time.Now().UTC())
	alert := models.Alert{AreaID: f.area.ID, IndexID: f.index.ID, RecordID: rec.ID, AlertType: models.AlertTypeThresholdLow}
	_, _, err := f.store.CreateAlertIfAbsent(ctx, &alert)
	require.NoError(t, err)

	require.NoError(t, f.store.DeleteArea(ctx, f.area.ID))

	_, err = f.store.GetRecord(ctx, rec.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	_, err = f.store.GetAlert(ctx, alert.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	stillThere := f.image(t, "S2_C", time.Now().UTC())
	assert.Equal(t, img.ID, stillThere.ID)
}

func TestResolveAlert_KeepsFirstResolutionTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.record(t, f.image(t, "S2_D", time.Now().UTC()), 0.2, time.Now().UTC())
	alert := models.Alert{AreaID: f.area.ID, IndexID: f.index.ID, RecordID: rec.ID, AlertType: models.AlertTypeThresholdHigh}
	_, _, err := f.store.CreateAlertIfAbsent(ctx, &alert)
	require.NoError(t, err)

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	resolved, err := f.store.ResolveAlert(ctx, alert.ID, first)
	require.NoError(t, err)
	assert.True(t, resolved.IsResolved)

	resolved, err = f.store.ResolveAlert(ctx, alert.ID, first.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, first, *resolved.ResolvedAt)

	deleted, err := f.store.DeleteResolvedAlertsBefore(ctx, first.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestDeleteRecordsBefore_UsesCalculationTime(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	f.record(t, f.image(t, "OLD", now), 0.5, now.AddDate(-2, 0, 0))
	f.record(t, f.image(t, "NEW", now), 0.5, now)

	deleted, err := f.store.DeleteRecordsBefore(context.Background(), now.AddDate(-1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
