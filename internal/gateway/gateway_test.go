package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"monitoring-service/internal/config"
	"monitoring-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

// ============================================================================
// HELPERS
// ============================================================================

func testArea() geom.T {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{10, 10}, {10.01, 10}, {10.01, 10.01}, {10, 10.01}, {10, 10}},
	})
}

func newTestGateway(t *testing.T, handler http.HandlerFunc) *HTTPGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g := NewHTTPGateway(config.GatewayConfig{
		BaseURL:        srv.URL,
		Token:          "secret",
		RequestTimeout: 5 * time.Second,
		ReadyTTL:       time.Minute,
		MaxRetries:     2,
	}, srv.Client())
	g.backoffBase = time.Millisecond
	return g
}

// ============================================================================
// BAND CATALOG
// ============================================================================

func TestExpression_ResolvesProviderBands(t *testing.T) {
	expr, err := Expression(models.ProviderSentinel2, "ndvi")
	require.NoError(t, err)
	assert.Equal(t, "(B8 - B4) / (B8 + B4)", expr)

	expr, err = Expression(models.ProviderLandsat, models.IndexNDMI)
	require.NoError(t, err)
	assert.Equal(t, "(SR_B5 - SR_B6) / (SR_B5 + SR_B6)", expr)
}

func TestExpression_UnsupportedIndex(t *testing.T) {
	_, err := Expression(models.ProviderMODIS, models.IndexNDMI)
	assert.ErrorIs(t, err, models.ErrUnsupportedIndex)

	_, err = Expression(models.ProviderSentinel2, models.IndexNDRE)
	assert.ErrorIs(t, err, models.ErrUnsupportedIndex)
}

func TestSupportedIndices(t *testing.T) {
	assert.Len(t, SupportedIndices(models.ProviderSentinel2), 8)
	assert.ElementsMatch(t, []string{models.IndexNDVI, models.IndexEVI}, SupportedIndices(models.ProviderMODIS))
	assert.Nil(t, SupportedIndices(models.Provider("SPOT")))
}

// ============================================================================
// HTTP GATEWAY
// ============================================================================

func TestHTTPGateway_ReadyIsCached(t *testing.T) {
	var hits atomic.Int32
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, g.Ready(context.Background()))
	require.NoError(t, g.Ready(context.Background()))
	assert.Equal(t, int32(1), hits.Load())

	g.Invalidate()
	require.NoError(t, g.Ready(context.Background()))
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPGateway_ReadyRejectedCredentials(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := g.Ready(context.Background())

	assert.ErrorIs(t, err, models.ErrGatewayUnavailable)
}

func TestHTTPGateway_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"images": []map[string]any{
				{"id": "img-2", "acquisition_time": "2024-05-10T10:00:00Z", "cloud_cover": 3.5},
				{"id": "img-1", "acquisition_time": "2024-05-01T10:00:00Z", "cloud_cover": 12},
			},
		})
	})

	start := time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)
	images, err := g.ListImages(context.Background(), testArea(), start, start.AddDate(0, 0, 30), 20, models.ProviderSentinel2)

	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	require.Len(t, images, 2)
	assert.Equal(t, "img-1", images[0].ExternalID, "images are ordered by acquisition date")
	assert.Equal(t, models.ProviderSentinel2, images[0].Provider)
	assert.InDelta(t, 10.0, images[0].ResolutionM, 1e-9)
}

func TestHTTPGateway_ExhaustedRetriesAreUnavailable(t *testing.T) {
	var hits atomic.Int32
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := g.ListImages(context.Background(), testArea(), time.Now().AddDate(0, 0, -30), time.Now(), 20, models.ProviderLandsat)

	assert.ErrorIs(t, err, models.ErrGatewayUnavailable)
	assert.Equal(t, int32(3), hits.Load())
}

func TestHTTPGateway_ComputeUnsupportedIndexSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	_, err := g.ComputeIndex(context.Background(), ImageDescriptor{ExternalID: "m1", Provider: models.ProviderMODIS}, models.IndexNBR)

	assert.ErrorIs(t, err, models.ErrUnsupportedIndex)
	assert.Equal(t, int32(0), hits.Load())
}

func TestHTTPGateway_ComputeAndReduce(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/rasters":
			var req rasterRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "(B8 - B4) / (B8 + B4)", req.Expression)
			_ = json.NewEncoder(w).Encode(rasterResponse{RasterID: "r-1"})
		case "/v1/zonal-statistics":
			_, _ = w.Write([]byte(`{"mean":0.61,"min":0.2,"max":0.9,"std_dev":0.05,"count":1234}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	image := ImageDescriptor{ExternalID: "s2-1", Provider: models.ProviderSentinel2}
	raster, err := g.ComputeIndex(context.Background(), image, models.IndexNDVI)
	require.NoError(t, err)
	assert.Equal(t, "r-1", raster.Handle)

	stats, err := g.ZonalStatistics(context.Background(), raster, testArea(), 10)
	require.NoError(t, err)
	assert.InDelta(t, 0.61, stats.Mean, 1e-9)
	assert.Equal(t, 1234, stats.PixelCount)
}

func TestHTTPGateway_EmptyStatisticsIsComputationError(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"mean":null,"count":0}`))
	})

	_, err := g.ZonalStatistics(context.Background(), Raster{Handle: "r"}, testArea(), 10)

	assert.ErrorIs(t, err, models.ErrComputation)
	assert.False(t, errors.Is(err, models.ErrGatewayUnavailable))
}

func TestHTTPGateway_ClientErrorOnComputeIsComputationError(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	_, err := g.ComputeIndex(context.Background(), ImageDescriptor{ExternalID: "x", Provider: models.ProviderSentinel2}, models.IndexEVI)

	assert.ErrorIs(t, err, models.ErrComputation)
}

func TestHTTPGateway_ExhaustedRetriesOnComputeIsComputationError(t *testing.T) {
	var hits atomic.Int32
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := g.ComputeIndex(context.Background(), ImageDescriptor{ExternalID: "x", Provider: models.ProviderSentinel2}, models.IndexNDVI)

	assert.ErrorIs(t, err, models.ErrComputation)
	assert.False(t, errors.Is(err, models.ErrGatewayUnavailable))
	assert.Equal(t, int32(3), hits.Load())
}

func TestHTTPGateway_UnreachableComputeIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	g := NewHTTPGateway(config.GatewayConfig{BaseURL: srv.URL, MaxRetries: 1}, nil)
	g.backoffBase = time.Millisecond

	_, err := g.ComputeIndex(context.Background(), ImageDescriptor{ExternalID: "x", Provider: models.ProviderSentinel2}, models.IndexNDVI)

	assert.ErrorIs(t, err, models.ErrGatewayUnavailable)
}

func TestHTTPGateway_Closed(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})
	require.NoError(t, g.Close())

	assert.ErrorIs(t, g.Ready(context.Background()), models.ErrGatewayUnavailable)
}

// ============================================================================
// SYNTHETIC GATEWAY
// ============================================================================

func TestSyntheticGateway_IsDeterministic(t *testing.T) {
	g := NewSyntheticGateway()
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)

	first, err := g.ListImages(ctx, testArea(), start, end, 100, models.ProviderSentinel2)
	require.NoError(t, err)
	second, err := g.ListImages(ctx, testArea(), start, end, 100, models.ProviderSentinel2)
	require.NoError(t, err)

	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
	for _, img := range first {
		assert.True(t, img.Synthetic)
		assert.False(t, img.AcquisitionDate.Before(start))
		assert.False(t, img.AcquisitionDate.After(end.Add(24*time.Hour)))
	}

	raster, err := g.ComputeIndex(ctx, first[0], models.IndexNDVI)
	require.NoError(t, err)
	a, err := g.ZonalStatistics(ctx, raster, testArea(), 10)
	require.NoError(t, err)
	b, err := g.ZonalStatistics(ctx, raster, testArea(), 10)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Greater(t, a.PixelCount, 0)
	assert.LessOrEqual(t, a.Min, a.Mean)
	assert.GreaterOrEqual(t, a.Max, a.Mean)
}

func TestSyntheticGateway_CloudFilter(t *testing.T) {
	g := NewSyntheticGateway()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	images, err := g.ListImages(context.Background(), testArea(), start, start.AddDate(0, 3, 0), 15, models.ProviderSentinel2)

	require.NoError(t, err)
	for _, img := range images {
		assert.Less(t, img.CloudCover, 15.0)
	}
}
