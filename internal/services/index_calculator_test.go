package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"monitoring-service/internal/config"
	"monitoring-service/internal/gateway"
	"monitoring-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calculationRequest(t *testing.T) CalculationRequest {
	t.Helper()
	return CalculationRequest{
		Area:          &models.AreaOfInterest{ID: uuid.New(), Geometry: squareGeometry(t, 0, 0, 0.01)},
		IndexCode:     models.IndexNDVI,
		Start:         daysAgo(30),
		End:           time.Now().UTC(),
		Provider:      models.ProviderSentinel2,
		CloudCoverMax: 20,
	}
}

func TestIndexCalculator_SkipsFailedImagesAndSortsByDate(t *testing.T) {
	gw := newFakeGateway()
	gw.addImage("S2_LATE", daysAgo(2), 0.7, 100)
	gw.addImage("S2_BROKEN", daysAgo(5), 0.5, 100)
	gw.addImage("S2_EARLY", daysAgo(20), 0.4, 100)
	gw.addImage("S2_NO_FORMULA", daysAgo(10), 0.5, 100)
	gw.computeErr["S2_BROKEN"] = fmt.Errorf("%w: band missing", models.ErrComputation)
	gw.computeErr["S2_NO_FORMULA"] = fmt.Errorf("%w: NDVI", models.ErrUnsupportedIndex)

	tuples, err := NewIndexCalculator(gw, NewGeometryService(), time.Second).Process(context.Background(), calculationRequest(t))

	require.NoError(t, err)
	require.Len(t, tuples, 2)
	assert.Equal(t, "S2_EARLY", tuples[0].ExternalImageID)
	assert.Equal(t, "S2_LATE", tuples[1].ExternalImageID)
	assert.Equal(t, 0.7, tuples[1].Mean)
	assert.Equal(t, models.ProviderSentinel2, tuples[1].Provider)
	assert.Equal(t, 10.0, tuples[1].ResolutionM)
}

func TestIndexCalculator_PerImageTimeoutIsASkip(t *testing.T) {
	gw := newFakeGateway()
	gw.addImage("S2_SLOW", daysAgo(3), 0.5, 100)
	gw.addImage("S2_FAST", daysAgo(4), 0.6, 100)
	gw.blocking["S2_SLOW"] = true

	tuples, err := NewIndexCalculator(gw, NewGeometryService(), 20*time.Millisecond).Process(context.Background(), calculationRequest(t))

	require.NoError(t, err)
	require.Len(t, tuples, 1)
	assert.Equal(t, "S2_FAST", tuples[0].ExternalImageID)
}

func TestIndexCalculator_GatewayUnavailableAborts(t *testing.T) {
	gw := newFakeGateway()
	gw.addImage("S2_A", daysAgo(3), 0.5, 100)
	gw.addImage("S2_B", daysAgo(4), 0.5, 100)
	gw.computeErr["S2_A"] = fmt.Errorf("%w: 401", models.ErrGatewayUnavailable)

	_, err := NewIndexCalculator(gw, NewGeometryService(), time.Second).Process(context.Background(), calculationRequest(t))

	assert.ErrorIs(t, err, models.ErrGatewayUnavailable)
}

func TestIndexCalculator_ProviderServerErrorOnOneImageIsASkip(t *testing.T) {
	acquired := daysAgo(3).Format(time.RFC3339)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/health":
			w.WriteHeader(http.StatusOK)
		case "/v1/images/search":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"images": []map[string]any{
					{"id": "BAD", "acquisition_time": acquired, "cloud_cover": 5},
					{"id": "GOOD", "acquisition_time": acquired, "cloud_cover": 5},
				},
			})
		case "/v1/rasters":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["image_id"] == "BAD" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"raster_id": "r-good"})
		case "/v1/zonal-statistics":
			_, _ = w.Write([]byte(`{"mean":0.62,"min":0.1,"max":0.9,"std_dev":0.04,"count":500}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	gw := gateway.NewHTTPGateway(config.GatewayConfig{
		BaseURL:        srv.URL,
		RequestTimeout: 5 * time.Second,
		ReadyTTL:       time.Minute,
		MaxRetries:     0,
	}, srv.Client())

	tuples, err := NewIndexCalculator(gw, NewGeometryService(), 5*time.Second).Process(context.Background(), calculationRequest(t))

	require.NoError(t, err)
	require.Len(t, tuples, 1)
	assert.Equal(t, "GOOD", tuples[0].ExternalImageID)
	assert.InDelta(t, 0.62, tuples[0].Mean, 1e-9)
}

func TestIndexCalculator_ChecksReadinessFirst(t *testing.T) {
	gw := newFakeGateway()
	gw.readyErr = fmt.Errorf("%w: not initialised", models.ErrGatewayUnavailable)

	_, err := NewIndexCalculator(gw, NewGeometryService(), time.Second).Process(context.Background(), calculationRequest(t))

	assert.ErrorIs(t, err, models.ErrGatewayUnavailable)
	assert.Equal(t, 0, gw.listCalls)
}

func TestIndexCalculator_CapsImagesPerCall(t *testing.T) {
	gw := newFakeGateway()
	for i := 0; i < 120; i++ {
		gw.addImage(fmt.Sprintf("S2_%03d", i), daysAgo(1).Add(-time.Duration(i)*time.Hour), 0.5, 100)
	}

	tuples, err := NewIndexCalculator(gw, NewGeometryService(), time.Second).Process(context.Background(), calculationRequest(t))

	require.NoError(t, err)
	assert.Len(t, tuples, 100)
}

func TestIndexCalculator_RejectsInvalidRequests(t *testing.T) {
	calc := NewIndexCalculator(newFakeGateway(), NewGeometryService(), time.Second)

	req := calculationRequest(t)
	req.Start, req.End = req.End, req.Start
	_, err := calc.Process(context.Background(), req)
	assertValidationError(t, err)

	req = calculationRequest(t)
	req.Provider = "SPOT"
	_, err = calc.Process(context.Background(), req)
	assertValidationError(t, err)

	req = calculationRequest(t)
	req.Area.Geometry = squareGeometry(t, 0, 0, 0.000003)
	_, err = calc.Process(context.Background(), req)
	assertValidationError(t, err)
}
