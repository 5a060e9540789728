package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"monitoring-service/internal/gateway"
	"monitoring-service/internal/models"
	"monitoring-service/internal/repository"
	"monitoring-service/internal/services"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// HELPERS
// ============================================================================

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    struct {
		Count *int `json:"count"`
	} `json:"meta"`
	Error struct {
		Code    string `json:"code"`
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestApp(t *testing.T) (*fiber.App, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	_, err := services.NewVegetationIndexService(store).Seed(context.Background())
	require.NoError(t, err)

	geometry := services.NewGeometryService()
	calculator := services.NewIndexCalculator(gateway.NewSyntheticGateway(), geometry, time.Second)
	evaluator := services.NewAlertEvaluator(store, services.NewAlertEngine(), nil)
	orchestrator := services.NewOrchestrator(store, calculator, evaluator, nil, services.OrchestratorConfig{Workers: 2})
	monitoring := services.NewMonitoringService(store)

	app := fiber.New()
	NewAreaHandler(services.NewAreaService(store, geometry), services.NewConfigurationService(store)).RegisterRoutes(app)
	NewMonitoringHandler(monitoring, services.NewAnalyticsService(store)).RegisterRoutes(app)
	NewPipelineHandler(orchestrator, nil, monitoring, services.NewVegetationIndexService(store), map[string]ReadinessCheck{
		"gateway": func(context.Context) error { return nil },
	}).RegisterRoutes(app)
	return app, store
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp.StatusCode, env
}

func squareBody(side float64) map[string]any {
	return map[string]any{
		"name":     "North field",
		"owner_id": uuid.NewString(),
		"geometry": map[string]any{
			"type": "Polygon",
			"coordinates": [][][]float64{{
				{0, 0}, {side, 0}, {side, side}, {0, side}, {0, 0},
			}},
		},
	}
}

// ============================================================================
// AREAS AND CONFIGURATIONS
// ============================================================================

func TestAreaHandler_SubmitAndConfigure(t *testing.T) {
	app, _ := newTestApp(t)

	status, env := do(t, app, http.MethodPost, "/monitoring/api/v1/areas", squareBody(0.01))
	require.Equal(t, fiber.StatusCreated, status)
	var area models.AreaOfInterest
	require.NoError(t, json.Unmarshal(env.Data, &area))
	assert.InDelta(t, 123.9, area.AreaHectares, 1.0)

	status, env = do(t, app, http.MethodPut, "/monitoring/api/v1/areas/"+area.ID.String()+"/configurations/ndvi",
		map[string]any{"low_threshold": 0.3, "frequency_days": 7})
	require.Equal(t, fiber.StatusOK, status)
	var cfg models.MonitoringConfiguration
	require.NoError(t, json.Unmarshal(env.Data, &cfg))
	assert.Equal(t, 7, cfg.FrequencyDays)
	assert.Equal(t, models.IndexNDVI, cfg.IndexCode)

	status, env = do(t, app, http.MethodPut, "/monitoring/api/v1/areas/"+area.ID.String()+"/configurations/NDVI",
		map[string]any{"low_threshold": 0.9, "high_threshold": 0.1})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Equal(t, "low_threshold", env.Error.Field)
}

func TestAreaHandler_RejectsInvalidInput(t *testing.T) {
	app, _ := newTestApp(t)

	status, env := do(t, app, http.MethodPost, "/monitoring/api/v1/areas", squareBody(0.000003))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)

	status, _ = do(t, app, http.MethodGet, "/monitoring/api/v1/areas/not-a-uuid", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, env = do(t, app, http.MethodGet, "/monitoring/api/v1/areas/"+uuid.NewString(), nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

// ============================================================================
// PIPELINE AND QUERIES
// ============================================================================

func TestPipelineHandler_RunThenQuery(t *testing.T) {
	app, store := newTestApp(t)

	_, env := do(t, app, http.MethodPost, "/monitoring/api/v1/areas", squareBody(0.01))
	var area models.AreaOfInterest
	require.NoError(t, json.Unmarshal(env.Data, &area))
	status, _ := do(t, app, http.MethodPut, "/monitoring/api/v1/areas/"+area.ID.String()+"/configurations/NDVI",
		map[string]any{"cloud_cover_max": 100, "min_pixel_count": 1})
	require.Equal(t, fiber.StatusOK, status)

	status, env = do(t, app, http.MethodPost, "/monitoring/api/v1/runs?wait=true", map[string]any{"days_back": 30})
	require.Equal(t, fiber.StatusOK, status)
	var summary models.RunSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 0, summary.Errors)

	stored, err := store.ListRecords(context.Background(), models.RecordFilter{AreaID: area.ID})
	require.NoError(t, err)
	require.NotEmpty(t, stored)

	status, env = do(t, app, http.MethodGet, "/monitoring/api/v1/areas/"+area.ID.String()+"/records?index=ndvi", nil)
	require.Equal(t, fiber.StatusOK, status)
	require.NotNil(t, env.Meta.Count)
	assert.Equal(t, len(stored), *env.Meta.Count)

	status, _ = do(t, app, http.MethodGet, "/monitoring/api/v1/areas/"+area.ID.String()+"/records?from=yesterday", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, env = do(t, app, http.MethodGet, "/monitoring/api/v1/runs/"+summary.RunID.String()+"/executions", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1, *env.Meta.Count)

	status, _ = do(t, app, http.MethodGet, "/monitoring/api/v1/areas/"+area.ID.String()+"/statistics", nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestMonitoringHandler_ResolveAlert(t *testing.T) {
	app, store := newTestApp(t)
	ctx := context.Background()

	_, env := do(t, app, http.MethodPost, "/monitoring/api/v1/areas", squareBody(0.01))
	var area models.AreaOfInterest
	require.NoError(t, json.Unmarshal(env.Data, &area))
	index, err := store.GetIndexByCode(ctx, models.IndexNDVI)
	require.NoError(t, err)
	image, err := store.GetOrCreateImage(ctx, &models.SatelliteImage{ExternalID: "S2_TEST"})
	require.NoError(t, err)
	record, _, err := store.CreateRecordIfAbsent(ctx, &models.MonitoringRecord{
		AreaID: area.ID, IndexID: index.ID, ImageID: image.ID, MeanValue: 0.1, Status: models.RecordStatusCompleted,
	})
	require.NoError(t, err)
	alert, _, err := store.CreateAlertIfAbsent(ctx, &models.Alert{
		AreaID: area.ID, IndexID: index.ID, RecordID: record.ID,
		AlertType: models.AlertTypeThresholdLow, Severity: models.AlertSeverityMedium, ActualValue: 0.1,
	})
	require.NoError(t, err)

	status, env := do(t, app, http.MethodGet, "/monitoring/api/v1/areas/"+area.ID.String()+"/alerts?resolved=false", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1, *env.Meta.Count)

	status, env = do(t, app, http.MethodPost, "/monitoring/api/v1/alerts/"+alert.ID.String()+"/resolve", nil)
	require.Equal(t, fiber.StatusOK, status)
	var resolved models.Alert
	require.NoError(t, json.Unmarshal(env.Data, &resolved))
	assert.True(t, resolved.IsResolved)

	status, _ = do(t, app, http.MethodGet, "/monitoring/api/v1/areas/"+area.ID.String()+"/alerts?resolved=maybe", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestPipelineHandler_ReadyAndIndices(t *testing.T) {
	app, _ := newTestApp(t)

	status, _ := do(t, app, http.MethodGet, "/ready", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, env := do(t, app, http.MethodGet, "/monitoring/api/v1/indices", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 11, *env.Meta.Count)
}
