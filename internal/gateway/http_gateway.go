package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"monitoring-service/internal/config"
	"monitoring-service/internal/metrics"
	"monitoring-service/internal/models"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"golang.org/x/time/rate"
)

// MaxImagesPerCall bounds how many images a single ListImages call returns.
const MaxImagesPerCall = 100

// errTransport marks failures where the provider could not be reached at all.
var errTransport = errors.New("provider unreachable")

// HTTPGateway is the client of the imagery provider REST API.
// Readiness is cached for ReadyTTL and dropped on any transport or auth failure.
type HTTPGateway struct {
	cfg         config.GatewayConfig
	client      *http.Client
	limiter     *rate.Limiter
	backoffBase time.Duration

	mu         sync.Mutex
	readyUntil time.Time
	closed     atomic.Bool
}

func NewHTTPGateway(cfg config.GatewayConfig, client *http.Client) *HTTPGateway {
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &HTTPGateway{
		cfg:         cfg,
		client:      client,
		limiter:     rate.NewLimiter(limit, burst),
		backoffBase: time.Second,
	}
}

// ===== wire types =====

type imageSearchRequest struct {
	Collection    string          `json:"collection"`
	Provider      models.Provider `json:"provider"`
	Geometry      json.RawMessage `json:"geometry"`
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
	CloudCoverMax float64         `json:"cloud_cover_max"`
	Limit         int             `json:"limit"`
}

type imageSearchResponse struct {
	Images []ImageDescriptor `json:"images"`
}

type rasterRequest struct {
	ImageID    string `json:"image_id"`
	Collection string `json:"collection"`
	Expression string `json:"expression"`
	BandName   string `json:"band_name"`
}

type rasterResponse struct {
	RasterID string `json:"raster_id"`
}

type zonalRequest struct {
	RasterID  string          `json:"raster_id"`
	Geometry  json.RawMessage `json:"geometry"`
	Scale     float64         `json:"scale"`
	Reducers  []string        `json:"reducers"`
	MaxPixels float64         `json:"max_pixels"`
}

type zonalResponse struct {
	Mean   *float64 `json:"mean"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	StdDev *float64 `json:"std_dev"`
	Count  int      `json:"count"`
}

// ===== Gateway =====

func (g *HTTPGateway) Ready(ctx context.Context) error {
	if g.closed.Load() {
		return fmt.Errorf("%w: gateway closed", models.ErrGatewayUnavailable)
	}

	g.mu.Lock()
	cached := time.Now().Before(g.readyUntil)
	g.mu.Unlock()
	if cached {
		return nil
	}

	if err := g.do(ctx, "health", http.MethodGet, "/v1/health", nil, nil, models.ErrGatewayUnavailable); err != nil {
		return err
	}

	g.mu.Lock()
	g.readyUntil = time.Now().Add(g.cfg.ReadyTTL)
	g.mu.Unlock()
	return nil
}

// Invalidate forces the next Ready call to hit the provider.
func (g *HTTPGateway) Invalidate() {
	g.mu.Lock()
	g.readyUntil = time.Time{}
	g.mu.Unlock()
}

func (g *HTTPGateway) ListImages(
	ctx context.Context,
	area geom.T,
	start, end time.Time,
	cloudCoverMax float64,
	provider models.Provider,
) ([]ImageDescriptor, error) {
	collection, err := Collection(provider)
	if err != nil {
		return nil, err
	}
	geometry, err := geojson.Marshal(area)
	if err != nil {
		return nil, fmt.Errorf("failed to encode area geometry: %w", err)
	}

	req := imageSearchRequest{
		Collection:    collection,
		Provider:      provider,
		Geometry:      geometry,
		StartDate:     start.UTC().Format("2006-01-02"),
		EndDate:       end.UTC().Format("2006-01-02"),
		CloudCoverMax: cloudCoverMax,
		Limit:         MaxImagesPerCall,
	}

	var resp imageSearchResponse
	if err := g.do(ctx, "list_images", http.MethodPost, "/v1/images/search", req, &resp, models.ErrGatewayUnavailable); err != nil {
		return nil, err
	}

	images := resp.Images
	if len(images) > MaxImagesPerCall {
		images = images[:MaxImagesPerCall]
	}
	for i := range images {
		images[i].Provider = provider
		images[i].ResolutionM = provider.ResolutionMeters()
		images[i].AcquisitionDate = images[i].AcquisitionDate.UTC()
	}
	sort.SliceStable(images, func(i, j int) bool {
		return images[i].AcquisitionDate.Before(images[j].AcquisitionDate)
	})

	slog.Info("Gateway listed images",
		"provider", provider,
		"start", req.StartDate,
		"end", req.EndDate,
		"count", len(images))
	return images, nil
}

func (g *HTTPGateway) ComputeIndex(ctx context.Context, image ImageDescriptor, indexCode string) (Raster, error) {
	expression, err := Expression(image.Provider, indexCode)
	if err != nil {
		return Raster{}, err
	}
	collection, err := Collection(image.Provider)
	if err != nil {
		return Raster{}, err
	}

	req := rasterRequest{
		ImageID:    image.ExternalID,
		Collection: collection,
		Expression: expression,
		BandName:   strings.ToUpper(indexCode),
	}
	var resp rasterResponse
	if err := g.do(ctx, "compute_index", http.MethodPost, "/v1/rasters", req, &resp, models.ErrComputation); err != nil {
		return Raster{}, err
	}
	if resp.RasterID == "" {
		return Raster{}, fmt.Errorf("%w: empty raster id for image %s", models.ErrComputation, image.ExternalID)
	}

	return Raster{
		Handle:     resp.RasterID,
		Image:      image,
		IndexCode:  strings.ToUpper(indexCode),
		Expression: expression,
	}, nil
}

func (g *HTTPGateway) ZonalStatistics(ctx context.Context, raster Raster, area geom.T, scale float64) (ZonalStats, error) {
	geometry, err := geojson.Marshal(area)
	if err != nil {
		return ZonalStats{}, fmt.Errorf("failed to encode area geometry: %w", err)
	}

	req := zonalRequest{
		RasterID:  raster.Handle,
		Geometry:  geometry,
		Scale:     scale,
		Reducers:  []string{"mean", "min", "max", "std_dev", "count"},
		MaxPixels: 1e9,
	}
	var resp zonalResponse
	if err := g.do(ctx, "zonal_statistics", http.MethodPost, "/v1/zonal-statistics", req, &resp, models.ErrComputation); err != nil {
		return ZonalStats{}, err
	}
	if resp.Mean == nil || resp.Min == nil || resp.Max == nil || resp.Count == 0 {
		return ZonalStats{}, fmt.Errorf("%w: no valid pixels for image %s", models.ErrComputation, raster.Image.ExternalID)
	}

	stats := ZonalStats{
		Mean:       *resp.Mean,
		Min:        *resp.Min,
		Max:        *resp.Max,
		PixelCount: resp.Count,
	}
	if resp.StdDev != nil {
		stats.Std = *resp.StdDev
	}
	return stats, nil
}

func (g *HTTPGateway) Close() error {
	g.closed.Store(true)
	g.Invalidate()
	g.client.CloseIdleConnections()
	return nil
}

// ===== transport =====

// do performs one API call with exponential backoff on transport errors, 429 and 5xx.
// Other 4xx responses wrap clientErr and are not retried. Exhausted retries wrap
// models.ErrGatewayUnavailable when the provider was unreachable or clientErr is that error,
// and clientErr otherwise.
func (g *HTTPGateway) do(ctx context.Context, op, method, path string, in, out any, clientErr error) error {
	if g.closed.Load() {
		return fmt.Errorf("%w: gateway closed", models.ErrGatewayUnavailable)
	}

	var lastErr error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := g.backoffBase * time.Duration(math.Pow(2, float64(attempt-1)))
			slog.Info("Retrying gateway call",
				"operation", op,
				"attempt", attempt,
				"backoff_seconds", backoff.Seconds())
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", op, ctx.Err())
			}
		}

		start := time.Now()
		retryable, err := g.doOnce(ctx, method, path, in, out, clientErr)
		metrics.GatewayLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.GatewayRequests.WithLabelValues(op, "ok").Inc()
			return nil
		}

		lastErr = err
		if !retryable {
			metrics.GatewayRequests.WithLabelValues(op, "error").Inc()
			return fmt.Errorf("%s: %w", op, err)
		}
		slog.Warn("Gateway call failed",
			"operation", op,
			"attempt", attempt,
			"error", err)
	}

	// Per-image operations that keep answering 5xx or 429 fail that image only.
	if !errors.Is(clientErr, models.ErrGatewayUnavailable) && !errors.Is(lastErr, errTransport) {
		metrics.GatewayRequests.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("%w: %s failed after %d retries: %w", clientErr, op, g.cfg.MaxRetries, lastErr)
	}

	metrics.GatewayRequests.WithLabelValues(op, "unavailable").Inc()
	g.Invalidate()
	return fmt.Errorf("%w: %s failed after %d retries: %w", models.ErrGatewayUnavailable, op, g.cfg.MaxRetries, lastErr)
}

func (g *HTTPGateway) doOnce(ctx context.Context, method, path string, in, out any, clientErr error) (bool, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return false, err
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return false, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(g.cfg.BaseURL, "/")+path, body)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.Token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		g.Invalidate()
		return true, fmt.Errorf("%w: API request failed: %w", errTransport, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		g.Invalidate()
		return false, fmt.Errorf("%w: credentials rejected (status %d)", models.ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return true, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(respBody))
	case resp.StatusCode >= 400:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, fmt.Errorf("%w: API returned status %d: %s", clientErr, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return false, fmt.Errorf("%w: empty response body", clientErr)
		}
		return false, fmt.Errorf("%w: failed to parse response: %w", clientErr, err)
	}
	return false, nil
}
