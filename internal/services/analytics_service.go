package services

import (
	"context"
	"math"
	"slices"
	"strings"

	"monitoring-service/internal/models"
	"monitoring-service/internal/repository"

	"github.com/google/uuid"
)

const (
	DefaultAnomalyThreshold = 2.0
	minAnomalySamples       = 3
	trendStableBand         = 0.001
)

// AnalyticsService derives summaries, trends and anomalies from stored records and alerts.
type AnalyticsService struct {
	store repository.Store
}

func NewAnalyticsService(store repository.Store) *AnalyticsService {
	return &AnalyticsService{store: store}
}

func (s *AnalyticsService) StatisticsSummary(ctx context.Context, areaID uuid.UUID) ([]models.IndexStatistics, error) {
	if _, err := s.store.GetArea(ctx, areaID); err != nil {
		return nil, err
	}
	stats, err := s.store.IndexStatistics(ctx, areaID)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []models.IndexStatistics{}
	}
	return stats, nil
}

func (s *AnalyticsService) AlertSummary(ctx context.Context, areaID uuid.UUID) (models.AlertSummary, error) {
	summary := models.AlertSummary{ByType: map[string]int{}, BySeverity: map[string]int{}}
	if _, err := s.store.GetArea(ctx, areaID); err != nil {
		return summary, err
	}

	alerts, err := s.store.ListAlerts(ctx, models.AlertFilter{AreaID: areaID})
	if err != nil {
		return summary, err
	}
	for _, alert := range alerts {
		summary.Total++
		if alert.IsResolved {
			summary.Resolved++
		} else {
			summary.Unresolved++
		}
		summary.ByType[string(alert.AlertType)]++
		summary.BySeverity[string(alert.Severity)]++
	}
	return summary, nil
}

// Trend fits the completed mean values of one index against acquisition day.
func (s *AnalyticsService) Trend(ctx context.Context, areaID uuid.UUID, indexCode string) (models.TrendResult, error) {
	records, err := s.completedSeries(ctx, areaID, indexCode)
	if err != nil {
		return models.TrendResult{}, err
	}
	result := CalculateTrend(records)
	result.IndexCode = strings.ToUpper(indexCode)
	return result, nil
}

// Anomalies returns records whose mean deviates more than threshold standard deviations.
// threshold <= 0 selects DefaultAnomalyThreshold.
func (s *AnalyticsService) Anomalies(ctx context.Context, areaID uuid.UUID, indexCode string, threshold float64) ([]models.Anomaly, error) {
	records, err := s.completedSeries(ctx, areaID, indexCode)
	if err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = DefaultAnomalyThreshold
	}
	return DetectAnomalies(records, threshold), nil
}

// completedSeries returns completed records of one index ordered by acquisition date ascending.
func (s *AnalyticsService) completedSeries(ctx context.Context, areaID uuid.UUID, indexCode string) ([]models.MonitoringRecord, error) {
	if strings.TrimSpace(indexCode) == "" {
		return nil, models.NewValidationError("index_code", "is required")
	}
	if _, err := s.store.GetArea(ctx, areaID); err != nil {
		return nil, err
	}
	records, err := s.store.ListRecords(ctx, models.RecordFilter{
		AreaID:    areaID,
		IndexCode: strings.ToUpper(strings.TrimSpace(indexCode)),
	})
	if err != nil {
		return nil, err
	}

	series := make([]models.MonitoringRecord, 0, len(records))
	for _, r := range records {
		if r.Status == models.RecordStatusCompleted {
			series = append(series, r)
		}
	}
	slices.SortStableFunc(series, func(a, b models.MonitoringRecord) int {
		return a.AcquisitionDate.Compare(b.AcquisitionDate)
	})
	return series, nil
}

// CalculateTrend runs a least squares fit of mean value over whole days since the first acquisition.
// records must be sorted by acquisition date.
func CalculateTrend(records []models.MonitoringRecord) models.TrendResult {
	result := models.TrendResult{Direction: models.TrendStable, SampleCount: len(records)}
	if len(records) < 2 {
		return result
	}

	first := records[0].AcquisitionDate
	n := float64(len(records))
	xs := make([]float64, len(records))
	var sumX, sumY, sumXY, sumX2 float64
	for i, r := range records {
		x := math.Floor(r.AcquisitionDate.Sub(first).Hours() / 24)
		xs[i] = x
		sumX += x
		sumY += r.MeanValue
		sumXY += x * r.MeanValue
		sumX2 += x * x
	}

	denominator := n*sumX2 - sumX*sumX
	if denominator == 0 {
		return result
	}
	slope := (n*sumXY - sumX*sumY) / denominator
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssRes, ssTot float64
	for i, r := range records {
		predicted := slope*xs[i] + intercept
		ssRes += (r.MeanValue - predicted) * (r.MeanValue - predicted)
		ssTot += (r.MeanValue - meanY) * (r.MeanValue - meanY)
	}

	result.Slope = slope
	if ssTot != 0 {
		result.RSquared = 1 - ssRes/ssTot
	}
	switch {
	case slope > trendStableBand:
		result.Direction = models.TrendIncreasing
	case slope < -trendStableBand:
		result.Direction = models.TrendDecreasing
	}
	return result
}

// DetectAnomalies flags values whose absolute z-score, using the population standard deviation,
// exceeds threshold. Fewer than three values or a constant series yield nothing.
func DetectAnomalies(records []models.MonitoringRecord, threshold float64) []models.Anomaly {
	anomalies := []models.Anomaly{}
	if len(records) < minAnomalySamples {
		return anomalies
	}

	n := float64(len(records))
	var sum float64
	for _, r := range records {
		sum += r.MeanValue
	}
	mean := sum / n

	var variance float64
	for _, r := range records {
		variance += (r.MeanValue - mean) * (r.MeanValue - mean)
	}
	std := math.Sqrt(variance / n)
	if std == 0 {
		return anomalies
	}

	for _, r := range records {
		z := math.Abs((r.MeanValue - mean) / std)
		if z > threshold {
			anomalies = append(anomalies, models.Anomaly{
				RecordID:        r.ID,
				AcquisitionDate: r.AcquisitionDate,
				Value:           r.MeanValue,
				ZScore:          z,
			})
		}
	}
	return anomalies
}
