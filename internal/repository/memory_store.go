package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"monitoring-service/internal/models"

	"github.com/google/uuid"
)

type recordKey struct {
	areaID, indexID, imageID uuid.UUID
}

type pairKey struct {
	areaID, indexID uuid.UUID
}

type alertKey struct {
	recordID  uuid.UUID
	alertType models.AlertType
}

// MemoryStore is an in-process Store used by tests and by offline runs of the CLI.
// It enforces the same uniqueness constraints as the Postgres schema.
type MemoryStore struct {
	mu sync.RWMutex

	areas          map[uuid.UUID]models.AreaOfInterest
	indices        map[uuid.UUID]models.VegetationIndexDefinition
	indexByCode    map[string]uuid.UUID
	configs        map[pairKey]models.MonitoringConfiguration
	images         map[uuid.UUID]models.SatelliteImage
	imageByExtID   map[string]uuid.UUID
	records        map[uuid.UUID]models.MonitoringRecord
	recordByKey    map[recordKey]uuid.UUID
	alerts         map[uuid.UUID]models.Alert
	alertByKey     map[alertKey]uuid.UUID
	executions     map[uuid.UUID]models.PipelineExecution
	executionOrder []uuid.UUID
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		areas:        make(map[uuid.UUID]models.AreaOfInterest),
		indices:      make(map[uuid.UUID]models.VegetationIndexDefinition),
		indexByCode:  make(map[string]uuid.UUID),
		configs:      make(map[pairKey]models.MonitoringConfiguration),
		images:       make(map[uuid.UUID]models.SatelliteImage),
		imageByExtID: make(map[string]uuid.UUID),
		records:      make(map[uuid.UUID]models.MonitoringRecord),
		recordByKey:  make(map[recordKey]uuid.UUID),
		alerts:       make(map[uuid.UUID]models.Alert),
		alertByKey:   make(map[alertKey]uuid.UUID),
		executions:   make(map[uuid.UUID]models.PipelineExecution),
	}
}

// ============================================================================
// AREAS
// ============================================================================

func (s *MemoryStore) CreateArea(_ context.Context, area *models.AreaOfInterest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if area.ID == uuid.Nil {
		area.ID = uuid.New()
	}
	if _, exists := s.areas[area.ID]; exists {
		return models.StorageError("failed to create area", fmt.Errorf("duplicate id %s", area.ID))
	}
	now := time.Now().UTC()
	area.CreatedAt = now
	area.UpdatedAt = now
	s.areas[area.ID] = *area
	return nil
}

func (s *MemoryStore) UpdateArea(_ context.Context, area *models.AreaOfInterest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.areas[area.ID]
	if !ok {
		return fmt.Errorf("area %s: %w", area.ID, models.ErrNotFound)
	}
	area.CreatedAt = stored.CreatedAt
	area.OwnerID = stored.OwnerID
	area.UpdatedAt = time.Now().UTC()
	s.areas[area.ID] = *area
	return nil
}

func (s *MemoryStore) GetArea(_ context.Context, id uuid.UUID) (*models.AreaOfInterest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	area, ok := s.areas[id]
	if !ok {
		return nil, fmt.Errorf("area %s: %w", id, models.ErrNotFound)
	}
	return &area, nil
}

func (s *MemoryStore) ListAreas(_ context.Context, ownerID *uuid.UUID, activeOnly bool) ([]models.AreaOfInterest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var areas []models.AreaOfInterest
	for _, area := range s.areas {
		if ownerID != nil && area.OwnerID != *ownerID {
			continue
		}
		if activeOnly && !area.IsActive {
			continue
		}
		areas = append(areas, area)
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].CreatedAt.After(areas[j].CreatedAt) })
	return areas, nil
}

func (s *MemoryStore) DeleteArea(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.areas[id]; !ok {
		return fmt.Errorf("area %s: %w", id, models.ErrNotFound)
	}
	delete(s.areas, id)

	for key := range s.configs {
		if key.areaID == id {
			delete(s.configs, key)
		}
	}
	for recordID, record := range s.records {
		if record.AreaID == id {
			s.deleteRecordLocked(recordID)
		}
	}
	for execID, execution := range s.executions {
		if execution.AreaID == id {
			delete(s.executions, execID)
		}
	}
	return nil
}

// ============================================================================
// VEGETATION INDICES
// ============================================================================

func (s *MemoryStore) UpsertIndex(_ context.Context, index *models.VegetationIndexDefinition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index.Code = strings.ToUpper(index.Code)
	if id, ok := s.indexByCode[index.Code]; ok {
		stored := s.indices[id]
		stored.Name = index.Name
		stored.Description = index.Description
		stored.Formula = index.Formula
		stored.IsActive = index.IsActive
		s.indices[id] = stored
		index.ID = id
		index.CreatedAt = stored.CreatedAt
		return false, nil
	}

	if index.ID == uuid.Nil {
		index.ID = uuid.New()
	}
	if index.CreatedAt.IsZero() {
		index.CreatedAt = time.Now().UTC()
	}
	s.indices[index.ID] = *index
	s.indexByCode[index.Code] = index.ID
	return true, nil
}

func (s *MemoryStore) GetIndexByCode(_ context.Context, code string) (*models.VegetationIndexDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.indexByCode[strings.ToUpper(code)]
	if !ok {
		return nil, fmt.Errorf("vegetation index %s: %w", code, models.ErrNotFound)
	}
	index := s.indices[id]
	return &index, nil
}

func (s *MemoryStore) ListIndices(_ context.Context, activeOnly bool) ([]models.VegetationIndexDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var indices []models.VegetationIndexDefinition
	for _, index := range s.indices {
		if activeOnly && !index.IsActive {
			continue
		}
		indices = append(indices, index)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i].Code < indices[j].Code })
	return indices, nil
}

// ============================================================================
// CONFIGURATIONS
// ============================================================================

func (s *MemoryStore) UpsertConfiguration(_ context.Context, cfg *models.MonitoringConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.areas[cfg.AreaID]; !ok {
		return models.StorageError("failed to upsert monitoring configuration",
			fmt.Errorf("area %s does not exist", cfg.AreaID))
	}
	index, ok := s.indices[cfg.IndexID]
	if !ok {
		return models.StorageError("failed to upsert monitoring configuration",
			fmt.Errorf("index %s does not exist", cfg.IndexID))
	}

	key := pairKey{cfg.AreaID, cfg.IndexID}
	now := time.Now().UTC()
	if stored, exists := s.configs[key]; exists {
		cfg.ID = stored.ID
		cfg.CreatedAt = stored.CreatedAt
	} else {
		if cfg.ID == uuid.Nil {
			cfg.ID = uuid.New()
		}
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now
	cfg.IndexCode = index.Code
	s.configs[key] = *cfg
	return nil
}

func (s *MemoryStore) GetConfiguration(_ context.Context, areaID, indexID uuid.UUID) (*models.MonitoringConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[pairKey{areaID, indexID}]
	if !ok {
		return nil, fmt.Errorf("configuration for area %s index %s: %w", areaID, indexID, models.ErrNotFound)
	}
	return &cfg, nil
}

func (s *MemoryStore) ListEnabledConfigurations(_ context.Context, filter ConfigurationFilter) ([]models.MonitoringConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code := strings.ToUpper(filter.IndexCode)
	var configs []models.MonitoringConfiguration
	for key, cfg := range s.configs {
		if !cfg.IsEnabled {
			continue
		}
		area, ok := s.areas[key.areaID]
		if !ok || !area.IsActive {
			continue
		}
		index, ok := s.indices[key.indexID]
		if !ok || !index.IsActive {
			continue
		}
		if filter.AreaID != nil && key.areaID != *filter.AreaID {
			continue
		}
		if code != "" && index.Code != code {
			continue
		}
		configs = append(configs, cfg)
	}
	sort.Slice(configs, func(i, j int) bool {
		if configs[i].AreaID != configs[j].AreaID {
			return configs[i].AreaID.String() < configs[j].AreaID.String()
		}
		return configs[i].IndexCode < configs[j].IndexCode
	})
	return configs, nil
}

// ============================================================================
// SATELLITE IMAGES
// ============================================================================

func (s *MemoryStore) GetOrCreateImage(_ context.Context, image *models.SatelliteImage) (*models.SatelliteImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.imageByExtID[image.ExternalID]; ok {
		stored := s.images[id]
		return &stored, nil
	}
	if image.ID == uuid.Nil {
		image.ID = uuid.New()
	}
	if image.CreatedAt.IsZero() {
		image.CreatedAt = time.Now().UTC()
	}
	stored := *image
	s.images[stored.ID] = stored
	s.imageByExtID[stored.ExternalID] = stored.ID
	return &stored, nil
}

// ============================================================================
// MONITORING RECORDS
// ============================================================================

func (s *MemoryStore) CreateRecordIfAbsent(_ context.Context, record *models.MonitoringRecord) (*models.MonitoringRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{record.AreaID, record.IndexID, record.ImageID}
	if id, ok := s.recordByKey[key]; ok {
		stored := s.records[id]
		return &stored, false, nil
	}
	if _, ok := s.areas[record.AreaID]; !ok {
		return nil, false, models.StorageError("failed to insert monitoring record",
			fmt.Errorf("area %s does not exist", record.AreaID))
	}
	index, ok := s.indices[record.IndexID]
	if !ok {
		return nil, false, models.StorageError("failed to insert monitoring record",
			fmt.Errorf("index %s does not exist", record.IndexID))
	}
	if _, ok := s.images[record.ImageID]; !ok {
		return nil, false, models.StorageError("failed to insert monitoring record",
			fmt.Errorf("image %s does not exist", record.ImageID))
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CalculatedAt.IsZero() {
		record.CalculatedAt = time.Now().UTC()
	}
	stored := *record
	stored.IndexCode = index.Code
	s.records[stored.ID] = stored
	s.recordByKey[key] = stored.ID
	return &stored, true, nil
}

func (s *MemoryStore) GetRecord(_ context.Context, id uuid.UUID) (*models.MonitoringRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("monitoring record %s: %w", id, models.ErrNotFound)
	}
	return &record, nil
}

func (s *MemoryStore) HasCompletedInWindow(_ context.Context, areaID, indexID uuid.UUID, from, to time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		if record.AreaID != areaID || record.IndexID != indexID || record.Status != models.RecordStatusCompleted {
			continue
		}
		if !record.AcquisitionDate.Before(from) && !record.AcquisitionDate.After(to) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) LastCompletedCalculation(_ context.Context, areaID, indexID uuid.UUID) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *time.Time
	for _, record := range s.records {
		if record.AreaID != areaID || record.IndexID != indexID || record.Status != models.RecordStatusCompleted {
			continue
		}
		if last == nil || record.CalculatedAt.After(*last) {
			at := record.CalculatedAt
			last = &at
		}
	}
	return last, nil
}

func (s *MemoryStore) PreviousCompleted(_ context.Context, record *models.MonitoringRecord) (*models.MonitoringRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var previous *models.MonitoringRecord
	for _, candidate := range s.records {
		if candidate.ID == record.ID || candidate.AreaID != record.AreaID || candidate.IndexID != record.IndexID {
			continue
		}
		if candidate.Status != models.RecordStatusCompleted || !candidate.CalculatedAt.Before(record.CalculatedAt) {
			continue
		}
		if previous == nil || candidate.CalculatedAt.After(previous.CalculatedAt) {
			c := candidate
			previous = &c
		}
	}
	return previous, nil
}

func (s *MemoryStore) ListRecords(_ context.Context, filter models.RecordFilter) ([]models.MonitoringRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code := strings.ToUpper(filter.IndexCode)
	var records []models.MonitoringRecord
	for _, record := range s.records {
		if record.AreaID != filter.AreaID {
			continue
		}
		if code != "" && record.IndexCode != code {
			continue
		}
		if filter.From != nil && record.AcquisitionDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && record.AcquisitionDate.After(*filter.To) {
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].AcquisitionDate.After(records[j].AcquisitionDate) })
	if filter.Limit > 0 && len(records) > filter.Limit {
		records = records[:filter.Limit]
	}
	return records, nil
}

func (s *MemoryStore) IndexStatistics(_ context.Context, areaID uuid.UUID) ([]models.IndexStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byCode := make(map[string]*models.IndexStatistics)
	sums := make(map[string][2]float64)
	for _, record := range s.records {
		if record.AreaID != areaID || record.Status != models.RecordStatusCompleted {
			continue
		}
		stat, ok := byCode[record.IndexCode]
		if !ok {
			first, last := record.AcquisitionDate, record.AcquisitionDate
			stat = &models.IndexStatistics{
				IndexCode: record.IndexCode,
				MinOfMin:  record.MinValue,
				MaxOfMax:  record.MaxValue,
				First:     &first,
				Last:      &last,
			}
			byCode[record.IndexCode] = stat
		}
		stat.Count++
		stat.MinOfMin = min(stat.MinOfMin, record.MinValue)
		stat.MaxOfMax = max(stat.MaxOfMax, record.MaxValue)
		if record.AcquisitionDate.Before(*stat.First) {
			*stat.First = record.AcquisitionDate
		}
		if record.AcquisitionDate.After(*stat.Last) {
			*stat.Last = record.AcquisitionDate
		}
		sum := sums[record.IndexCode]
		sum[0] += record.MeanValue
		sum[1] += record.StdValue
		sums[record.IndexCode] = sum
	}

	stats := make([]models.IndexStatistics, 0, len(byCode))
	for code, stat := range byCode {
		stat.MeanOfMean = sums[code][0] / float64(stat.Count)
		stat.AvgStd = sums[code][1] / float64(stat.Count)
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].IndexCode < stats[j].IndexCode })
	return stats, nil
}

func (s *MemoryStore) DeleteRecordsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, record := range s.records {
		if record.CalculatedAt.Before(cutoff) {
			s.deleteRecordLocked(id)
			deleted++
		}
	}
	return deleted, nil
}

// deleteRecordLocked removes a record and cascades to its alerts. Caller holds mu.
func (s *MemoryStore) deleteRecordLocked(id uuid.UUID) {
	record, ok := s.records[id]
	if !ok {
		return
	}
	delete(s.records, id)
	delete(s.recordByKey, recordKey{record.AreaID, record.IndexID, record.ImageID})
	for alertID, alert := range s.alerts {
		if alert.RecordID == id {
			delete(s.alerts, alertID)
			delete(s.alertByKey, alertKey{alert.RecordID, alert.AlertType})
		}
	}
}

// ============================================================================
// ALERTS
// ============================================================================

func (s *MemoryStore) CreateAlertIfAbsent(_ context.Context, alert *models.Alert) (*models.Alert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := alertKey{alert.RecordID, alert.AlertType}
	if id, ok := s.alertByKey[key]; ok {
		stored := s.alerts[id]
		return &stored, false, nil
	}
	if _, ok := s.records[alert.RecordID]; !ok {
		return nil, false, models.StorageError("failed to insert alert",
			fmt.Errorf("record %s does not exist", alert.RecordID))
	}
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	stored := *alert
	s.alerts[stored.ID] = stored
	s.alertByKey[key] = stored.ID
	return &stored, true, nil
}

func (s *MemoryStore) GetAlert(_ context.Context, id uuid.UUID) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, models.ErrNotFound)
	}
	return &alert, nil
}

func (s *MemoryStore) ListAlerts(_ context.Context, filter models.AlertFilter) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var alerts []models.Alert
	for _, alert := range s.alerts {
		if alert.AreaID != filter.AreaID {
			continue
		}
		if filter.Resolved != nil && alert.IsResolved != *filter.Resolved {
			continue
		}
		alerts = append(alerts, alert)
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].CreatedAt.After(alerts[j].CreatedAt) })
	if filter.Limit > 0 && len(alerts) > filter.Limit {
		alerts = alerts[:filter.Limit]
	}
	return alerts, nil
}

func (s *MemoryStore) ResolveAlert(_ context.Context, id uuid.UUID, resolvedAt time.Time) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, models.ErrNotFound)
	}
	alert.IsResolved = true
	if alert.ResolvedAt == nil {
		at := resolvedAt
		alert.ResolvedAt = &at
	}
	s.alerts[id] = alert
	return &alert, nil
}

func (s *MemoryStore) DeleteResolvedAlertsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, alert := range s.alerts {
		if alert.IsResolved && alert.ResolvedAt != nil && alert.ResolvedAt.Before(cutoff) {
			delete(s.alerts, id)
			delete(s.alertByKey, alertKey{alert.RecordID, alert.AlertType})
			deleted++
		}
	}
	return deleted, nil
}

// ============================================================================
// PIPELINE EXECUTIONS
// ============================================================================

func (s *MemoryStore) CreateExecution(_ context.Context, execution *models.PipelineExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if execution.ID == uuid.Nil {
		execution.ID = uuid.New()
	}
	if execution.StartedAt.IsZero() {
		execution.StartedAt = time.Now().UTC()
	}
	s.executions[execution.ID] = *execution
	s.executionOrder = append(s.executionOrder, execution.ID)
	return nil
}

func (s *MemoryStore) FinishExecution(_ context.Context, execution *models.PipelineExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.executions[execution.ID]; !ok {
		return fmt.Errorf("pipeline execution %s: %w", execution.ID, models.ErrNotFound)
	}
	if execution.CompletedAt == nil {
		now := time.Now().UTC()
		execution.CompletedAt = &now
	}
	s.executions[execution.ID] = *execution
	return nil
}

func (s *MemoryStore) ListExecutions(_ context.Context, runID uuid.UUID) ([]models.PipelineExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var executions []models.PipelineExecution
	for _, id := range s.executionOrder {
		execution, ok := s.executions[id]
		if ok && execution.RunID == runID {
			executions = append(executions, execution)
		}
	}
	return executions, nil
}
