package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"monitoring-service/internal/metrics"
	"monitoring-service/internal/models"
	"monitoring-service/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RecordListener is notified after a completed record has been committed by this run.
type RecordListener interface {
	RecordCompleted(ctx context.Context, record *models.MonitoringRecord) error
}

// RunArchiver keeps a copy of the tuples computed for one configuration of a run.
type RunArchiver interface {
	ArchiveRun(ctx context.Context, runID, areaID uuid.UUID, indexCode string, tuples []models.StatisticTuple) error
}

type OrchestratorConfig struct {
	Workers         int
	ConfigTimeout   time.Duration
	DefaultDaysBack int
	DefaultProvider models.Provider
}

// Orchestrator drives one pipeline run over the enabled monitoring configurations.
type Orchestrator struct {
	store      repository.Store
	calculator *IndexCalculator
	listener   RecordListener
	archive    RunArchiver
	cfg        OrchestratorConfig
	now        func() time.Time
}

// NewOrchestrator wires a run loop. archive may be nil.
func NewOrchestrator(
	store repository.Store,
	calculator *IndexCalculator,
	listener RecordListener,
	archive RunArchiver,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.DefaultDaysBack <= 0 {
		cfg.DefaultDaysBack = models.DefaultDaysBack
	}
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = models.ProviderSentinel2
	}
	return &Orchestrator{
		store:      store,
		calculator: calculator,
		listener:   listener,
		archive:    archive,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type configOutcome int

const (
	outcomeProcessed configOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// runState is shared by the workers of one run.
type runState struct {
	runID       uuid.UUID
	req         models.RunRequest
	windowStart time.Time
	windowEnd   time.Time

	mu      sync.Mutex
	summary models.RunSummary
}

func (s *runState) count(outcome configOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch outcome {
	case outcomeProcessed:
		s.summary.Processed++
	case outcomeSkipped:
		s.summary.Skipped++
	case outcomeFailed:
		s.summary.Errors++
	}
}

// Run processes every enabled configuration matching the request with bounded parallelism.
//
// Per-configuration failures are counted in the summary and never stop the run. A storage failure
// aborts the run and is returned together with the partial summary. Cancelling ctx stops dispatching;
// dispatched configurations continue under their own ConfigTimeout.
func (o *Orchestrator) Run(ctx context.Context, req models.RunRequest) (models.RunSummary, error) {
	if err := validateStruct(req); err != nil {
		return models.RunSummary{}, err
	}
	if req.DaysBack == 0 {
		req.DaysBack = o.cfg.DefaultDaysBack
	}
	if req.Provider == "" {
		req.Provider = o.cfg.DefaultProvider
	}
	if !models.IsValidProvider(req.Provider) {
		return models.RunSummary{}, models.NewValidationError("provider", "unsupported provider %q", req.Provider)
	}

	started := time.Now()
	now := o.now()
	state := &runState{
		runID:       uuid.New(),
		req:         req,
		windowStart: now.AddDate(0, 0, -req.DaysBack),
		windowEnd:   now,
	}
	state.summary.RunID = state.runID

	configs, err := o.store.ListEnabledConfigurations(ctx, repository.ConfigurationFilter{
		AreaID:    req.AreaID,
		IndexCode: req.IndexCode,
	})
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("aborted").Inc()
		return state.summary, err
	}

	slog.Info("Pipeline run started",
		"run_id", state.runID,
		"configurations", len(configs),
		"days_back", req.DaysBack,
		"force", req.Force,
		"provider", req.Provider)

	g, dispatchCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for _, cfg := range configs {
		if dispatchCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if dispatchCtx.Err() != nil {
				return nil
			}
			return o.runConfig(dispatchCtx, state, cfg)
		})
	}
	err = g.Wait()

	summary := state.summary
	metrics.PipelineDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("aborted").Inc()
		slog.Error("Pipeline run aborted", "run_id", state.runID, "error", err)
		return summary, err
	}
	metrics.PipelineRuns.WithLabelValues("completed").Inc()

	slog.Info("Pipeline run finished",
		"run_id", summary.RunID,
		"processed", summary.Processed,
		"errors", summary.Errors,
		"skipped", summary.Skipped,
		"duration", time.Since(started))
	if ctx.Err() != nil {
		return summary, ctx.Err()
	}
	return summary, nil
}

// runConfig records a PipelineExecution around one configuration. It returns an error only
// for storage failures, which abort the run.
func (o *Orchestrator) runConfig(dispatchCtx context.Context, state *runState, cfg models.MonitoringConfiguration) error {
	ctx := context.WithoutCancel(dispatchCtx)
	if o.cfg.ConfigTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.ConfigTimeout)
		defer cancel()
	}

	execution := &models.PipelineExecution{
		RunID:   state.runID,
		AreaID:  cfg.AreaID,
		IndexID: cfg.IndexID,
		Status:  models.ExecutionStatusRunning,
	}
	if err := o.store.CreateExecution(ctx, execution); err != nil {
		return err
	}

	created, skipReason, err := o.processConfig(ctx, state, cfg)

	execution.RecordsCreated = created
	var outcome configOutcome
	switch {
	case err != nil:
		outcome = outcomeFailed
		execution.Status = models.ExecutionStatusFailed
		msg := err.Error()
		execution.ErrorMessage = &msg
		slog.Error("Configuration processing failed",
			"run_id", state.runID,
			"area_id", cfg.AreaID,
			"index", cfg.IndexCode,
			"error", err)
	case skipReason != "":
		outcome = outcomeSkipped
		execution.Status = models.ExecutionStatusSkipped
		execution.ErrorMessage = &skipReason
	default:
		outcome = outcomeProcessed
		execution.Status = models.ExecutionStatusCompleted
	}
	metrics.ConfigExecutions.WithLabelValues(string(execution.Status), cfg.IndexCode).Inc()

	if finishErr := o.store.FinishExecution(ctx, execution); finishErr != nil {
		return finishErr
	}
	if err != nil && errors.Is(err, models.ErrStorage) {
		return err
	}
	state.count(outcome)
	return nil
}

// processConfig returns the number of records created, a non-empty reason when the configuration
// was skipped, or the per-configuration error.
func (o *Orchestrator) processConfig(
	ctx context.Context,
	state *runState,
	cfg models.MonitoringConfiguration,
) (int, string, error) {
	area, err := o.store.GetArea(ctx, cfg.AreaID)
	if err != nil {
		return 0, "", err
	}

	// Scheduled runs are gated by frequency_days instead of window coverage.
	if !state.req.Force && !state.req.RespectCadence {
		covered, err := o.store.HasCompletedInWindow(ctx, cfg.AreaID, cfg.IndexID, state.windowStart, state.windowEnd)
		if err != nil {
			return 0, "", err
		}
		if covered {
			return 0, "window already covered by a completed record", nil
		}
	}

	if state.req.RespectCadence {
		last, err := o.store.LastCompletedCalculation(ctx, cfg.AreaID, cfg.IndexID)
		if err != nil {
			return 0, "", err
		}
		if last != nil && o.now().Sub(*last) < time.Duration(cfg.FrequencyDays)*24*time.Hour {
			return 0, fmt.Sprintf("calculated %s ago, frequency is %d days",
				o.now().Sub(*last).Round(time.Minute), cfg.FrequencyDays), nil
		}
	}

	tuples, err := o.calculator.Process(ctx, CalculationRequest{
		Area:          area,
		IndexCode:     cfg.IndexCode,
		Start:         state.windowStart,
		End:           state.windowEnd,
		Provider:      state.req.Provider,
		CloudCoverMax: cfg.CloudCoverMax,
	})
	if err != nil {
		return 0, "", err
	}

	created := 0
	var dispatchErr error
	for _, tuple := range tuples {
		if tuple.PixelCount < cfg.MinPixelCount {
			metrics.ImagesSkipped.WithLabelValues("min_pixel_count").Inc()
			slog.Info("Skipping tuple below minimum pixel count",
				"area_id", cfg.AreaID,
				"image", tuple.ExternalImageID,
				"pixel_count", tuple.PixelCount,
				"min_pixel_count", cfg.MinPixelCount)
			continue
		}

		record, isNew, err := o.ingest(ctx, area, cfg, tuple)
		if err != nil {
			return created, "", err
		}
		if isNew {
			created++
			metrics.RecordsCreated.WithLabelValues(cfg.IndexCode).Inc()
		}

		// Existing completed records are dispatched again; evaluation is idempotent per record.
		if o.listener != nil && record.Status == models.RecordStatusCompleted {
			if err := o.listener.RecordCompleted(ctx, record); err != nil {
				if errors.Is(err, models.ErrStorage) {
					return created, "", err
				}
				slog.Error("Failed to dispatch alert evaluation", "record_id", record.ID, "error", err)
				dispatchErr = errors.Join(dispatchErr, err)
			}
		}
	}

	if o.archive != nil && len(tuples) > 0 {
		if err := o.archive.ArchiveRun(ctx, state.runID, cfg.AreaID, cfg.IndexCode, tuples); err != nil {
			slog.Error("Failed to archive run statistics",
				"run_id", state.runID,
				"area_id", cfg.AreaID,
				"error", err)
		}
	}

	if dispatchErr != nil {
		return created, "", fmt.Errorf("alert evaluation dispatch failed: %w", dispatchErr)
	}
	return created, "", nil
}

// ingest stores the image, bounded by the area it was first fetched for, and the record. Both writes
// are create-if-absent, so repeated or concurrent runs converge on one row per (area, index, image).
func (o *Orchestrator) ingest(
	ctx context.Context,
	area *models.AreaOfInterest,
	cfg models.MonitoringConfiguration,
	tuple models.StatisticTuple,
) (*models.MonitoringRecord, bool, error) {
	image, err := o.store.GetOrCreateImage(ctx, &models.SatelliteImage{
		Provider:        tuple.Provider,
		ExternalID:      tuple.ExternalImageID,
		AcquisitionDate: tuple.AcquisitionDate,
		CloudCover:      tuple.CloudCover,
		ResolutionM:     tuple.ResolutionM,
		Bounds:          area.Geometry,
	})
	if err != nil {
		return nil, false, err
	}

	return o.store.CreateRecordIfAbsent(ctx, &models.MonitoringRecord{
		AreaID:          cfg.AreaID,
		IndexID:         cfg.IndexID,
		ImageID:         image.ID,
		MeanValue:       tuple.Mean,
		MinValue:        tuple.Min,
		MaxValue:        tuple.Max,
		StdValue:        tuple.Std,
		PixelCount:      tuple.PixelCount,
		Status:          models.RecordStatusCompleted,
		AcquisitionDate: tuple.AcquisitionDate,
		CalculatedAt:    o.now(),
	})
}
