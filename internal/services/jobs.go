package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"monitoring-service/internal/models"
	"monitoring-service/internal/worker"

	"github.com/google/uuid"
)

// JobSubmitter is the submit side of the worker pool.
type JobSubmitter interface {
	SubmitJob(ctx context.Context, job worker.JobPayload) (bool, error)
}

// EvaluateAlertsJobID embeds the record id so a record is evaluated by at most one queued job.
func EvaluateAlertsJobID(recordID uuid.UUID) string {
	return worker.JobTypeEvaluateAlerts + ":" + recordID.String()
}

// AlertJobDispatcher turns committed records into evaluate-alerts jobs.
type AlertJobDispatcher struct {
	jobs       JobSubmitter
	maxRetries int
}

func NewAlertJobDispatcher(jobs JobSubmitter, maxRetries int) *AlertJobDispatcher {
	return &AlertJobDispatcher{jobs: jobs, maxRetries: maxRetries}
}

func (d *AlertJobDispatcher) RecordCompleted(ctx context.Context, record *models.MonitoringRecord) error {
	_, err := d.jobs.SubmitJob(ctx, worker.JobPayload{
		JobID:      EvaluateAlertsJobID(record.ID),
		Type:       worker.JobTypeEvaluateAlerts,
		Params:     map[string]any{"record_id": record.ID.String()},
		MaxRetries: d.maxRetries,
	})
	return err
}

// ============================================================================
// JOB HANDLERS
// ============================================================================

// EvaluateAlertsHandler returns the worker handler of evaluate-alerts jobs.
func EvaluateAlertsHandler(evaluator *AlertEvaluator) worker.JobHandler {
	return func(ctx context.Context, params map[string]any) (map[string]any, error) {
		recordID, err := uuid.Parse(paramString(params, "record_id"))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid record_id: %v", worker.ErrPermanent, err)
		}
		alerts, err := evaluator.EvaluateRecord(ctx, recordID)
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", worker.ErrPermanent, err)
		}
		if err != nil {
			return nil, err
		}
		return map[string]any{"alerts_created": len(alerts)}, nil
	}
}

// RunPipelineHandler returns the worker handler of run-pipeline jobs.
func RunPipelineHandler(orchestrator *Orchestrator) worker.JobHandler {
	return func(ctx context.Context, params map[string]any) (map[string]any, error) {
		req, err := RunRequestFromParams(params)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", worker.ErrPermanent, err)
		}
		summary, err := orchestrator.Run(ctx, req)
		result := map[string]any{
			"run_id":    summary.RunID.String(),
			"processed": summary.Processed,
			"errors":    summary.Errors,
			"skipped":   summary.Skipped,
		}
		if models.IsValidationError(err) {
			return result, fmt.Errorf("%w: %v", worker.ErrPermanent, err)
		}
		return result, err
	}
}

// RetentionHandler returns the worker handler of cleanup-retention jobs.
func RetentionHandler(retention *RetentionService, defaultDays int) worker.JobHandler {
	return func(ctx context.Context, params map[string]any) (map[string]any, error) {
		days := paramInt(params, "days_to_keep", defaultDays)
		result, err := retention.Cleanup(ctx, days)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"records_deleted": result.RecordsDeleted,
			"alerts_deleted":  result.AlertsDeleted,
		}, nil
	}
}

// RunPipelineParams is the inverse of RunRequestFromParams.
func RunPipelineParams(req models.RunRequest) map[string]any {
	params := map[string]any{
		"index_code":      req.IndexCode,
		"days_back":       req.DaysBack,
		"force":           req.Force,
		"provider":        string(req.Provider),
		"respect_cadence": req.RespectCadence,
	}
	if req.AreaID != nil {
		params["area_id"] = req.AreaID.String()
	}
	return params
}

// RunRequestFromParams decodes job params. Numbers arrive as float64 after a JSON round trip.
func RunRequestFromParams(params map[string]any) (models.RunRequest, error) {
	req := models.RunRequest{
		IndexCode:      strings.ToUpper(paramString(params, "index_code")),
		DaysBack:       paramInt(params, "days_back", 0),
		Force:          paramBool(params, "force"),
		Provider:       models.Provider(strings.ToUpper(paramString(params, "provider"))),
		RespectCadence: paramBool(params, "respect_cadence"),
	}
	if raw := paramString(params, "area_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return req, fmt.Errorf("invalid area_id %q: %w", raw, err)
		}
		req.AreaID = &id
	}
	return req, nil
}

func paramString(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func paramBool(params map[string]any, key string) bool {
	v, _ := params[key].(bool)
	return v
}

func paramInt(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}
