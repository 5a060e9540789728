package handlers

import (
	"context"
	"slices"
	"strings"

	"monitoring-service/internal/models"
	"monitoring-service/internal/services"
	"monitoring-service/internal/utils"
	"monitoring-service/internal/worker"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// ReadinessCheck reports whether a backend can serve requests.
type ReadinessCheck func(ctx context.Context) error

type PipelineHandler struct {
	orchestrator      *services.Orchestrator
	jobs              services.JobSubmitter
	monitoringService *services.MonitoringService
	indexService      *services.VegetationIndexService
	checks            map[string]ReadinessCheck
}

// NewPipelineHandler wires the run endpoints. jobs may be nil, in which case runs execute inline.
func NewPipelineHandler(
	orchestrator *services.Orchestrator,
	jobs services.JobSubmitter,
	monitoringService *services.MonitoringService,
	indexService *services.VegetationIndexService,
	checks map[string]ReadinessCheck,
) *PipelineHandler {
	return &PipelineHandler{
		orchestrator:      orchestrator,
		jobs:              jobs,
		monitoringService: monitoringService,
		indexService:      indexService,
		checks:            checks,
	}
}

func (h *PipelineHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/checkhealth", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString("Monitoring service is healthy")
	})
	app.Get("/ready", h.Ready)

	gr := app.Group(apiPrefix)
	gr.Post("/runs", h.TriggerRun)
	gr.Get("/runs/:id/executions", h.GetRunExecutions)
	gr.Get("/indices", h.ListIndices)
}

func (h *PipelineHandler) Ready(c fiber.Ctx) error {
	status := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(c.Context()); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.CreateErrorResponse("NOT_READY", formatStatus(status)))
	}
	return respondOK(c, fiber.StatusOK, status)
}

// TriggerRun queues a pipeline run. With ?wait=true, or without a job queue, the run executes in the
// request and its summary is returned.
func (h *PipelineHandler) TriggerRun(c fiber.Ctx) error {
	var req models.RunRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
		}
	}
	req.IndexCode = strings.ToUpper(strings.TrimSpace(req.IndexCode))

	wait, err := queryBool(c, "wait")
	if err != nil {
		return respondError(c, err)
	}

	if h.jobs == nil || (wait != nil && *wait) {
		summary, err := h.orchestrator.Run(c.Context(), req)
		if err != nil {
			return respondError(c, err)
		}
		return respondOK(c, fiber.StatusOK, summary)
	}

	if req.DaysBack < 0 {
		return respondError(c, models.NewValidationError("days_back", "must be at least 0"))
	}
	jobID := worker.JobTypeRunPipeline + ":manual:" + uuid.NewString()
	accepted, err := h.jobs.SubmitJob(c.Context(), worker.JobPayload{
		JobID:  jobID,
		Type:   worker.JobTypeRunPipeline,
		Params: services.RunPipelineParams(req),
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusAccepted, map[string]any{
		"job_id":   jobID,
		"accepted": accepted,
	})
}

func (h *PipelineHandler) GetRunExecutions(c fiber.Ctx) error {
	runID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	executions, err := h.monitoringService.GetRunExecutions(c.Context(), runID)
	if err != nil {
		return respondError(c, err)
	}
	return respondList(c, executions)
}

func (h *PipelineHandler) ListIndices(c fiber.Ctx) error {
	indices, err := h.indexService.List(c.Context(), true)
	if err != nil {
		return respondError(c, err)
	}
	return respondList(c, indices)
}

func formatStatus(status map[string]string) string {
	parts := make([]string, 0, len(status))
	for name, s := range status {
		parts = append(parts, name+": "+s)
	}
	slices.Sort(parts)
	return strings.Join(parts, "; ")
}
