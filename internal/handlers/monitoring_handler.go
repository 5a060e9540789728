package handlers

import (
	"strconv"

	"monitoring-service/internal/models"
	"monitoring-service/internal/services"

	"github.com/gofiber/fiber/v3"
)

type MonitoringHandler struct {
	monitoringService *services.MonitoringService
	analyticsService  *services.AnalyticsService
}

func NewMonitoringHandler(monitoringService *services.MonitoringService, analyticsService *services.AnalyticsService) *MonitoringHandler {
	return &MonitoringHandler{
		monitoringService: monitoringService,
		analyticsService:  analyticsService,
	}
}

func (h *MonitoringHandler) RegisterRoutes(app *fiber.App) {
	gr := app.Group(apiPrefix)

	gr.Get("/areas/:id/records", h.GetRecords)
	gr.Get("/areas/:id/alerts", h.GetAlerts)
	gr.Post("/alerts/:id/resolve", h.ResolveAlert)

	gr.Get("/areas/:id/statistics", h.GetStatistics)
	gr.Get("/areas/:id/alerts/summary", h.GetAlertSummary)
	gr.Get("/areas/:id/trend", h.GetTrend)
	gr.Get("/areas/:id/anomalies", h.GetAnomalies)
}

// GetRecords supports ?index=NDVI&from=2024-01-01&to=2024-02-01.
func (h *MonitoringHandler) GetRecords(c fiber.Ctx) error {
	areaID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	from, err := queryTime(c, "from")
	if err != nil {
		return respondError(c, err)
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return respondError(c, err)
	}

	records, err := h.monitoringService.GetRecords(c.Context(), areaID, c.Query("index"), from, to)
	if err != nil {
		return respondError(c, err)
	}
	return respondList(c, records)
}

func (h *MonitoringHandler) GetAlerts(c fiber.Ctx) error {
	areaID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	resolved, err := queryBool(c, "resolved")
	if err != nil {
		return respondError(c, err)
	}

	alerts, err := h.monitoringService.GetAlerts(c.Context(), areaID, resolved)
	if err != nil {
		return respondError(c, err)
	}
	return respondList(c, alerts)
}

func (h *MonitoringHandler) ResolveAlert(c fiber.Ctx) error {
	alertID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	alert, err := h.monitoringService.ResolveAlert(c.Context(), alertID)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, alert)
}

func (h *MonitoringHandler) GetStatistics(c fiber.Ctx) error {
	areaID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	stats, err := h.analyticsService.StatisticsSummary(c.Context(), areaID)
	if err != nil {
		return respondError(c, err)
	}
	return respondList(c, stats)
}

func (h *MonitoringHandler) GetAlertSummary(c fiber.Ctx) error {
	areaID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	summary, err := h.analyticsService.AlertSummary(c.Context(), areaID)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, summary)
}

func (h *MonitoringHandler) GetTrend(c fiber.Ctx) error {
	areaID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	trend, err := h.analyticsService.Trend(c.Context(), areaID, c.Query("index"))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, trend)
}

func (h *MonitoringHandler) GetAnomalies(c fiber.Ctx) error {
	areaID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	threshold := services.DefaultAnomalyThreshold
	if raw := c.Query("threshold"); raw != "" {
		threshold, err = strconv.ParseFloat(raw, 64)
		if err != nil || threshold <= 0 {
			return respondError(c, models.NewValidationError("threshold", "must be a positive number"))
		}
	}

	anomalies, err := h.analyticsService.Anomalies(c.Context(), areaID, c.Query("index"), threshold)
	if err != nil {
		return respondError(c, err)
	}
	return respondList(c, anomalies)
}
