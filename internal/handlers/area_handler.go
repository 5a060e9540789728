package handlers

import (
	"monitoring-service/internal/models"
	"monitoring-service/internal/services"
	"monitoring-service/internal/utils"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type AreaHandler struct {
	areaService          *services.AreaService
	configurationService *services.ConfigurationService
}

func NewAreaHandler(areaService *services.AreaService, configurationService *services.ConfigurationService) *AreaHandler {
	return &AreaHandler{
		areaService:          areaService,
		configurationService: configurationService,
	}
}

func (h *AreaHandler) RegisterRoutes(app *fiber.App) {
	gr := app.Group(apiPrefix)

	gr.Post("/areas", h.SubmitArea)
	gr.Get("/areas", h.ListAreas)
	gr.Get("/areas/:id", h.GetArea)
	gr.Put("/areas/:id", h.UpdateArea)
	gr.Delete("/areas/:id", h.DeleteArea)

	gr.Put("/areas/:id/configurations/:index", h.UpsertConfiguration)
	gr.Get("/areas/:id/configurations/:index", h.GetConfiguration)
}

func (h *AreaHandler) SubmitArea(c fiber.Ctx) error {
	var req models.SubmitAreaRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}
	// owner comes from the gateway-authenticated caller when present
	if ownerID := c.Get("X-User-ID"); ownerID != "" {
		id, err := uuid.Parse(ownerID)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(utils.CreateErrorResponse("UNAUTHORIZED", "invalid X-User-ID"))
		}
		req.OwnerID = id
	}

	area, err := h.areaService.Submit(c.Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusCreated, area)
}

func (h *AreaHandler) ListAreas(c fiber.Ctx) error {
	var ownerID *uuid.UUID
	if raw := c.Query("owner_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return respondError(c, models.NewValidationError("owner_id", "must be a UUID"))
		}
		ownerID = &id
	}
	activeOnly, err := queryBool(c, "active")
	if err != nil {
		return respondError(c, err)
	}

	areas, err := h.areaService.List(c.Context(), ownerID, activeOnly != nil && *activeOnly)
	if err != nil {
		return respondError(c, err)
	}
	return respondList(c, areas)
}

func (h *AreaHandler) GetArea(c fiber.Ctx) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	area, err := h.areaService.Get(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, area)
}

func (h *AreaHandler) UpdateArea(c fiber.Ctx) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req models.UpdateAreaRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}

	area, err := h.areaService.Update(c.Context(), id, req)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, area)
}

func (h *AreaHandler) DeleteArea(c fiber.Ctx) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.areaService.Delete(c.Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AreaHandler) UpsertConfiguration(c fiber.Ctx) error {
	areaID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var settings models.ConfigurationSettings
	if err := c.Bind().Body(&settings); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}

	cfg, err := h.configurationService.Upsert(c.Context(), areaID, c.Params("index"), settings)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, cfg)
}

func (h *AreaHandler) GetConfiguration(c fiber.Ctx) error {
	areaID, err := pathUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	cfg, err := h.configurationService.Get(c.Context(), areaID, c.Params("index"))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.StatusOK, cfg)
}
