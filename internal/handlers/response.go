package handlers

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"monitoring-service/internal/models"
	"monitoring-service/internal/utils"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const apiPrefix = "monitoring/api/v1"

// respondError maps service errors onto status codes and the error envelope.
func respondError(c fiber.Ctx, err error) error {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.Status(fiber.StatusBadRequest).JSON(utils.CreateFieldErrorResponse("VALIDATION_FAILED", ve.Field, ve.Error()))
	case errors.Is(err, models.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(utils.CreateErrorResponse("NOT_FOUND", err.Error()))
	case errors.Is(err, models.ErrGatewayUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.CreateErrorResponse("GATEWAY_UNAVAILABLE", err.Error()))
	default:
		slog.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(utils.CreateErrorResponse("INTERNAL_SERVER_ERROR", "internal error"))
	}
}

func respondOK(c fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(utils.CreateSuccessResponse(data))
}

func respondList[T any](c fiber.Ctx, items []T) error {
	return c.Status(fiber.StatusOK).JSON(utils.CreateListResponse(items))
}

func pathUUID(c fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, models.NewValidationError(name, "must be a UUID")
	}
	return id, nil
}

// queryTime accepts a date (2006-01-02) or an RFC 3339 timestamp. An empty parameter yields nil.
func queryTime(c fiber.Ctx, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, models.NewValidationError(name, "must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
}

func queryBool(c fiber.Ctx, name string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(c.Query(name))) {
	case "":
		return nil, nil
	case "true", "1":
		v := true
		return &v, nil
	case "false", "0":
		v := false
		return &v, nil
	default:
		return nil, models.NewValidationError(name, "must be true or false")
	}
}
