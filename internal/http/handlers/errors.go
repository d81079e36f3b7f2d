package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/liveshop/audit-core/internal/http/dto"
	"github.com/liveshop/audit-core/internal/services"
)

// serviceError maps the service error taxonomy onto HTTP statuses.
// ConcurrencyConflict only escapes the ledger after its internal retries
// are exhausted, so it surfaces as a retryable 503.
func serviceError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		code = fiber.StatusNotFound
	case services.IsForbidden(err):
		code = fiber.StatusForbidden
	case services.IsValidation(err):
		code = fiber.StatusBadRequest
	case errors.Is(err, services.ErrInvalidState):
		code = fiber.StatusConflict
	case errors.Is(err, services.ErrConcurrencyConflict):
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(dto.ErrorResponse{Error: err.Error()})
}
