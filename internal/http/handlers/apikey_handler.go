package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/liveshop/audit-core/internal/http/dto"
	"github.com/liveshop/audit-core/internal/middleware"
	"github.com/liveshop/audit-core/internal/services"
	"go.uber.org/zap"
)

type APIKeyHandler struct {
	keyService   *services.APIKeyService
	defaultScope string
	log          *zap.Logger
}

func NewAPIKeyHandler(keyService *services.APIKeyService, defaultScope string, log *zap.Logger) *APIKeyHandler {
	return &APIKeyHandler{keyService: keyService, defaultScope: defaultScope, log: log}
}

func (h *APIKeyHandler) scope(c *fiber.Ctx) string {
	if s := c.Query("scope"); s != "" {
		return s
	}
	return h.defaultScope
}

// CreateKey returns the raw key in this response and nowhere else.
func (h *APIKeyHandler) CreateKey(c *fiber.Ctx) error {
	var req dto.CreateAPIKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	actorID := middleware.GetPrincipalID(c)
	created, err := h.keyService.CreateKey(c.Context(), actorID, h.scope(c), req.Label, req.ExpiresInDays)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: created})
}

func (h *APIKeyHandler) ListKeys(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	actorID := middleware.GetPrincipalID(c)
	keys, err := h.keyService.ListKeys(c.Context(), actorID, limit, offset)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: keys})
}

func (h *APIKeyHandler) RevokeKey(c *fiber.Ctx) error {
	keyID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid api key id"})
	}

	actorID := middleware.GetPrincipalID(c)
	if err := h.keyService.RevokeKey(c.Context(), actorID, keyID, h.scope(c)); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
