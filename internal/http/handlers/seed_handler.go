package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/liveshop/audit-core/internal/http/dto"
	"github.com/liveshop/audit-core/internal/middleware"
	"github.com/liveshop/audit-core/internal/services"
	"go.uber.org/zap"
)

type SeedHandler struct {
	escalationService *services.EscalationService
	defaultScope      string
	log               *zap.Logger
}

func NewSeedHandler(escalationService *services.EscalationService, defaultScope string, log *zap.Logger) *SeedHandler {
	return &SeedHandler{escalationService: escalationService, defaultScope: defaultScope, log: log}
}

func (h *SeedHandler) scope(c *fiber.Ctx) string {
	if s := c.Query("scope"); s != "" {
		return s
	}
	return h.defaultScope
}

func (h *SeedHandler) ListSeeds(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	var status *string
	if v := c.Query("status"); v != "" {
		status = &v
	}

	actorID := middleware.GetPrincipalID(c)
	seeds, err := h.escalationService.ListSeeds(c.Context(), actorID, h.scope(c), status, limit, offset)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: seeds})
}

func (h *SeedHandler) ApproveSeed(c *fiber.Ctx) error {
	return h.dispose(c, h.escalationService.ApproveSeed)
}

func (h *SeedHandler) RejectSeed(c *fiber.Ctx) error {
	return h.dispose(c, h.escalationService.RejectSeed)
}

func (h *SeedHandler) dispose(c *fiber.Ctx, fn func(ctx context.Context, actorID, seedID uuid.UUID, scope string) error) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid seed id"})
	}

	actorID := middleware.GetPrincipalID(c)
	if err := fn(c.Context(), actorID, id, h.scope(c)); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
