package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/liveshop/audit-core/internal/http/dto"
	"github.com/liveshop/audit-core/internal/middleware"
	"github.com/liveshop/audit-core/internal/services"
	"go.uber.org/zap"
)

type EscalationHandler struct {
	escalationService *services.EscalationService
	defaultScope      string
	log               *zap.Logger
}

func NewEscalationHandler(escalationService *services.EscalationService, defaultScope string, log *zap.Logger) *EscalationHandler {
	return &EscalationHandler{escalationService: escalationService, defaultScope: defaultScope, log: log}
}

func (h *EscalationHandler) scope(c *fiber.Ctx) string {
	if s := c.Query("scope"); s != "" {
		return s
	}
	return h.defaultScope
}

func (h *EscalationHandler) CreateEscalation(c *fiber.Ctx) error {
	var req dto.CreateEscalationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	actorID := middleware.GetPrincipalID(c)
	escalation, err := h.escalationService.Create(c.Context(), actorID, h.scope(c), req.Title, req.Description, req.Severity)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: escalation})
}

func (h *EscalationHandler) ListEscalations(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	var status *string
	if v := c.Query("status"); v != "" {
		status = &v
	}

	actorID := middleware.GetPrincipalID(c)
	escalations, err := h.escalationService.ListEscalations(c.Context(), actorID, h.scope(c), status, limit, offset)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: escalations})
}

func (h *EscalationHandler) AcknowledgeEscalation(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escalation id"})
	}

	actorID := middleware.GetPrincipalID(c)
	if err := h.escalationService.Acknowledge(c.Context(), actorID, id, h.scope(c)); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *EscalationHandler) CloseEscalation(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escalation id"})
	}

	var req dto.CloseEscalationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
		}
	}

	actorID := middleware.GetPrincipalID(c)
	if err := h.escalationService.Close(c.Context(), actorID, id, h.scope(c), req.Notes); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *EscalationHandler) ListIncidents(c *fiber.Ctx) error {
	filter := services.IncidentFilter{}
	filter.Limit, _ = pagination(c)
	if v := c.Query("session_id"); v != "" {
		filter.SessionID = &v
	}
	if v := c.Query("severity"); v != "" {
		filter.Severity = &v
	}

	actorID := middleware.GetPrincipalID(c)
	incidents, err := h.escalationService.ListIncidents(c.Context(), actorID, h.scope(c), filter)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: incidents})
}
