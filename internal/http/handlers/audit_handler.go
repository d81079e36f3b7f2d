package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/liveshop/audit-core/internal/http/dto"
	"github.com/liveshop/audit-core/internal/middleware"
	"github.com/liveshop/audit-core/internal/models"
	"github.com/liveshop/audit-core/internal/services"
	"go.uber.org/zap"
)

type AuditHandler struct {
	ledgerService *services.LedgerService
	defaultScope  string
	log           *zap.Logger
}

func NewAuditHandler(ledgerService *services.LedgerService, defaultScope string, log *zap.Logger) *AuditHandler {
	return &AuditHandler{ledgerService: ledgerService, defaultScope: defaultScope, log: log}
}

func (h *AuditHandler) scope(c *fiber.Ctx) string {
	if s := c.Query("scope"); s != "" {
		return s
	}
	return h.defaultScope
}

func (h *AuditHandler) ListEntries(c *fiber.Ctx) error {
	filter := services.LedgerFilter{}
	filter.Limit, filter.Offset = pagination(c)

	if v := c.Query("actor_type"); v != "" {
		filter.ActorType = &v
	}
	if v := c.Query("action"); v != "" {
		filter.Action = &v
	}
	if v := c.Query("severity"); v != "" {
		filter.Severity = &v
	}
	if v := c.Query("ref_type"); v != "" {
		filter.RefType = &v
	}
	if v := c.Query("ref_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid ref_id"})
		}
		filter.RefID = &id
	}
	var err error
	if filter.From, err = parseTimeQuery(c, "from"); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid from timestamp"})
	}
	if filter.To, err = parseTimeQuery(c, "to"); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid to timestamp"})
	}

	actorID := middleware.GetPrincipalID(c)
	entries, err := h.ledgerService.List(c.Context(), actorID, h.scope(c), filter)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entries})
}

// VerifyChain runs a full or time-bounded chain verification. The
// report is a 200 even when the chain is invalid; tampering is data,
// not a transport failure.
func (h *AuditHandler) VerifyChain(c *fiber.Ctx) error {
	var req dto.VerifyRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
		}
	}

	scope := req.Scope
	if scope == "" {
		scope = h.scope(c)
	}
	from, err := parseTimePtr(req.From)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid from timestamp"})
	}
	to, err := parseTimePtr(req.To)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid to timestamp"})
	}

	actorID := middleware.GetPrincipalID(c)
	report, err := h.ledgerService.Verify(c.Context(), actorID, scope, from, to)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: report})
}

// IngestEntry is the append surface for external systems authenticated
// by API key.
func (h *AuditHandler) IngestEntry(c *fiber.Ctx) error {
	var req dto.IngestEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	scope := req.Scope
	if scope == "" {
		scope = h.defaultScope
	}
	actorType := req.ActorType
	if actorType == "" {
		actorType = models.ActorSystem
	}
	actorLabel := req.ActorLabel
	if actorLabel == "" {
		actorLabel = middleware.GetAPIKeyLabel(c)
	}

	input := services.AppendInput{
		ActorType:  actorType,
		ActorLabel: actorLabel,
		Action:     req.Action,
		Severity:   req.Severity,
		RefType:    req.RefType,
		Before:     req.Before,
		After:      req.After,
		Metadata:   req.Metadata,
	}
	if req.ActorID != nil {
		id, err := uuid.Parse(*req.ActorID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid actor_id"})
		}
		input.ActorID = &id
	}
	if req.RefID != nil {
		id, err := uuid.Parse(*req.RefID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid ref_id"})
		}
		input.RefID = &id
	}

	entry, err := h.ledgerService.Append(c.Context(), scope, input)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: entry})
}

func parseTimeQuery(c *fiber.Ctx, key string) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseTimePtr(v *string) (*time.Time, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
