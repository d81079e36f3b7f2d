package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/liveshop/audit-core/internal/http/dto"
	"github.com/liveshop/audit-core/internal/middleware"
	"github.com/liveshop/audit-core/internal/services"
	"go.uber.org/zap"
)

type StaffHandler struct {
	staffService *services.StaffService
	defaultScope string
	log          *zap.Logger
}

func NewStaffHandler(staffService *services.StaffService, defaultScope string, log *zap.Logger) *StaffHandler {
	return &StaffHandler{staffService: staffService, defaultScope: defaultScope, log: log}
}

func (h *StaffHandler) scope(c *fiber.Ctx) string {
	if s := c.Query("scope"); s != "" {
		return s
	}
	return h.defaultScope
}

func (h *StaffHandler) CreateStaff(c *fiber.Ctx) error {
	var req dto.CreateStaffRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	actorID := middleware.GetPrincipalID(c)
	staff, err := h.staffService.CreateStaff(c.Context(), actorID, h.scope(c), req.Email, req.Password, req.Role, req.Overrides)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: staff})
}

func (h *StaffHandler) ListStaff(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	actorID := middleware.GetPrincipalID(c)
	staff, err := h.staffService.ListStaff(c.Context(), actorID, limit, offset)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: staff})
}

func (h *StaffHandler) GetStaff(c *fiber.Ctx) error {
	staffID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid staff id"})
	}

	actorID := middleware.GetPrincipalID(c)
	staff, err := h.staffService.GetStaff(c.Context(), actorID, staffID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: staff})
}

func (h *StaffHandler) UpdateStaff(c *fiber.Ctx) error {
	staffID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid staff id"})
	}

	var req dto.UpdateStaffRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	actorID := middleware.GetPrincipalID(c)
	upd := services.StaffUpdate{Role: req.Role, Overrides: req.Overrides, Status: req.Status}
	if err := h.staffService.UpdateStaff(c.Context(), actorID, staffID, h.scope(c), upd); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *StaffHandler) DeleteStaff(c *fiber.Ctx) error {
	staffID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid staff id"})
	}

	actorID := middleware.GetPrincipalID(c)
	if err := h.staffService.DeleteStaff(c.Context(), actorID, staffID, h.scope(c)); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func pagination(c *fiber.Ctx) (limit, offset int) {
	limit = 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
