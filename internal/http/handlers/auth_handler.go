package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/liveshop/audit-core/internal/http/dto"
	"github.com/liveshop/audit-core/internal/services"
	"go.uber.org/zap"
)

type AuthHandler struct {
	staffService *services.StaffService
	defaultScope string
	log          *zap.Logger
}

func NewAuthHandler(staffService *services.StaffService, defaultScope string, log *zap.Logger) *AuthHandler {
	return &AuthHandler{staffService: staffService, defaultScope: defaultScope, log: log}
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "email and password are required"})
	}

	token, staff, err := h.staffService.Login(c.Context(), h.defaultScope, req.Email, req.Password)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.LoginResponse{Token: token, Staff: staff})
}
