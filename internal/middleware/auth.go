package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/liveshop/audit-core/internal/auth"
	"github.com/liveshop/audit-core/internal/config"
	"github.com/liveshop/audit-core/internal/models"
	"go.uber.org/zap"
)

const (
	CtxPrincipalID = "principal_id"
	CtxRole        = "role"
	CtxAPIKeyID    = "api_key_id"
	CtxAPIKeyLabel = "api_key_label"
)

// AuthMiddleware authenticates staff requests via bearer JWT.
func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(CtxPrincipalID, claims.PrincipalID)
		c.Locals(CtxRole, claims.Role)

		return c.Next()
	}
}

func GetPrincipalID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(CtxPrincipalID).(uuid.UUID)
	return id
}

// APIKeyAuthenticator resolves a raw key to its stored record; the
// APIKeyService satisfies it.
type APIKeyAuthenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*models.APIKey, error)
}

// APIKeyMiddleware authenticates machine callers on the ingest surface
// via the X-API-Key header.
func APIKeyMiddleware(keys APIKeyAuthenticator, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rawKey := c.Get("X-API-Key")
		if rawKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing api key"})
		}

		key, err := keys.Authenticate(c.Context(), rawKey)
		if err != nil {
			log.Debug("api key rejected", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid api key"})
		}

		c.Locals(CtxAPIKeyID, key.ID)
		c.Locals(CtxAPIKeyLabel, key.Label)

		return c.Next()
	}
}

func GetAPIKeyID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(CtxAPIKeyID).(uuid.UUID)
	return id
}

func GetAPIKeyLabel(c *fiber.Ctx) string {
	label, _ := c.Locals(CtxAPIKeyLabel).(string)
	return label
}
