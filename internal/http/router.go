package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/liveshop/audit-core/internal/config"
	"github.com/liveshop/audit-core/internal/http/handlers"
	"github.com/liveshop/audit-core/internal/middleware"
	"github.com/liveshop/audit-core/internal/services"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	apiKeyService *services.APIKeyService,
	authHandler *handlers.AuthHandler,
	staffHandler *handlers.StaffHandler,
	apiKeyHandler *handlers.APIKeyHandler,
	auditHandler *handlers.AuditHandler,
	escalationHandler *handlers.EscalationHandler,
	seedHandler *handlers.SeedHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-API-Key",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute))

	// Auth (public)
	api.Post("/auth/login", authHandler.Login)

	// Ingest surface for external systems (API-key authenticated)
	ingest := api.Group("/ingest", middleware.APIKeyMiddleware(apiKeyService, log))
	ingest.Post("/audit-log", auditHandler.IngestEntry)

	// Staff surface (JWT authenticated; capability checks happen in the
	// services, not here)
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// Staff management
	protected.Post("/staff", staffHandler.CreateStaff)
	protected.Get("/staff", staffHandler.ListStaff)
	protected.Get("/staff/:id", staffHandler.GetStaff)
	protected.Patch("/staff/:id", staffHandler.UpdateStaff)
	protected.Delete("/staff/:id", staffHandler.DeleteStaff)

	// API keys
	protected.Post("/api-keys", apiKeyHandler.CreateKey)
	protected.Get("/api-keys", apiKeyHandler.ListKeys)
	protected.Post("/api-keys/:id/revoke", apiKeyHandler.RevokeKey)

	// Audit ledger
	protected.Get("/audit-log", auditHandler.ListEntries)
	protected.Post("/audit-log/verify", auditHandler.VerifyChain)

	// Escalations & policy incidents
	protected.Post("/escalations", escalationHandler.CreateEscalation)
	protected.Get("/escalations", escalationHandler.ListEscalations)
	protected.Post("/escalations/:id/ack", escalationHandler.AcknowledgeEscalation)
	protected.Post("/escalations/:id/close", escalationHandler.CloseEscalation)
	protected.Get("/policy-incidents", escalationHandler.ListIncidents)

	// Regression seeds
	protected.Get("/regression-seeds", seedHandler.ListSeeds)
	protected.Post("/regression-seeds/:id/approve", seedHandler.ApproveSeed)
	protected.Post("/regression-seeds/:id/reject", seedHandler.RejectSeed)

	// Live audit feed
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws/audit", websocket.New(wsHub.HandleWS))
}
