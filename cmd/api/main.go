package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/liveshop/audit-core/internal/config"
	"github.com/liveshop/audit-core/internal/db"
	"github.com/liveshop/audit-core/internal/events"
	apphttp "github.com/liveshop/audit-core/internal/http"
	"github.com/liveshop/audit-core/internal/http/handlers"
	"github.com/liveshop/audit-core/internal/rbac"
	"github.com/liveshop/audit-core/internal/repositories"
	"github.com/liveshop/audit-core/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	principalRepo := repositories.NewPrincipalRepo(pool)
	ledgerRepo := repositories.NewLedgerRepo(pool)
	apiKeyRepo := repositories.NewAPIKeyRepo(pool)
	escalationRepo := repositories.NewEscalationRepo(pool)
	incidentRepo := repositories.NewIncidentRepo(pool)
	seedRepo := repositories.NewSeedRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	catalog := rbac.DefaultCatalog()
	guard := services.NewGuard(principalRepo, catalog, log)
	ledgerService := services.NewLedgerService(ledgerRepo, guard, publisher, log)
	staffService := services.NewStaffService(principalRepo, guard, ledgerService, cfg.JWTSecret, cfg.JWTExpiration, log)
	apiKeyService := services.NewAPIKeyService(apiKeyRepo, guard, ledgerService, log)
	escalationService := services.NewEscalationService(escalationRepo, incidentRepo, seedRepo, guard, ledgerService, publisher, log)

	// Founder bootstrap (no-op once any principal exists)
	if cfg.FounderEmail != "" {
		if err := staffService.Bootstrap(ctx, cfg.DefaultScope, cfg.FounderEmail, cfg.FounderPassword); err != nil {
			log.Fatal("founder bootstrap failed", zap.Error(err))
		}
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(staffService, cfg.DefaultScope, log)
	staffHandler := handlers.NewStaffHandler(staffService, cfg.DefaultScope, log)
	apiKeyHandler := handlers.NewAPIKeyHandler(apiKeyService, cfg.DefaultScope, log)
	auditHandler := handlers.NewAuditHandler(ledgerService, cfg.DefaultScope, log)
	escalationHandler := handlers.NewEscalationHandler(escalationService, cfg.DefaultScope, log)
	seedHandler := handlers.NewSeedHandler(escalationService, cfg.DefaultScope, log)
	wsHub := handlers.NewWSHub(cfg, catalog, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, apiKeyService,
		authHandler, staffHandler, apiKeyHandler, auditHandler, escalationHandler, seedHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting audit core API", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
