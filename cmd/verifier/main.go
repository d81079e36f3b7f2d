package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/liveshop/audit-core/internal/config"
	"github.com/liveshop/audit-core/internal/db"
	"github.com/liveshop/audit-core/internal/events"
	"github.com/liveshop/audit-core/internal/models"
	"github.com/liveshop/audit-core/internal/rbac"
	"github.com/liveshop/audit-core/internal/repositories"
	"github.com/liveshop/audit-core/internal/services"
	"go.uber.org/zap"
)

// The verifier periodically walks every scope's hash chain. Integrity
// failures raise an escalation so a human has to acknowledge them.
func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repos
	principalRepo := repositories.NewPrincipalRepo(pool)
	ledgerRepo := repositories.NewLedgerRepo(pool)
	escalationRepo := repositories.NewEscalationRepo(pool)
	incidentRepo := repositories.NewIncidentRepo(pool)
	seedRepo := repositories.NewSeedRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	guard := services.NewGuard(principalRepo, rbac.DefaultCatalog(), log)
	ledgerService := services.NewLedgerService(ledgerRepo, guard, publisher, log)
	escalationService := services.NewEscalationService(escalationRepo, incidentRepo, seedRepo, guard, ledgerService, publisher, log)

	log.Info("chain verifier started", zap.Duration("interval", cfg.VerifyInterval))

	ticker := time.NewTicker(cfg.VerifyInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// First pass on startup rather than waiting a full interval.
	runVerification(ctx, ledgerService, escalationService, log)

	for {
		select {
		case <-ticker.C:
			runVerification(ctx, ledgerService, escalationService, log)
		case <-sigCh:
			log.Info("shutting down verifier")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runVerification(ctx context.Context, ledgerService *services.LedgerService, escalationService *services.EscalationService, log *zap.Logger) {
	scopes, err := ledgerService.Scopes(ctx)
	if err != nil {
		log.Error("failed to list ledger scopes", zap.Error(err))
		return
	}

	for _, scope := range scopes {
		report, err := ledgerService.VerifySystem(ctx, scope, nil, nil)
		if err != nil {
			log.Error("chain verification failed to run", zap.String("scope", scope), zap.Error(err))
			continue
		}

		if report.Valid {
			log.Info("chain verified",
				zap.String("scope", scope),
				zap.Int("entries_checked", report.EntriesChecked),
			)
			continue
		}

		log.Error("chain integrity failure",
			zap.String("scope", scope),
			zap.Int("entries_checked", report.EntriesChecked),
			zap.Int("errors_found", len(report.Errors)),
		)

		description := fmt.Sprintf("chain verification found %d error(s) across %d entries; first: %s",
			len(report.Errors), report.EntriesChecked, report.Errors[0].Error)
		if _, err := escalationService.CreateSystem(ctx, scope,
			"audit chain integrity failure", &description, models.SeverityCritical); err != nil {
			log.Error("failed to raise integrity escalation", zap.String("scope", scope), zap.Error(err))
		}
	}
}
