package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/liveshop/audit-core/internal/models"
)

// Storage interfaces consumed by the services. The pgx repositories in
// internal/repositories implement them; tests substitute in-memory fakes.

type PrincipalStore interface {
	Create(ctx context.Context, p *models.Principal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Principal, error)
	GetByEmail(ctx context.Context, email string) (*models.Principal, error)
	Update(ctx context.Context, p *models.Principal) error
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, limit, offset int) ([]models.Principal, error)
}

// LedgerFilter narrows List results. Zero-value fields are ignored.
type LedgerFilter struct {
	ActorType *string
	Action    *string
	Severity  *string
	RefType   *string
	RefID     *uuid.UUID
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

type LedgerStore interface {
	// Insert persists the entry atomically and fills Seq. Returns
	// ErrConcurrencyConflict when another append already claimed the
	// entry's prev hash for this scope.
	Insert(ctx context.Context, e *models.LedgerEntry) error
	// LastEntry returns the newest entry of the scope, or ErrNotFound.
	LastEntry(ctx context.Context, scope string) (*models.LedgerEntry, error)
	List(ctx context.Context, scope string, f LedgerFilter) ([]models.LedgerEntry, error)
	// WalkRange returns entries in chain order (ascending seq),
	// optionally bounded by creation time.
	WalkRange(ctx context.Context, scope string, from, to *time.Time) ([]models.LedgerEntry, error)
	Scopes(ctx context.Context) ([]string, error)
}

type APIKeyStore interface {
	Create(ctx context.Context, k *models.APIKey) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.APIKey, error)
	GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	Update(ctx context.Context, k *models.APIKey) error
	List(ctx context.Context, limit, offset int) ([]models.APIKey, error)
}

type EscalationStore interface {
	Create(ctx context.Context, e *models.Escalation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Escalation, error)
	Update(ctx context.Context, e *models.Escalation) error
	List(ctx context.Context, scope string, status *string, limit, offset int) ([]models.Escalation, error)
}

type IncidentFilter struct {
	SessionID *string
	Severity  *string
	Limit     int
}

type IncidentStore interface {
	List(ctx context.Context, scope string, f IncidentFilter) ([]models.PolicyIncident, error)
}

type SeedStore interface {
	Create(ctx context.Context, s *models.RegressionSeed) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RegressionSeed, error)
	Update(ctx context.Context, s *models.RegressionSeed) error
	List(ctx context.Context, scope string, status *string, limit, offset int) ([]models.RegressionSeed, error)
}
