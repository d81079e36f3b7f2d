package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/liveshop/audit-core/internal/auth"
	"github.com/liveshop/audit-core/internal/models"
	"github.com/liveshop/audit-core/internal/rbac"
	"go.uber.org/zap"
)

const refTypeAPIKey = "api_key"

// CreatedAPIKey is returned exactly once; RawKey is not persisted and
// cannot be recovered afterwards.
type CreatedAPIKey struct {
	ID        uuid.UUID  `json:"id"`
	RawKey    string     `json:"raw_key"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type APIKeyService struct {
	keys   APIKeyStore
	guard  *Guard
	ledger *LedgerService
	log    *zap.Logger
}

func NewAPIKeyService(keys APIKeyStore, guard *Guard, ledger *LedgerService, log *zap.Logger) *APIKeyService {
	return &APIKeyService{keys: keys, guard: guard, ledger: ledger, log: log}
}

func (s *APIKeyService) CreateKey(ctx context.Context, actorID uuid.UUID, scope, label string, expiresInDays int) (*CreatedAPIKey, error) {
	actor, err := s.guard.Require(ctx, actorID, rbac.CapManageAPIKeys)
	if err != nil {
		return nil, err
	}
	if expiresInDays < 0 || expiresInDays > 365 {
		return nil, &ValidationError{Field: "expires_in_days", Reason: "must be between 1 and 365"}
	}

	rawKey, keyHash, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	key := &models.APIKey{
		ID:        uuid.New(),
		Label:     label,
		KeyHash:   keyHash,
		Status:    models.APIKeyStatusActive,
		CreatedBy: actor.ID,
	}
	if expiresInDays > 0 {
		expiresAt := time.Now().UTC().AddDate(0, 0, expiresInDays)
		key.ExpiresAt = &expiresAt
	}
	if err := s.keys.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}

	after := map[string]any{"label": key.Label}
	if key.ExpiresAt != nil {
		after["expires_at"] = key.ExpiresAt.Format(time.RFC3339)
	}
	if _, err := s.ledger.Append(ctx, scope, AppendInput{
		ActorType:  models.ActorStaff,
		ActorID:    &actor.ID,
		ActorLabel: actor.Email,
		Action:     "API_KEY_CREATED",
		RefType:    strPtr(refTypeAPIKey),
		RefID:      &key.ID,
		After:      after,
	}); err != nil {
		s.log.Error("failed to audit api key creation", zap.String("key_id", key.ID.String()), zap.Error(err))
	}

	return &CreatedAPIKey{ID: key.ID, RawKey: rawKey, ExpiresAt: key.ExpiresAt}, nil
}

func (s *APIKeyService) RevokeKey(ctx context.Context, actorID, keyID uuid.UUID, scope string) error {
	actor, err := s.guard.Require(ctx, actorID, rbac.CapManageAPIKeys)
	if err != nil {
		return err
	}

	key, err := s.keys.GetByID(ctx, keyID)
	if err != nil {
		return fmt.Errorf("api key %s: %w", keyID, err)
	}
	if key.Status == models.APIKeyStatusRevoked {
		return fmt.Errorf("api key %s is already revoked: %w", keyID, ErrInvalidState)
	}

	key.Status = models.APIKeyStatusRevoked
	if err := s.keys.Update(ctx, key); err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}

	if _, err := s.ledger.Append(ctx, scope, AppendInput{
		ActorType:  models.ActorStaff,
		ActorID:    &actor.ID,
		ActorLabel: actor.Email,
		Action:     "API_KEY_REVOKED",
		Severity:   models.SeverityWarning,
		RefType:    strPtr(refTypeAPIKey),
		RefID:      &key.ID,
		Before:     map[string]any{"status": models.APIKeyStatusActive},
		After:      map[string]any{"status": models.APIKeyStatusRevoked},
	}); err != nil {
		s.log.Error("failed to audit api key revocation", zap.String("key_id", key.ID.String()), zap.Error(err))
	}
	return nil
}

func (s *APIKeyService) ListKeys(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]models.APIKey, error) {
	if _, err := s.guard.Require(ctx, actorID, rbac.CapManageAPIKeys); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.keys.List(ctx, limit, offset)
}

// Authenticate resolves a raw key presented by an external system to its
// stored record. Used by the ingest middleware.
func (s *APIKeyService) Authenticate(ctx context.Context, rawKey string) (*models.APIKey, error) {
	if !auth.LooksLikeAPIKey(rawKey) {
		return nil, &ForbiddenError{Reason: "malformed api key"}
	}
	key, err := s.keys.GetByHash(ctx, auth.HashAPIKey(rawKey))
	if err != nil {
		return nil, &ForbiddenError{Reason: "unknown api key"}
	}
	if !key.IsUsable(time.Now().UTC()) {
		return nil, &ForbiddenError{Reason: "api key is revoked or expired"}
	}
	return key, nil
}
