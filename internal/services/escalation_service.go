package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/liveshop/audit-core/internal/events"
	"github.com/liveshop/audit-core/internal/models"
	"github.com/liveshop/audit-core/internal/rbac"
	"go.uber.org/zap"
)

const (
	refTypeEscalation = "escalation"
	refTypeSeed       = "regression_seed"
)

// EscalationService tracks incidents that need human acknowledgement,
// plus the adjacent read-only policy incidents and regression seeds.
// Every lifecycle transition is written through the ledger.
type EscalationService struct {
	escalations EscalationStore
	incidents   IncidentStore
	seeds       SeedStore
	guard       *Guard
	ledger      *LedgerService
	publisher   events.Publisher
	log         *zap.Logger
}

func NewEscalationService(
	escalations EscalationStore,
	incidents IncidentStore,
	seeds SeedStore,
	guard *Guard,
	ledger *LedgerService,
	publisher events.Publisher,
	log *zap.Logger,
) *EscalationService {
	return &EscalationService{
		escalations: escalations,
		incidents:   incidents,
		seeds:       seeds,
		guard:       guard,
		ledger:      ledger,
		publisher:   publisher,
		log:         log,
	}
}

func (s *EscalationService) Create(ctx context.Context, actorID uuid.UUID, scope, title string, description *string, severity string) (*models.Escalation, error) {
	actor, err := s.guard.Require(ctx, actorID, rbac.CapManualReleaseTrainControl)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, scope, title, description, severity, models.ActorStaff, &actor.ID, actor.Email)
}

// CreateSystem raises an escalation without a human actor, e.g. when the
// chain verifier detects an integrity failure.
func (s *EscalationService) CreateSystem(ctx context.Context, scope, title string, description *string, severity string) (*models.Escalation, error) {
	return s.create(ctx, scope, title, description, severity, models.ActorSystem, nil, "system")
}

func (s *EscalationService) create(ctx context.Context, scope, title string, description *string, severity, actorType string, actorID *uuid.UUID, actorLabel string) (*models.Escalation, error) {
	if title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if severity == "" {
		severity = models.SeverityWarning
	}
	if !models.IsValidSeverity(severity) {
		return nil, &ValidationError{Field: "severity", Reason: fmt.Sprintf("unknown severity %q", severity)}
	}

	e := &models.Escalation{
		ID:          uuid.New(),
		Scope:       scope,
		Title:       title,
		Description: description,
		Severity:    severity,
		Status:      models.EscalationStatusOpen,
	}
	if err := s.escalations.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create escalation: %w", err)
	}

	s.audit(ctx, scope, actorType, actorID, actorLabel, "ESCALATION_RAISED", severity, refTypeEscalation, e.ID, nil,
		map[string]any{"title": title, "status": e.Status}, nil)

	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, events.StreamAudit, events.Event{
			Type: events.EventEscalationRaised,
			Payload: map[string]any{
				"escalation_id": e.ID.String(),
				"scope":         scope,
				"severity":      severity,
				"title":         title,
			},
		})
	}
	return e, nil
}

func (s *EscalationService) Acknowledge(ctx context.Context, actorID, escalationID uuid.UUID, scope string) error {
	actor, err := s.guard.Require(ctx, actorID, rbac.CapManualReleaseTrainControl)
	if err != nil {
		return err
	}

	e, err := s.escalations.GetByID(ctx, escalationID)
	if err != nil {
		return fmt.Errorf("escalation %s: %w", escalationID, err)
	}
	if !models.IsValidEscalationTransition(e.Status, models.EscalationStatusAcked) {
		return fmt.Errorf("cannot acknowledge escalation in status %s: %w", e.Status, ErrInvalidState)
	}

	now := time.Now().UTC()
	before := map[string]any{"status": e.Status}
	e.Status = models.EscalationStatusAcked
	e.AckedBy = &actor.ID
	e.AckedAt = &now
	if err := s.escalations.Update(ctx, e); err != nil {
		return fmt.Errorf("acknowledge escalation: %w", err)
	}

	s.audit(ctx, scope, models.ActorStaff, &actor.ID, actor.Email, "ESCALATION_ACKNOWLEDGED", models.SeverityInfo, refTypeEscalation,
		e.ID, before, map[string]any{"status": e.Status, "acked_by": actor.ID.String()}, nil)
	return nil
}

func (s *EscalationService) Close(ctx context.Context, actorID, escalationID uuid.UUID, scope string, notes *string) error {
	actor, err := s.guard.Require(ctx, actorID, rbac.CapManualReleaseTrainControl)
	if err != nil {
		return err
	}
	if notes != nil && len(*notes) > models.MaxEscalationNotesLen {
		return &ValidationError{Field: "notes", Reason: fmt.Sprintf("must not exceed %d characters", models.MaxEscalationNotesLen)}
	}

	e, err := s.escalations.GetByID(ctx, escalationID)
	if err != nil {
		return fmt.Errorf("escalation %s: %w", escalationID, err)
	}
	if !models.IsValidEscalationTransition(e.Status, models.EscalationStatusClosed) {
		return fmt.Errorf("cannot close escalation in status %s: %w", e.Status, ErrInvalidState)
	}

	now := time.Now().UTC()
	before := map[string]any{"status": e.Status}
	e.Status = models.EscalationStatusClosed
	e.ClosedBy = &actor.ID
	e.ClosedAt = &now
	e.Notes = notes
	if err := s.escalations.Update(ctx, e); err != nil {
		return fmt.Errorf("close escalation: %w", err)
	}

	var metadata map[string]any
	if notes != nil {
		metadata = map[string]any{"notes": *notes}
	}
	s.audit(ctx, scope, models.ActorStaff, &actor.ID, actor.Email, "ESCALATION_CLOSED", models.SeverityInfo, refTypeEscalation,
		e.ID, before, map[string]any{"status": e.Status}, metadata)
	return nil
}

func (s *EscalationService) ListEscalations(ctx context.Context, actorID uuid.UUID, scope string, status *string, limit, offset int) ([]models.Escalation, error) {
	if _, err := s.guard.Require(ctx, actorID, rbac.CapViewAuditLog); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.escalations.List(ctx, scope, status, limit, offset)
}

// ListIncidents exposes the policy engine's detections, read-only.
func (s *EscalationService) ListIncidents(ctx context.Context, actorID uuid.UUID, scope string, f IncidentFilter) ([]models.PolicyIncident, error) {
	if _, err := s.guard.Require(ctx, actorID, rbac.CapViewAuditLog); err != nil {
		return nil, err
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	return s.incidents.List(ctx, scope, f)
}

func (s *EscalationService) ApproveSeed(ctx context.Context, actorID, seedID uuid.UUID, scope string) error {
	return s.disposeSeed(ctx, actorID, seedID, scope, models.SeedStatusApproved, "REGRESSION_SEED_APPROVED")
}

func (s *EscalationService) RejectSeed(ctx context.Context, actorID, seedID uuid.UUID, scope string) error {
	return s.disposeSeed(ctx, actorID, seedID, scope, models.SeedStatusRejected, "REGRESSION_SEED_REJECTED")
}

func (s *EscalationService) disposeSeed(ctx context.Context, actorID, seedID uuid.UUID, scope, newStatus, action string) error {
	actor, err := s.guard.Require(ctx, actorID, rbac.CapManualReleaseTrainControl)
	if err != nil {
		return err
	}

	seed, err := s.seeds.GetByID(ctx, seedID)
	if err != nil {
		return fmt.Errorf("regression seed %s: %w", seedID, err)
	}
	if !models.IsValidSeedTransition(seed.Status, newStatus) {
		return fmt.Errorf("cannot move seed from %s to %s: %w", seed.Status, newStatus, ErrInvalidState)
	}

	now := time.Now().UTC()
	before := map[string]any{"status": seed.Status}
	seed.Status = newStatus
	seed.ReviewedBy = &actor.ID
	seed.ReviewedAt = &now
	if err := s.seeds.Update(ctx, seed); err != nil {
		return fmt.Errorf("update regression seed: %w", err)
	}

	s.audit(ctx, scope, models.ActorStaff, &actor.ID, actor.Email, action, models.SeverityInfo, refTypeSeed,
		seed.ID, before, map[string]any{"status": newStatus}, nil)
	return nil
}

func (s *EscalationService) ListSeeds(ctx context.Context, actorID uuid.UUID, scope string, status *string, limit, offset int) ([]models.RegressionSeed, error) {
	if _, err := s.guard.Require(ctx, actorID, rbac.CapViewAuditLog); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.seeds.List(ctx, scope, status, limit, offset)
}

func (s *EscalationService) audit(ctx context.Context, scope, actorType string, actorID *uuid.UUID, actorLabel, action, severity, refType string, refID uuid.UUID, before, after, metadata map[string]any) {
	if _, err := s.ledger.Append(ctx, scope, AppendInput{
		ActorType:  actorType,
		ActorID:    actorID,
		ActorLabel: actorLabel,
		Action:     action,
		Severity:   severity,
		RefType:    &refType,
		RefID:      &refID,
		Before:     before,
		After:      after,
		Metadata:   metadata,
	}); err != nil {
		s.log.Error("failed to audit escalation transition",
			zap.String("action", action), zap.String("ref_id", refID.String()), zap.Error(err))
	}
}
