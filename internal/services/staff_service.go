package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/liveshop/audit-core/internal/auth"
	"github.com/liveshop/audit-core/internal/models"
	"github.com/liveshop/audit-core/internal/rbac"
	"go.uber.org/zap"
)

const refTypeStaff = "staff"

// StaffService manages principals. Every mutation passes the guard and
// lands in the ledger; credentials never appear in audit snapshots.
type StaffService struct {
	principals PrincipalStore
	guard      *Guard
	ledger     *LedgerService
	jwtSecret  string
	jwtExpiry  time.Duration
	log        *zap.Logger
}

func NewStaffService(principals PrincipalStore, guard *Guard, ledger *LedgerService, jwtSecret string, jwtExpiry time.Duration, log *zap.Logger) *StaffService {
	return &StaffService{
		principals: principals,
		guard:      guard,
		ledger:     ledger,
		jwtSecret:  jwtSecret,
		jwtExpiry:  jwtExpiry,
		log:        log,
	}
}

func validateOverrides(overrides []string) error {
	for _, name := range overrides {
		if _, err := rbac.ParseCapability(name); err != nil {
			return &ValidationError{Field: "overrides", Reason: err.Error()}
		}
	}
	return nil
}

func (s *StaffService) CreateStaff(ctx context.Context, actorID uuid.UUID, scope, email, password, role string, overrides []string) (*models.Principal, error) {
	actor, err := s.guard.Require(ctx, actorID, rbac.CapManageStaff)
	if err != nil {
		return nil, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return nil, &ValidationError{Field: "email", Reason: "not a valid address"}
	}
	if len(password) < auth.MinPasswordLen {
		return nil, &ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", auth.MinPasswordLen)}
	}
	if _, err := rbac.ParseRole(role); err != nil {
		return nil, &ValidationError{Field: "role", Reason: err.Error()}
	}
	if err := validateOverrides(overrides); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	p := &models.Principal{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Overrides:    overrides,
		Status:       models.PrincipalStatusActive,
	}
	if err := s.principals.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create staff: %w", err)
	}

	if _, err := s.ledger.Append(ctx, scope, AppendInput{
		ActorType:  models.ActorStaff,
		ActorID:    &actor.ID,
		ActorLabel: actor.Email,
		Action:     "STAFF_USER_CREATED",
		RefType:    strPtr(refTypeStaff),
		RefID:      &p.ID,
		After:      map[string]any{"email": p.Email, "role": p.Role},
	}); err != nil {
		s.log.Error("failed to audit staff creation", zap.String("staff_id", p.ID.String()), zap.Error(err))
	}
	return p, nil
}

// StaffUpdate carries the optional fields of an update; nil means leave
// unchanged.
type StaffUpdate struct {
	Role      *string
	Overrides []string
	Status    *string
}

func (s *StaffService) UpdateStaff(ctx context.Context, actorID, staffID uuid.UUID, scope string, upd StaffUpdate) error {
	actor, err := s.guard.Require(ctx, actorID, rbac.CapManageStaff)
	if err != nil {
		return err
	}

	target, err := s.principals.GetByID(ctx, staffID)
	if err != nil {
		return fmt.Errorf("staff %s: %w", staffID, err)
	}

	// Audit only the fields that actually changed.
	before := map[string]any{}
	after := map[string]any{}

	if upd.Role != nil && *upd.Role != target.Role {
		if _, err := rbac.ParseRole(*upd.Role); err != nil {
			return &ValidationError{Field: "role", Reason: err.Error()}
		}
		before["role"] = target.Role
		after["role"] = *upd.Role
		target.Role = *upd.Role
	}
	if upd.Overrides != nil {
		if err := validateOverrides(upd.Overrides); err != nil {
			return err
		}
		before["overrides"] = target.Overrides
		after["overrides"] = upd.Overrides
		target.Overrides = upd.Overrides
	}
	if upd.Status != nil && *upd.Status != target.Status {
		if *upd.Status != models.PrincipalStatusActive && *upd.Status != models.PrincipalStatusDisabled {
			return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *upd.Status)}
		}
		before["status"] = target.Status
		after["status"] = *upd.Status
		target.Status = *upd.Status
	}

	if len(after) == 0 {
		return nil
	}

	if err := s.principals.Update(ctx, target); err != nil {
		return fmt.Errorf("update staff: %w", err)
	}

	if _, err := s.ledger.Append(ctx, scope, AppendInput{
		ActorType:  models.ActorStaff,
		ActorID:    &actor.ID,
		ActorLabel: actor.Email,
		Action:     "STAFF_USER_UPDATED",
		RefType:    strPtr(refTypeStaff),
		RefID:      &target.ID,
		Before:     before,
		After:      after,
	}); err != nil {
		s.log.Error("failed to audit staff update", zap.String("staff_id", target.ID.String()), zap.Error(err))
	}
	return nil
}

// DeleteStaff disables the account. Rows are never removed, so ledger
// entries that reference the principal stay resolvable.
func (s *StaffService) DeleteStaff(ctx context.Context, actorID, staffID uuid.UUID, scope string) error {
	actor, err := s.guard.Require(ctx, actorID, rbac.CapManageStaff)
	if err != nil {
		return err
	}

	target, err := s.principals.GetByID(ctx, staffID)
	if err != nil {
		return fmt.Errorf("staff %s: %w", staffID, err)
	}
	if target.Status == models.PrincipalStatusDisabled {
		return fmt.Errorf("staff %s is already disabled: %w", staffID, ErrInvalidState)
	}

	before := map[string]any{"status": target.Status}
	target.Status = models.PrincipalStatusDisabled
	if err := s.principals.Update(ctx, target); err != nil {
		return fmt.Errorf("disable staff: %w", err)
	}

	if _, err := s.ledger.Append(ctx, scope, AppendInput{
		ActorType:  models.ActorStaff,
		ActorID:    &actor.ID,
		ActorLabel: actor.Email,
		Action:     "STAFF_USER_DELETED",
		Severity:   models.SeverityWarning,
		RefType:    strPtr(refTypeStaff),
		RefID:      &target.ID,
		Before:     before,
		After:      map[string]any{"status": models.PrincipalStatusDisabled},
	}); err != nil {
		s.log.Error("failed to audit staff delete", zap.String("staff_id", target.ID.String()), zap.Error(err))
	}
	return nil
}

func (s *StaffService) GetStaff(ctx context.Context, actorID, id uuid.UUID) (*models.Principal, error) {
	if _, err := s.guard.Require(ctx, actorID, rbac.CapManageStaff); err != nil {
		return nil, err
	}
	return s.principals.GetByID(ctx, id)
}

func (s *StaffService) ListStaff(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]models.Principal, error) {
	if _, err := s.guard.Require(ctx, actorID, rbac.CapManageStaff); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.principals.List(ctx, limit, offset)
}

// Login checks staff credentials and issues a session token. Both
// outcomes are audited; the failure entry never names which part of the
// credential pair was wrong.
func (s *StaffService) Login(ctx context.Context, scope, email, password string) (string, *models.Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	p, err := s.principals.GetByEmail(ctx, email)
	if err != nil || !auth.CheckPassword(p.PasswordHash, password) {
		s.auditLoginFailure(ctx, scope, email)
		return "", nil, &ForbiddenError{Reason: "invalid credentials"}
	}
	if !p.IsActive() {
		s.auditLoginFailure(ctx, scope, email)
		return "", nil, &ForbiddenError{Reason: "account is disabled"}
	}

	token, err := auth.GenerateJWT(s.jwtSecret, p.ID, p.Role, s.jwtExpiry)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}

	if _, err := s.ledger.Append(ctx, scope, AppendInput{
		ActorType:  models.ActorStaff,
		ActorID:    &p.ID,
		ActorLabel: p.Email,
		Action:     "STAFF_LOGIN",
		RefType:    strPtr(refTypeStaff),
		RefID:      &p.ID,
	}); err != nil {
		s.log.Error("failed to audit login", zap.String("staff_id", p.ID.String()), zap.Error(err))
	}
	return token, p, nil
}

func (s *StaffService) auditLoginFailure(ctx context.Context, scope, email string) {
	if _, err := s.ledger.Append(ctx, scope, AppendInput{
		ActorType:  models.ActorSystem,
		ActorLabel: "auth",
		Action:     "STAFF_LOGIN_FAILED",
		Severity:   models.SeverityWarning,
		Metadata:   map[string]any{"email": email},
	}); err != nil {
		s.log.Error("failed to audit login failure", zap.Error(err))
	}
}

// Bootstrap creates the initial founder account when the principal table
// is empty. Recorded as a SYSTEM action since no actor exists yet.
func (s *StaffService) Bootstrap(ctx context.Context, scope, email, password string) error {
	count, err := s.principals.Count(ctx)
	if err != nil {
		return fmt.Errorf("count principals: %w", err)
	}
	if count > 0 {
		return nil
	}
	if email == "" || len(password) < auth.MinPasswordLen {
		return errors.New("founder bootstrap requires FOUNDER_EMAIL and a FOUNDER_PASSWORD of at least 8 characters")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash founder password: %w", err)
	}
	p := &models.Principal{
		ID:           uuid.New(),
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		Role:         rbac.RoleFounder.String(),
		Status:       models.PrincipalStatusActive,
	}
	if err := s.principals.Create(ctx, p); err != nil {
		return fmt.Errorf("create founder: %w", err)
	}

	if _, err := s.ledger.Append(ctx, scope, AppendInput{
		ActorType:  models.ActorSystem,
		ActorLabel: "bootstrap",
		Action:     "FOUNDER_BOOTSTRAPPED",
		RefType:    strPtr(refTypeStaff),
		RefID:      &p.ID,
		After:      map[string]any{"email": p.Email, "role": p.Role},
	}); err != nil {
		s.log.Error("failed to audit founder bootstrap", zap.Error(err))
	}
	s.log.Info("founder account bootstrapped", zap.String("email", p.Email))
	return nil
}

func strPtr(s string) *string {
	return &s
}
