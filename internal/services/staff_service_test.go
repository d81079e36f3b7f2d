package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/liveshop/audit-core/internal/auth"
	"github.com/liveshop/audit-core/internal/models"
	"github.com/liveshop/audit-core/internal/rbac"
	"go.uber.org/zap"
)

func newStaffService(env *testEnv) *StaffService {
	return NewStaffService(env.principals, env.guard, env.ledger, "test-secret", time.Hour, zap.NewNop())
}

func lastAction(t *testing.T, env *testEnv, scope string) *models.LedgerEntry {
	t.Helper()
	e, err := env.ledgerStore.LastEntry(context.Background(), scope)
	if err != nil {
		t.Fatalf("last entry: %v", err)
	}
	return e
}

func TestCreateStaffRequiresManageStaff(t *testing.T) {
	env := newTestEnv(t)
	svc := newStaffService(env)
	ctx := context.Background()

	if _, err := svc.CreateStaff(ctx, env.ops.ID, "platform", "new@example.com", "sup3rsecret", "viewer", nil); !IsForbidden(err) {
		t.Fatalf("ops create: got %v, want forbidden", err)
	}
	if _, err := svc.CreateStaff(ctx, env.admin.ID, "platform", "new@example.com", "sup3rsecret", "viewer", nil); !IsForbidden(err) {
		t.Fatalf("admin create: got %v, want forbidden", err)
	}
	if _, err := svc.CreateStaff(ctx, env.founder.ID, "platform", "new@example.com", "sup3rsecret", "viewer", nil); err != nil {
		t.Fatalf("founder create: %v", err)
	}
}

func TestCreateStaffValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := newStaffService(env)
	ctx := context.Background()

	tests := []struct {
		name      string
		email     string
		password  string
		role      string
		overrides []string
	}{
		{"bad email", "not-an-address", "sup3rsecret", "ops", nil},
		{"short password", "a@b.com", "short", "ops", nil},
		{"unknown role", "a@b.com", "sup3rsecret", "wizard", nil},
		{"unknown override", "a@b.com", "sup3rsecret", "ops", []string{"FLY"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateStaff(ctx, env.founder.ID, "platform", tt.email, tt.password, tt.role, tt.overrides)
			if !IsValidation(err) {
				t.Fatalf("got %v, want validation error", err)
			}
		})
	}
}

func TestCreateStaffAuditsWithoutCredentials(t *testing.T) {
	env := newTestEnv(t)
	svc := newStaffService(env)
	ctx := context.Background()

	p, err := svc.CreateStaff(ctx, env.founder.ID, "platform", "Mixed.Case@Example.COM", "sup3rsecret", "ops", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Email != "mixed.case@example.com" {
		t.Fatalf("email not lowercased: %s", p.Email)
	}
	if p.PasswordHash == "sup3rsecret" {
		t.Fatal("password stored in clear")
	}

	e := lastAction(t, env, "platform")
	if e.Action != "STAFF_USER_CREATED" {
		t.Fatalf("last action = %s", e.Action)
	}
	after, ok := e.After.(map[string]any)
	if !ok {
		t.Fatalf("after snapshot is %T", e.After)
	}
	if _, leaked := after["password"]; leaked {
		t.Fatal("audit snapshot contains the password")
	}
	if _, leaked := after["password_hash"]; leaked {
		t.Fatal("audit snapshot contains the password hash")
	}
	if after["email"] != p.Email || after["role"] != "ops" {
		t.Fatalf("unexpected snapshot: %v", after)
	}
}

func TestUpdateStaffAuditsChangedFieldsOnly(t *testing.T) {
	env := newTestEnv(t)
	svc := newStaffService(env)
	ctx := context.Background()

	role := "admin"
	if err := svc.UpdateStaff(ctx, env.founder.ID, env.ops.ID, "platform", StaffUpdate{Role: &role}); err != nil {
		t.Fatalf("update: %v", err)
	}

	updated, err := env.principals.GetByID(ctx, env.ops.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.Role != "admin" {
		t.Fatalf("role = %s, want admin", updated.Role)
	}

	e := lastAction(t, env, "platform")
	if e.Action != "STAFF_USER_UPDATED" {
		t.Fatalf("last action = %s", e.Action)
	}
	before := e.Before.(map[string]any)
	after := e.After.(map[string]any)
	if before["role"] != "ops" || after["role"] != "admin" {
		t.Fatalf("snapshots = %v -> %v", before, after)
	}
	if _, present := after["status"]; present {
		t.Fatal("unchanged field recorded in snapshot")
	}
}

func TestUpdateStaffNoopSkipsAudit(t *testing.T) {
	env := newTestEnv(t)
	svc := newStaffService(env)
	ctx := context.Background()

	sameRole := env.ops.Role
	if err := svc.UpdateStaff(ctx, env.founder.ID, env.ops.ID, "platform", StaffUpdate{Role: &sameRole}); err != nil {
		t.Fatalf("noop update: %v", err)
	}
	if _, err := env.ledgerStore.LastEntry(ctx, "platform"); !errors.Is(err, ErrNotFound) {
		t.Fatal("noop update produced a ledger entry")
	}
}

func TestDeleteStaffDisablesAndIsIdempotentGuarded(t *testing.T) {
	env := newTestEnv(t)
	svc := newStaffService(env)
	ctx := context.Background()

	if err := svc.DeleteStaff(ctx, env.founder.ID, env.ops.ID, "platform"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	p, err := env.principals.GetByID(ctx, env.ops.ID)
	if err != nil {
		t.Fatalf("principal row removed on delete: %v", err)
	}
	if p.Status != models.PrincipalStatusDisabled {
		t.Fatalf("status = %s, want disabled", p.Status)
	}

	e := lastAction(t, env, "platform")
	if e.Action != "STAFF_USER_DELETED" || e.Severity != models.SeverityWarning {
		t.Fatalf("last entry = %s/%s", e.Action, e.Severity)
	}

	if err := svc.DeleteStaff(ctx, env.founder.ID, env.ops.ID, "platform"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second delete: got %v, want ErrInvalidState", err)
	}
}

func TestLoginIssuesTokenAndAudits(t *testing.T) {
	env := newTestEnv(t)
	svc := newStaffService(env)
	ctx := context.Background()

	hash, err := auth.HashPassword("sup3rsecret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	env.admin.PasswordHash = hash
	if err := env.principals.Update(ctx, env.admin); err != nil {
		t.Fatalf("update: %v", err)
	}

	token, p, err := svc.Login(ctx, "platform", "ADMIN@example.com", "sup3rsecret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if p.ID != env.admin.ID {
		t.Fatal("wrong principal returned")
	}
	claims, err := auth.ParseJWT("test-secret", token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.PrincipalID != env.admin.ID || claims.Role != "admin" {
		t.Fatalf("claims = %+v", claims)
	}
	if e := lastAction(t, env, "platform"); e.Action != "STAFF_LOGIN" {
		t.Fatalf("last action = %s", e.Action)
	}
}

func TestLoginFailureIsAuditedAsSystem(t *testing.T) {
	env := newTestEnv(t)
	svc := newStaffService(env)
	ctx := context.Background()

	if _, _, err := svc.Login(ctx, "platform", "admin@example.com", "wrong-password"); !IsForbidden(err) {
		t.Fatalf("got %v, want forbidden", err)
	}

	e := lastAction(t, env, "platform")
	if e.Action != "STAFF_LOGIN_FAILED" {
		t.Fatalf("last action = %s", e.Action)
	}
	if e.ActorType != models.ActorSystem {
		t.Fatalf("actor type = %s, want SYSTEM", e.ActorType)
	}
	if e.Severity != models.SeverityWarning {
		t.Fatalf("severity = %s, want WARNING", e.Severity)
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	env := newTestEnv(t)
	svc := newStaffService(env)
	ctx := context.Background()

	hash, err := auth.HashPassword("sup3rsecret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	env.viewer.PasswordHash = hash
	env.viewer.Status = models.PrincipalStatusDisabled
	if err := env.principals.Update(ctx, env.viewer); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, _, err := svc.Login(ctx, "platform", env.viewer.Email, "sup3rsecret"); !IsForbidden(err) {
		t.Fatalf("got %v, want forbidden", err)
	}
}

// Full lifecycle: the founder hires an ops account, the ops account
// tries and fails to hire, gets let go, and the whole trail verifies.
func TestStaffLifecycleLeavesVerifiableTrail(t *testing.T) {
	env := newTestEnv(t)
	svc := newStaffService(env)
	ctx := context.Background()

	hired, err := svc.CreateStaff(ctx, env.founder.ID, "platform", "temp@example.com", "sup3rsecret", "ops", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.CreateStaff(ctx, hired.ID, "platform", "friend@example.com", "sup3rsecret", "ops", nil); !IsForbidden(err) {
		t.Fatalf("ops hiring: got %v, want forbidden", err)
	}

	if err := svc.DeleteStaff(ctx, env.founder.ID, hired.ID, "platform"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// The disabled account can no longer act at all.
	if _, err := svc.ListStaff(ctx, hired.ID, 10, 0); !IsForbidden(err) {
		t.Fatalf("disabled actor: got %v, want forbidden", err)
	}

	report, err := env.ledger.Verify(ctx, env.founder.ID, "platform", nil, nil)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.Valid {
		t.Fatalf("trail invalid: %+v", report.Errors)
	}
	// Created + deleted; the denied attempt leaves no entry.
	if report.EntriesChecked != 2 {
		t.Fatalf("entries checked = %d, want 2", report.EntriesChecked)
	}
}

func TestBootstrapCreatesFounderOnce(t *testing.T) {
	log := zap.NewNop()
	principals := newFakePrincipalStore()
	store := newFakeLedgerStore()
	guard := NewGuard(principals, rbac.DefaultCatalog(), log)
	ledgerSvc := NewLedgerService(store, guard, nil, log)
	svc := NewStaffService(principals, guard, ledgerSvc, "test-secret", time.Hour, log)
	ctx := context.Background()

	if err := svc.Bootstrap(ctx, "platform", "root@example.com", "sup3rsecret"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	p, err := principals.GetByEmail(ctx, "root@example.com")
	if err != nil {
		t.Fatalf("founder not created: %v", err)
	}
	if p.Role != rbac.RoleFounder.String() {
		t.Fatalf("role = %s, want founder", p.Role)
	}

	e, err := store.LastEntry(ctx, "platform")
	if err != nil {
		t.Fatalf("last entry: %v", err)
	}
	if e.Action != "FOUNDER_BOOTSTRAPPED" || e.ActorType != models.ActorSystem {
		t.Fatalf("entry = %s/%s", e.Action, e.ActorType)
	}

	// A second run against a populated table is a no-op.
	if err := svc.Bootstrap(ctx, "platform", "other@example.com", "sup3rsecret"); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if _, err := principals.GetByEmail(ctx, "other@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatal("second bootstrap created another account")
	}
}
