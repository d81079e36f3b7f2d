package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/liveshop/audit-core/internal/models"
	"github.com/liveshop/audit-core/internal/rbac"
)

func TestGuardRequire(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		principal uuid.UUID
		required  rbac.Capability
		wantDeny  bool
	}{
		{"founder manages staff", env.founder.ID, rbac.CapManageStaff, false},
		{"admin cannot manage staff", env.admin.ID, rbac.CapManageStaff, true},
		{"admin verifies audit log", env.admin.ID, rbac.CapVerifyAuditLog, false},
		{"ops views audit log", env.ops.ID, rbac.CapViewAuditLog, false},
		{"ops cannot verify", env.ops.ID, rbac.CapVerifyAuditLog, true},
		{"viewer gets nothing", env.viewer.ID, rbac.CapViewAuditLog, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := env.guard.Require(ctx, tt.principal, tt.required)
			if tt.wantDeny {
				if !IsForbidden(err) {
					t.Fatalf("got %v, want forbidden", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected denial: %v", err)
			}
			if p.ID != tt.principal {
				t.Fatal("returned wrong principal")
			}
		})
	}
}

func TestGuardUnknownPrincipal(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.guard.Require(context.Background(), uuid.New(), rbac.CapViewAuditLog)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestGuardDisabledPrincipal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.founder.Status = models.PrincipalStatusDisabled
	if err := env.principals.Update(ctx, env.founder); err != nil {
		t.Fatalf("disable: %v", err)
	}

	_, err := env.guard.Require(ctx, env.founder.ID, rbac.CapViewAuditLog)
	if !IsForbidden(err) {
		t.Fatalf("got %v, want forbidden", err)
	}
}

func TestGuardOverridesAreAdditive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.viewer.Overrides = []string{rbac.CapViewAuditLog.String()}
	if err := env.principals.Update(ctx, env.viewer); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := env.guard.Require(ctx, env.viewer.ID, rbac.CapViewAuditLog); err != nil {
		t.Fatalf("override not honored: %v", err)
	}
	// The override grants one capability, nothing more.
	if _, err := env.guard.Require(ctx, env.viewer.ID, rbac.CapManageStaff); !IsForbidden(err) {
		t.Fatalf("got %v, want forbidden", err)
	}
}

func TestGuardSkipsUnknownOverrides(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.ops.Overrides = []string{"NOT_A_CAPABILITY", rbac.CapVerifyAuditLog.String()}
	if err := env.principals.Update(ctx, env.ops); err != nil {
		t.Fatalf("update: %v", err)
	}

	// The stale name is ignored; the valid one still applies.
	if _, err := env.guard.Require(ctx, env.ops.ID, rbac.CapVerifyAuditLog); err != nil {
		t.Fatalf("valid override rejected alongside stale one: %v", err)
	}
}

func TestGuardUnknownRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.ops.Role = "superuser"
	if err := env.principals.Update(ctx, env.ops); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := env.guard.Require(ctx, env.ops.ID, rbac.CapViewAuditLog); !IsForbidden(err) {
		t.Fatalf("got %v, want forbidden", err)
	}
}
