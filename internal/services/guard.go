package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/liveshop/audit-core/internal/models"
	"github.com/liveshop/audit-core/internal/rbac"
	"go.uber.org/zap"
)

// Guard is the authorization check run synchronously before every
// mutating operation. It never partially authorizes: the principal must
// exist, be active, and hold the required capability.
type Guard struct {
	principals PrincipalStore
	catalog    *rbac.Catalog
	log        *zap.Logger
}

func NewGuard(principals PrincipalStore, catalog *rbac.Catalog, log *zap.Logger) *Guard {
	return &Guard{principals: principals, catalog: catalog, log: log}
}

// Require returns the principal when the check passes, so callers can
// reuse the lookup for audit labels without a second query.
func (g *Guard) Require(ctx context.Context, principalID uuid.UUID, required rbac.Capability) (*models.Principal, error) {
	p, err := g.principals.GetByID(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("principal %s: %w", principalID, err)
	}
	if !p.IsActive() {
		return nil, &ForbiddenError{Reason: "principal is disabled"}
	}

	role, err := rbac.ParseRole(p.Role)
	if err != nil {
		g.log.Error("principal has unknown role", zap.String("principal_id", p.ID.String()), zap.String("role", p.Role))
		return nil, &ForbiddenError{Reason: "principal role is not recognized"}
	}

	overrides := make([]rbac.Capability, 0, len(p.Overrides))
	for _, name := range p.Overrides {
		capability, err := rbac.ParseCapability(name)
		if err != nil {
			g.log.Warn("skipping unknown capability override",
				zap.String("principal_id", p.ID.String()), zap.String("capability", name))
			continue
		}
		overrides = append(overrides, capability)
	}

	if !g.catalog.HasCapability(role, overrides, required) {
		return nil, &ForbiddenError{Capability: required.String()}
	}
	return p, nil
}
