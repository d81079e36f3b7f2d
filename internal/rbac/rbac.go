package rbac

import "fmt"

// Role is the closed set of staff roles. Stored as its wire name,
// parsed back through ParseRole at authorization time.
type Role uint8

const (
	RoleFounder Role = iota
	RoleAdmin
	RoleOps
	RoleViewer
)

var roleNames = map[Role]string{
	RoleFounder: "founder",
	RoleAdmin:   "admin",
	RoleOps:     "ops",
	RoleViewer:  "viewer",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

func ParseRole(s string) (Role, error) {
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// Capability is an opaque permission token. The uppercase wire names are
// what gets stored in principal override lists and audit entries.
type Capability uint8

const (
	CapManageStaff Capability = iota
	CapManageAPIKeys
	CapViewAuditLog
	CapVerifyAuditLog
	CapManageRefunds
	CapManagePayouts
	CapManageCatalog
	CapModerateChat
	CapManualReleaseTrainControl
)

var capabilityNames = map[Capability]string{
	CapManageStaff:               "MANAGE_STAFF",
	CapManageAPIKeys:             "MANAGE_API_KEYS",
	CapViewAuditLog:              "VIEW_AUDIT_LOG",
	CapVerifyAuditLog:            "VERIFY_AUDIT_LOG",
	CapManageRefunds:             "MANAGE_REFUNDS",
	CapManagePayouts:             "MANAGE_PAYOUTS",
	CapManageCatalog:             "MANAGE_CATALOG",
	CapModerateChat:              "MODERATE_CHAT",
	CapManualReleaseTrainControl: "MANUAL_RELEASE_TRAIN_CONTROL",
}

func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return fmt.Sprintf("capability(%d)", uint8(c))
}

func ParseCapability(s string) (Capability, error) {
	for c, name := range capabilityNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown capability %q", s)
}

// AllCapabilities returns every defined capability.
func AllCapabilities() []Capability {
	caps := make([]Capability, 0, len(capabilityNames))
	for c := range capabilityNames {
		caps = append(caps, c)
	}
	return caps
}

// Catalog is the immutable role -> default-capabilities mapping. It is
// built once at process start and injected into the authorization guard;
// changing the mapping means a redeploy.
type Catalog struct {
	defaults map[Role][]Capability
}

func NewCatalog(defaults map[Role][]Capability) *Catalog {
	copied := make(map[Role][]Capability, len(defaults))
	for role, caps := range defaults {
		copied[role] = append([]Capability(nil), caps...)
	}
	return &Catalog{defaults: copied}
}

// DefaultCatalog is the production mapping. founder is a strict superset
// of admin, admin of ops; viewer gets nothing (read surfaces are gated
// outside this core).
func DefaultCatalog() *Catalog {
	ops := []Capability{
		CapViewAuditLog,
		CapManageCatalog,
		CapModerateChat,
	}
	admin := append(append([]Capability(nil), ops...),
		CapManageAPIKeys,
		CapVerifyAuditLog,
		CapManageRefunds,
		CapManagePayouts,
		CapManualReleaseTrainControl,
	)
	founder := append(append([]Capability(nil), admin...),
		CapManageStaff,
	)
	return NewCatalog(map[Role][]Capability{
		RoleFounder: founder,
		RoleAdmin:   admin,
		RoleOps:     ops,
		RoleViewer:  {},
	})
}

// Defaults returns a copy of the role's default capability set.
func (c *Catalog) Defaults(role Role) []Capability {
	return append([]Capability(nil), c.defaults[role]...)
}

// EffectiveCapabilities is the union of the role's defaults and the
// per-principal overrides. Overrides are additive only: they can grant
// beyond the role default but never revoke one.
func (c *Catalog) EffectiveCapabilities(role Role, overrides []Capability) map[Capability]struct{} {
	set := make(map[Capability]struct{}, len(c.defaults[role])+len(overrides))
	for _, capability := range c.defaults[role] {
		set[capability] = struct{}{}
	}
	for _, capability := range overrides {
		set[capability] = struct{}{}
	}
	return set
}

func (c *Catalog) HasCapability(role Role, overrides []Capability, required Capability) bool {
	for _, capability := range c.defaults[role] {
		if capability == required {
			return true
		}
	}
	for _, capability := range overrides {
		if capability == required {
			return true
		}
	}
	return false
}
