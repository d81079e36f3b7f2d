package models

import (
	"time"

	"github.com/google/uuid"
)

// PolicyIncident is a policy-engine detection. Read-only here: incidents
// are written by the policy engine, this core only lists them.
type PolicyIncident struct {
	ID        uuid.UUID `json:"id"`
	Scope     string    `json:"scope"`
	SessionID *string   `json:"session_id,omitempty"`
	Kind      string    `json:"kind"`
	Severity  string    `json:"severity"`
	Detail    any       `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
