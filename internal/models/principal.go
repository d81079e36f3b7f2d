package models

import (
	"time"

	"github.com/google/uuid"
)

// Principal lifecycle statuses. Principals are soft-deleted only: status
// flips to disabled, the row stays so ledger references never dangle.
const (
	PrincipalStatusActive   = "active"
	PrincipalStatusDisabled = "disabled"
)

// Principal is an actor that can take audited actions: a staff account
// with a password, or a service holding an API key.
type Principal struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Overrides    []string  `json:"overrides,omitempty"` // extra capability wire names beyond role defaults
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (p *Principal) IsActive() bool {
	return p.Status == PrincipalStatusActive
}
