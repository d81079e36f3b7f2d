package models

import (
	"time"

	"github.com/google/uuid"
)

// Escalation statuses.
const (
	EscalationStatusOpen   = "OPEN"
	EscalationStatusAcked  = "ACKED"
	EscalationStatusClosed = "CLOSED"
)

// MaxEscalationNotesLen bounds the free-text notes attached on close.
const MaxEscalationNotesLen = 2000

var escalationTransitions = map[string][]string{
	EscalationStatusOpen:   {EscalationStatusAcked},
	EscalationStatusAcked:  {EscalationStatusClosed},
	EscalationStatusClosed: {},
}

// IsValidEscalationTransition reports whether an escalation may move
// from one status to another. CLOSED is terminal.
func IsValidEscalationTransition(from, to string) bool {
	for _, allowed := range escalationTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Escalation is an incident requiring human acknowledgement. AckedBy and
// AckedAt are denormalized from the ledger for fast display.
type Escalation struct {
	ID          uuid.UUID  `json:"id"`
	Scope       string     `json:"scope"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Severity    string     `json:"severity"`
	Status      string     `json:"status"`
	AckedBy     *uuid.UUID `json:"acked_by,omitempty"`
	AckedAt     *time.Time `json:"acked_at,omitempty"`
	ClosedBy    *uuid.UUID `json:"closed_by,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
