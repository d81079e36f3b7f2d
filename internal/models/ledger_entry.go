package models

import (
	"time"

	"github.com/google/uuid"
)

// Actor types recorded on ledger entries.
const (
	ActorStaff    = "STAFF"
	ActorSystem   = "SYSTEM"
	ActorFounder  = "FOUNDER"
	ActorCreator  = "CREATOR"
	ActorCustomer = "CUSTOMER"
)

// Entry severities.
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityError    = "ERROR"
	SeverityCritical = "CRITICAL"
)

func IsValidActorType(s string) bool {
	switch s {
	case ActorStaff, ActorSystem, ActorFounder, ActorCreator, ActorCustomer:
		return true
	}
	return false
}

func IsValidSeverity(s string) bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// LedgerEntry is one immutable record in the hash-chained audit trail.
// Seq is the storage-assigned total order used for chain walks; PrevHash
// links each entry to its predecessor within the same scope.
type LedgerEntry struct {
	ID         uuid.UUID  `json:"id"`
	Seq        int64      `json:"seq"`
	Scope      string     `json:"scope"`
	ActorType  string     `json:"actor_type"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	ActorLabel string     `json:"actor_label"`
	Action     string     `json:"action"`
	Severity   string     `json:"severity"`
	RefType    *string    `json:"ref_type,omitempty"`
	RefID      *uuid.UUID `json:"ref_id,omitempty"`
	Before     any        `json:"before,omitempty"`
	After      any        `json:"after,omitempty"`
	Metadata   any        `json:"metadata,omitempty"`
	PrevHash   string     `json:"prev_hash"`
	EntryHash  string     `json:"entry_hash"`
	CreatedAt  time.Time  `json:"created_at"`
}
