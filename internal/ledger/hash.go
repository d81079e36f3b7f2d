// Package ledger implements the hashing rules for the tamper-evident
// audit chain. Each entry's hash covers its own content plus the hash of
// the preceding entry in the same scope, so mutating any stored entry
// breaks the chain from that point forward.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/liveshop/audit-core/internal/models"
)

// GenesisHash is the prev-hash sentinel for the first entry of a scope.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// hashPayload is the canonical serialization of an entry. Fixed struct
// field order plus encoding/json's sorted map keys make the output
// byte-identical for logically identical content, regardless of how the
// in-memory maps were built. Metadata and the display label are
// deliberately outside the hash.
type hashPayload struct {
	Scope     string `json:"scope"`
	ActorType string `json:"actor_type"`
	ActorID   string `json:"actor_id"`
	Action    string `json:"action"`
	RefType   string `json:"ref_type"`
	RefID     string `json:"ref_id"`
	Before    any    `json:"before"`
	After     any    `json:"after"`
	CreatedAt string `json:"created_at"`
	PrevHash  string `json:"prev_hash"`
}

// ComputeEntryHash returns the hex SHA-256 of the entry's canonical
// serialization. Verification recomputes this from stored fields, so the
// timestamp is formatted from the stored value, never re-derived.
func ComputeEntryHash(e *models.LedgerEntry) (string, error) {
	payload := hashPayload{
		Scope:     e.Scope,
		ActorType: e.ActorType,
		Action:    e.Action,
		Before:    e.Before,
		After:     e.After,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339Nano),
		PrevHash:  e.PrevHash,
	}
	if e.ActorID != nil {
		payload.ActorID = e.ActorID.String()
	}
	if e.RefType != nil {
		payload.RefType = *e.RefType
	}
	if e.RefID != nil {
		payload.RefID = e.RefID.String()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalize ledger entry: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Normalize round-trips a value through JSON so that the form hashed at
// append time is identical to the form read back from storage (jsonb
// returns float64 numbers and sorted keys). Returns nil for nil input.
func Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize snapshot: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalize snapshot: %w", err)
	}
	return out, nil
}
