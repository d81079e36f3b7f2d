package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	APIKeyStatusActive  = "active"
	APIKeyStatusRevoked = "revoked"
)

// APIKey is a machine credential. Only the SHA-256 of the raw key is
// stored; the raw key is shown once at creation and never again.
type APIKey struct {
	ID        uuid.UUID  `json:"id"`
	Label     string     `json:"label"`
	KeyHash   string     `json:"-"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedBy uuid.UUID  `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
}

func (k *APIKey) IsUsable(now time.Time) bool {
	if k.Status != APIKeyStatusActive {
		return false
	}
	if k.ExpiresAt != nil && now.After(*k.ExpiresAt) {
		return false
	}
	return true
}
