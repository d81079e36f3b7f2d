package models

import (
	"time"

	"github.com/google/uuid"
)

// Regression seed statuses. APPROVED and REJECTED are both terminal.
const (
	SeedStatusOpen     = "OPEN"
	SeedStatusApproved = "APPROVED"
	SeedStatusRejected = "REJECTED"
)

var seedTransitions = map[string][]string{
	SeedStatusOpen:     {SeedStatusApproved, SeedStatusRejected},
	SeedStatusApproved: {},
	SeedStatusRejected: {},
}

func IsValidSeedTransition(from, to string) bool {
	for _, allowed := range seedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// RegressionSeed is a candidate test case awaiting human disposition.
type RegressionSeed struct {
	ID         uuid.UUID  `json:"id"`
	Scope      string     `json:"scope"`
	Title      string     `json:"title"`
	Payload    any        `json:"payload,omitempty"`
	Status     string     `json:"status"`
	ReviewedBy *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
