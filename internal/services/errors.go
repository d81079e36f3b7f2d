package services

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across services. Handlers map these to HTTP
// status codes; ConcurrencyConflict is retried inside the ledger and
// only escapes when retries are exhausted.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrConcurrencyConflict = errors.New("concurrent append conflict")
)

// ForbiddenError carries the capability the principal was missing, or a
// reason when the failure is not capability-specific (disabled account).
type ForbiddenError struct {
	Capability string
	Reason     string
}

func (e *ForbiddenError) Error() string {
	if e.Capability != "" {
		return fmt.Sprintf("forbidden: missing capability %s", e.Capability)
	}
	return "forbidden: " + e.Reason
}

func IsForbidden(err error) bool {
	var fe *ForbiddenError
	return errors.As(err, &fe)
}

// ValidationError reports a structurally invalid input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
