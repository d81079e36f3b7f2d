package events

import "context"

// StreamAudit is the pub/sub channel carrying audit core events.
const StreamAudit = "events:audit"

// Event types
const (
	EventAuditAppended    = "audit_entry_appended"
	EventIntegrityFailure = "audit_integrity_failure"
	EventEscalationRaised = "escalation_raised"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
