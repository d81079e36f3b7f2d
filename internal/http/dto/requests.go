package dto

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateStaffRequest struct {
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	Role      string   `json:"role"`
	Overrides []string `json:"overrides,omitempty"`
}

type UpdateStaffRequest struct {
	Role      *string  `json:"role,omitempty"`
	Overrides []string `json:"overrides,omitempty"`
	Status    *string  `json:"status,omitempty"`
}

type CreateAPIKeyRequest struct {
	Label         string `json:"label,omitempty"`
	ExpiresInDays int    `json:"expires_in_days,omitempty"`
}

type CreateEscalationRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Severity    string  `json:"severity,omitempty"`
}

type CloseEscalationRequest struct {
	Notes *string `json:"notes,omitempty"`
}

// IngestEntryRequest is the append contract for external systems that
// record their own actions (orders, refunds, payouts, policy changes).
type IngestEntryRequest struct {
	Scope      string  `json:"scope,omitempty"`
	ActorType  string  `json:"actor_type"`
	ActorID    *string `json:"actor_id,omitempty"`
	ActorLabel string  `json:"actor_label,omitempty"`
	Action     string  `json:"action"`
	Severity   string  `json:"severity,omitempty"`
	RefType    *string `json:"ref_type,omitempty"`
	RefID      *string `json:"ref_id,omitempty"`
	Before     any     `json:"before,omitempty"`
	After      any     `json:"after,omitempty"`
	Metadata   any     `json:"metadata,omitempty"`
}

type VerifyRequest struct {
	Scope string  `json:"scope,omitempty"`
	From  *string `json:"from,omitempty"` // RFC3339
	To    *string `json:"to,omitempty"`   // RFC3339
}
