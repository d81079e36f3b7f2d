package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/liveshop/audit-core/internal/events"
	"github.com/liveshop/audit-core/internal/ledger"
	"github.com/liveshop/audit-core/internal/models"
	"github.com/liveshop/audit-core/internal/rbac"
	"go.uber.org/zap"
)

// appendRetries bounds the internal retry loop when an append loses the
// prev-hash race to a writer in another process.
const appendRetries = 3

// AppendInput is the contract surrounding systems conform to when they
// record an action. Before/After/Metadata are arbitrary JSON-shaped
// snapshots; Severity defaults to INFO.
type AppendInput struct {
	ActorType  string
	ActorID    *uuid.UUID
	ActorLabel string
	Action     string
	Severity   string
	RefType    *string
	RefID      *uuid.UUID
	Before     any
	After      any
	Metadata   any
}

// VerifyError pinpoints a single failed check in a chain walk.
type VerifyError struct {
	EntryID uuid.UUID `json:"entry_id"`
	Error   string    `json:"error"`
}

// VerifyReport is the outcome of a chain verification.
type VerifyReport struct {
	Valid          bool          `json:"valid"`
	EntriesChecked int           `json:"entries_checked"`
	Errors         []VerifyError `json:"errors"`
}

// scopeState serializes appends for one scope and caches the hash and
// timestamp of its newest entry. The cache is rebuilt from storage on
// startup and after any lost race, never trusted across restarts.
type scopeState struct {
	mu        sync.Mutex
	lastHash  string
	lastAt    time.Time
	populated bool
}

// LedgerService owns the append-only hash chain. The read-then-write of
// the previous hash is the one critical section in this core: a
// per-scope mutex serializes in-process appends, and the storage layer's
// unique (scope, prev_hash) constraint catches races with other
// processes, surfacing them as ErrConcurrencyConflict for retry.
type LedgerService struct {
	store     LedgerStore
	guard     *Guard
	publisher events.Publisher
	log       *zap.Logger

	mu     sync.Mutex
	scopes map[string]*scopeState
}

func NewLedgerService(store LedgerStore, guard *Guard, publisher events.Publisher, log *zap.Logger) *LedgerService {
	return &LedgerService{
		store:     store,
		guard:     guard,
		publisher: publisher,
		log:       log,
		scopes:    make(map[string]*scopeState),
	}
}

func (s *LedgerService) scopeState(scope string) *scopeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.scopes[scope]
	if !ok {
		st = &scopeState{}
		s.scopes[scope] = st
	}
	return st
}

// Append records one immutable entry and links it to the chain head of
// its scope. The write is atomic: on cancellation or conflict no partial
// entry remains.
func (s *LedgerService) Append(ctx context.Context, scope string, in AppendInput) (*models.LedgerEntry, error) {
	if scope == "" {
		return nil, &ValidationError{Field: "scope", Reason: "must not be empty"}
	}
	if in.Action == "" {
		return nil, &ValidationError{Field: "action", Reason: "must not be empty"}
	}
	if !models.IsValidActorType(in.ActorType) {
		return nil, &ValidationError{Field: "actor_type", Reason: fmt.Sprintf("unknown actor type %q", in.ActorType)}
	}
	severity := in.Severity
	if severity == "" {
		severity = models.SeverityInfo
	}
	if !models.IsValidSeverity(severity) {
		return nil, &ValidationError{Field: "severity", Reason: fmt.Sprintf("unknown severity %q", severity)}
	}

	before, err := ledger.Normalize(in.Before)
	if err != nil {
		return nil, &ValidationError{Field: "before", Reason: err.Error()}
	}
	after, err := ledger.Normalize(in.After)
	if err != nil {
		return nil, &ValidationError{Field: "after", Reason: err.Error()}
	}
	metadata, err := ledger.Normalize(in.Metadata)
	if err != nil {
		return nil, &ValidationError{Field: "metadata", Reason: err.Error()}
	}

	st := s.scopeState(scope)
	st.mu.Lock()
	defer st.mu.Unlock()

	for attempt := 0; attempt < appendRetries; attempt++ {
		if !st.populated {
			last, err := s.store.LastEntry(ctx, scope)
			switch {
			case errors.Is(err, ErrNotFound):
				st.lastHash = ledger.GenesisHash
				st.lastAt = time.Time{}
			case err != nil:
				return nil, fmt.Errorf("load chain head for scope %s: %w", scope, err)
			default:
				st.lastHash = last.EntryHash
				st.lastAt = last.CreatedAt
			}
			st.populated = true
		}

		// Postgres stores timestamps at microsecond precision; truncate
		// up front so the hashed timestamp survives the round trip.
		// Clamped to the chain head to keep created_at non-decreasing.
		now := time.Now().UTC().Truncate(time.Microsecond)
		if now.Before(st.lastAt) {
			now = st.lastAt
		}

		entry := &models.LedgerEntry{
			ID:         uuid.New(),
			Scope:      scope,
			ActorType:  in.ActorType,
			ActorID:    in.ActorID,
			ActorLabel: in.ActorLabel,
			Action:     in.Action,
			Severity:   severity,
			RefType:    in.RefType,
			RefID:      in.RefID,
			Before:     before,
			After:      after,
			Metadata:   metadata,
			PrevHash:   st.lastHash,
			CreatedAt:  now,
		}
		entry.EntryHash, err = ledger.ComputeEntryHash(entry)
		if err != nil {
			return nil, err
		}

		err = s.store.Insert(ctx, entry)
		if errors.Is(err, ErrConcurrencyConflict) {
			// Another writer advanced the chain; rebuild the head.
			st.populated = false
			s.log.Warn("ledger append lost prev-hash race, retrying",
				zap.String("scope", scope), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("append ledger entry: %w", err)
		}

		st.lastHash = entry.EntryHash
		st.lastAt = entry.CreatedAt

		s.publish(ctx, events.EventAuditAppended, map[string]any{
			"entry_id": entry.ID.String(),
			"scope":    entry.Scope,
			"action":   entry.Action,
			"severity": entry.Severity,
		})
		return entry, nil
	}
	return nil, fmt.Errorf("append to scope %s: %w", scope, ErrConcurrencyConflict)
}

// List returns entries newest-first. Gated on VIEW_AUDIT_LOG.
func (s *LedgerService) List(ctx context.Context, actorID uuid.UUID, scope string, f LedgerFilter) ([]models.LedgerEntry, error) {
	if _, err := s.guard.Require(ctx, actorID, rbac.CapViewAuditLog); err != nil {
		return nil, err
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	return s.store.List(ctx, scope, f)
}

// Verify walks the scope's chain and checks both links and content
// hashes. Gated on VERIFY_AUDIT_LOG; the walk itself is recorded in the
// ledger afterwards.
func (s *LedgerService) Verify(ctx context.Context, actorID uuid.UUID, scope string, from, to *time.Time) (*VerifyReport, error) {
	actor, err := s.guard.Require(ctx, actorID, rbac.CapVerifyAuditLog)
	if err != nil {
		return nil, err
	}
	report, err := s.verifyChain(ctx, scope, from, to)
	if err != nil {
		return nil, err
	}
	s.recordVerification(ctx, scope, report, models.ActorStaff, &actor.ID, actor.Email)
	return report, nil
}

// VerifySystem is the ungated entry point for the background verifier.
func (s *LedgerService) VerifySystem(ctx context.Context, scope string, from, to *time.Time) (*VerifyReport, error) {
	report, err := s.verifyChain(ctx, scope, from, to)
	if err != nil {
		return nil, err
	}
	s.recordVerification(ctx, scope, report, models.ActorSystem, nil, "chain-verifier")
	return report, nil
}

func (s *LedgerService) verifyChain(ctx context.Context, scope string, from, to *time.Time) (*VerifyReport, error) {
	entries, err := s.store.WalkRange(ctx, scope, from, to)
	if err != nil {
		return nil, fmt.Errorf("walk chain for scope %s: %w", scope, err)
	}

	report := &VerifyReport{Valid: true, Errors: []VerifyError{}}
	var prev *models.LedgerEntry
	for i := range entries {
		e := &entries[i]
		report.EntriesChecked++

		switch {
		case prev != nil:
			if e.PrevHash != prev.EntryHash {
				report.Errors = append(report.Errors, VerifyError{
					EntryID: e.ID,
					Error:   fmt.Sprintf("hash chain broken: prev_hash %s does not match predecessor hash %s", e.PrevHash, prev.EntryHash),
				})
			}
		case from == nil:
			// Start of the full chain must link to the genesis sentinel.
			if e.PrevHash != ledger.GenesisHash {
				report.Errors = append(report.Errors, VerifyError{
					EntryID: e.ID,
					Error:   "hash chain broken: first entry does not link to the genesis sentinel",
				})
			}
		}

		recomputed, err := ledger.ComputeEntryHash(e)
		if err != nil {
			return nil, err
		}
		if recomputed != e.EntryHash {
			report.Errors = append(report.Errors, VerifyError{
				EntryID: e.ID,
				Error:   fmt.Sprintf("hash mismatch: stored %s, recomputed %s", e.EntryHash, recomputed),
			})
		}
		prev = e
	}
	report.Valid = len(report.Errors) == 0
	return report, nil
}

// recordVerification appends the verification outcome to the ledger as a
// separate final step. A failing write-back is logged, never allowed to
// mask the report itself.
func (s *LedgerService) recordVerification(ctx context.Context, scope string, report *VerifyReport, actorType string, actorID *uuid.UUID, actorLabel string) {
	severity := models.SeverityInfo
	action := "AUDIT_CHAIN_VERIFIED"
	if !report.Valid {
		severity = models.SeverityCritical
		action = "AUDIT_CHAIN_INTEGRITY_FAILURE"
	}

	details := make([]map[string]any, 0, len(report.Errors))
	for _, ve := range report.Errors {
		details = append(details, map[string]any{"entry_id": ve.EntryID.String(), "error": ve.Error})
	}

	if _, err := s.Append(ctx, scope, AppendInput{
		ActorType:  actorType,
		ActorID:    actorID,
		ActorLabel: actorLabel,
		Action:     action,
		Severity:   severity,
		After: map[string]any{
			"valid":           report.Valid,
			"entries_checked": report.EntriesChecked,
			"errors_found":    len(report.Errors),
		},
		Metadata: map[string]any{"errors": details},
	}); err != nil {
		s.log.Error("failed to record verification result",
			zap.String("scope", scope), zap.Error(err))
	}

	if !report.Valid {
		s.publish(ctx, events.EventIntegrityFailure, map[string]any{
			"scope":           scope,
			"entries_checked": report.EntriesChecked,
			"errors_found":    len(report.Errors),
		})
	}
}

// Scopes lists every scope that has at least one entry.
func (s *LedgerService) Scopes(ctx context.Context) ([]string, error) {
	return s.store.Scopes(ctx)
}

func (s *LedgerService) publish(ctx context.Context, eventType string, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.StreamAudit, events.Event{Type: eventType, Payload: payload}); err != nil {
		s.log.Warn("failed to publish audit event", zap.String("type", eventType), zap.Error(err))
	}
}
