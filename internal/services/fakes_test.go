package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/liveshop/audit-core/internal/models"
	"github.com/liveshop/audit-core/internal/rbac"
	"go.uber.org/zap"
)

// In-memory store fakes. The ledger fake mirrors the real storage
// contract: it enforces the unique (scope, prev_hash) rule and assigns
// sequence numbers, so the append retry path is exercised for real.

type fakePrincipalStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Principal
}

func newFakePrincipalStore() *fakePrincipalStore {
	return &fakePrincipalStore{rows: make(map[uuid.UUID]*models.Principal)}
}

func (f *fakePrincipalStore) Create(_ context.Context, p *models.Principal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.rows[p.ID] = &cp
	return nil
}

func (f *fakePrincipalStore) GetByID(_ context.Context, id uuid.UUID) (*models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePrincipalStore) GetByEmail(_ context.Context, email string) (*models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.rows {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakePrincipalStore) Update(_ context.Context, p *models.Principal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	f.rows[p.ID] = &cp
	return nil
}

func (f *fakePrincipalStore) Count(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows), nil
}

func (f *fakePrincipalStore) List(_ context.Context, limit, offset int) ([]models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Principal, 0, len(f.rows))
	for _, p := range f.rows {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeLedgerStore struct {
	mu      sync.Mutex
	nextSeq int64
	entries []models.LedgerEntry
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{}
}

func (f *fakeLedgerStore) Insert(_ context.Context, e *models.LedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.entries {
		if f.entries[i].Scope == e.Scope && f.entries[i].PrevHash == e.PrevHash {
			return ErrConcurrencyConflict
		}
	}
	f.nextSeq++
	e.Seq = f.nextSeq
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeLedgerStore) LastEntry(_ context.Context, scope string) (*models.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].Scope == scope {
			cp := f.entries[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeLedgerStore) List(_ context.Context, scope string, flt LedgerFilter) ([]models.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.LedgerEntry
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.Scope != scope {
			continue
		}
		if flt.Action != nil && e.Action != *flt.Action {
			continue
		}
		if flt.ActorType != nil && e.ActorType != *flt.ActorType {
			continue
		}
		if flt.Severity != nil && e.Severity != *flt.Severity {
			continue
		}
		out = append(out, e)
	}
	if flt.Offset > 0 {
		if flt.Offset >= len(out) {
			return nil, nil
		}
		out = out[flt.Offset:]
	}
	if flt.Limit > 0 && len(out) > flt.Limit {
		out = out[:flt.Limit]
	}
	return out, nil
}

func (f *fakeLedgerStore) WalkRange(_ context.Context, scope string, from, to *time.Time) ([]models.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.LedgerEntry
	for _, e := range f.entries {
		if e.Scope != scope {
			continue
		}
		if from != nil && e.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && e.CreatedAt.After(*to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeLedgerStore) Scopes(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, e := range f.entries {
		if _, ok := seen[e.Scope]; ok {
			continue
		}
		seen[e.Scope] = struct{}{}
		out = append(out, e.Scope)
	}
	return out, nil
}

// tamper rewrites a stored entry in place, bypassing the service.
func (f *fakeLedgerStore) tamper(seq int64, mutate func(e *models.LedgerEntry)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.entries {
		if f.entries[i].Seq == seq {
			mutate(&f.entries[i])
			return
		}
	}
}

type fakeAPIKeyStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.APIKey
}

func newFakeAPIKeyStore() *fakeAPIKeyStore {
	return &fakeAPIKeyStore{rows: make(map[uuid.UUID]*models.APIKey)}
}

func (f *fakeAPIKeyStore) Create(_ context.Context, k *models.APIKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *k
	f.rows[k.ID] = &cp
	return nil
}

func (f *fakeAPIKeyStore) GetByID(_ context.Context, id uuid.UUID) (*models.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *k
	return &cp, nil
}

func (f *fakeAPIKeyStore) GetByHash(_ context.Context, keyHash string) (*models.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range f.rows {
		if k.KeyHash == keyHash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeAPIKeyStore) Update(_ context.Context, k *models.APIKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[k.ID]; !ok {
		return ErrNotFound
	}
	cp := *k
	f.rows[k.ID] = &cp
	return nil
}

func (f *fakeAPIKeyStore) List(_ context.Context, limit, offset int) ([]models.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.APIKey, 0, len(f.rows))
	for _, k := range f.rows {
		out = append(out, *k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

type fakeEscalationStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Escalation
}

func newFakeEscalationStore() *fakeEscalationStore {
	return &fakeEscalationStore{rows: make(map[uuid.UUID]*models.Escalation)}
}

func (f *fakeEscalationStore) Create(_ context.Context, e *models.Escalation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	f.rows[e.ID] = &cp
	return nil
}

func (f *fakeEscalationStore) GetByID(_ context.Context, id uuid.UUID) (*models.Escalation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEscalationStore) Update(_ context.Context, e *models.Escalation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[e.ID]; !ok {
		return ErrNotFound
	}
	cp := *e
	f.rows[e.ID] = &cp
	return nil
}

func (f *fakeEscalationStore) List(_ context.Context, scope string, status *string, limit, offset int) ([]models.Escalation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Escalation
	for _, e := range f.rows {
		if e.Scope != scope {
			continue
		}
		if status != nil && e.Status != *status {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

type fakeSeedStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.RegressionSeed
}

func newFakeSeedStore() *fakeSeedStore {
	return &fakeSeedStore{rows: make(map[uuid.UUID]*models.RegressionSeed)}
}

func (f *fakeSeedStore) Create(_ context.Context, s *models.RegressionSeed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.rows[s.ID] = &cp
	return nil
}

func (f *fakeSeedStore) GetByID(_ context.Context, id uuid.UUID) (*models.RegressionSeed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSeedStore) Update(_ context.Context, s *models.RegressionSeed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[s.ID]; !ok {
		return ErrNotFound
	}
	cp := *s
	f.rows[s.ID] = &cp
	return nil
}

func (f *fakeSeedStore) List(_ context.Context, scope string, status *string, limit, offset int) ([]models.RegressionSeed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RegressionSeed
	for _, s := range f.rows {
		if s.Scope != scope {
			continue
		}
		if status != nil && s.Status != *status {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

type fakeIncidentStore struct {
	rows []models.PolicyIncident
}

func (f *fakeIncidentStore) List(_ context.Context, scope string, flt IncidentFilter) ([]models.PolicyIncident, error) {
	var out []models.PolicyIncident
	for _, in := range f.rows {
		if in.Scope != scope {
			continue
		}
		if flt.Severity != nil && in.Severity != *flt.Severity {
			continue
		}
		out = append(out, in)
	}
	return out, nil
}

// testEnv wires the service graph against fakes, pre-seeded with one
// active principal per role.
type testEnv struct {
	principals  *fakePrincipalStore
	ledgerStore *fakeLedgerStore
	guard       *Guard
	ledger      *LedgerService

	founder *models.Principal
	admin   *models.Principal
	ops     *models.Principal
	viewer  *models.Principal
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()
	principals := newFakePrincipalStore()
	store := newFakeLedgerStore()
	guard := NewGuard(principals, rbac.DefaultCatalog(), log)
	ledgerSvc := NewLedgerService(store, guard, nil, log)

	env := &testEnv{
		principals:  principals,
		ledgerStore: store,
		guard:       guard,
		ledger:      ledgerSvc,
	}

	seed := func(email string, role rbac.Role) *models.Principal {
		p := &models.Principal{
			ID:     uuid.New(),
			Email:  email,
			Role:   role.String(),
			Status: models.PrincipalStatusActive,
		}
		if err := principals.Create(context.Background(), p); err != nil {
			t.Fatalf("seed principal %s: %v", email, err)
		}
		return p
	}
	env.founder = seed("founder@example.com", rbac.RoleFounder)
	env.admin = seed("admin@example.com", rbac.RoleAdmin)
	env.ops = seed("ops@example.com", rbac.RoleOps)
	env.viewer = seed("viewer@example.com", rbac.RoleViewer)
	return env
}
