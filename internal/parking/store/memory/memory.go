// Package memory holds an in-memory implementation of every parking
// store, intended for tests and dev environments. A single Store backs
// all the interfaces so cross-entity operations (entry/exit approval)
// stay all-or-nothing under one mutex, mirroring the sqlite write worker.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tranbichdiep/smart-parking-management/internal/parking/store"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/types"
)

type Store struct {
	mu sync.Mutex

	cards        map[string]store.CardRecord
	transactions map[int64]store.TransactionRecord
	pending      map[int64]store.PendingActionRecord
	settings     map[string]string
	operators    map[string]store.OperatorRecord

	nextTransactionID int64
	nextActionID      int64
}

func New() *Store {
	return &Store{
		cards:        make(map[string]store.CardRecord),
		transactions: make(map[int64]store.TransactionRecord),
		pending:      make(map[int64]store.PendingActionRecord),
		settings: map[string]string{
			store.SettingFeePerHour: "10000",
			store.SettingMonthlyFee: "1200000",
		},
		operators: make(map[string]store.OperatorRecord),
	}
}

// Typed views over the shared state. Each satisfies one store interface.

func (s *Store) Cards() store.CardStore               { return cards{s} }
func (s *Store) Transactions() store.TransactionStore { return transactions{s} }
func (s *Store) Pending() store.PendingActionStore    { return pending{s} }
func (s *Store) Settings() store.SettingsStore        { return settings{s} }
func (s *Store) Operators() store.OperatorStore       { return operators{s} }

// ── CardStore ────────────────────────────────────────────────────────────────

type cards struct{ s *Store }

func (v cards) Get(_ context.Context, cardID string) (*store.CardRecord, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	rec, ok := v.s.cards[strings.TrimSpace(cardID)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (v cards) Create(_ context.Context, rec store.CardRecord) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if _, ok := v.s.cards[rec.CardID]; ok {
		return store.ErrCardExists
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = types.CardActive
	}
	v.s.cards[rec.CardID] = rec
	return nil
}

func (v cards) SetStatus(_ context.Context, cardID string, status types.CardStatus) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	rec, ok := v.s.cards[cardID]
	if !ok {
		return store.ErrCardNotFound
	}
	rec.Status = status
	v.s.cards[cardID] = rec
	return nil
}

func (v cards) SetExpiry(_ context.Context, cardID string, expiry time.Time) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	rec, ok := v.s.cards[cardID]
	if !ok {
		return store.ErrCardNotFound
	}
	rec.ExpiresAt = &expiry
	v.s.cards[cardID] = rec
	return nil
}

// ── TransactionStore ─────────────────────────────────────────────────────────

type transactions struct{ s *Store }

func (v transactions) FindOpen(_ context.Context, cardID string) (*store.TransactionRecord, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if rec, ok := v.s.findOpenLocked(cardID); ok {
		return &rec, nil
	}
	return nil, nil
}

func (s *Store) findOpenLocked(cardID string) (store.TransactionRecord, bool) {
	for _, rec := range s.transactions {
		if rec.CardID == cardID && rec.ExitAt == nil {
			return rec, true
		}
	}
	return store.TransactionRecord{}, false
}

func (v transactions) Get(_ context.Context, id int64) (*store.TransactionRecord, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	rec, ok := v.s.transactions[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (v transactions) OpenSession(_ context.Context, p store.OpenSessionParams) (int64, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.pending[p.PollID]
	if !ok || action.Status != types.StatusProcessing {
		return 0, store.ErrActionConflict
	}
	if _, open := s.findOpenLocked(p.CardID); open {
		return 0, store.ErrOpenSessionExists
	}

	if _, ok := s.cards[p.CardID]; !ok {
		s.cards[p.CardID] = store.CardRecord{
			CardID:       p.CardID,
			HolderName:   p.HolderName,
			LicensePlate: p.LicensePlate,
			TicketKind:   types.TicketDaily,
			Status:       types.CardActive,
			CreatedAt:    p.EntryAt,
		}
	}

	s.nextTransactionID++
	id := s.nextTransactionID
	s.transactions[id] = store.TransactionRecord{
		ID:            id,
		CardID:        p.CardID,
		LicensePlate:  p.LicensePlate,
		EntryAt:       p.EntryAt,
		EntrySnapshot: p.EntrySnapshot,
		EntryOperator: p.Operator,
	}

	action.Status = types.StatusApproved
	s.pending[p.PollID] = action
	return id, nil
}

func (v transactions) CloseSession(_ context.Context, p store.CloseSessionParams) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.pending[p.PollID]
	if !ok || action.Status != types.StatusProcessing {
		return store.ErrActionConflict
	}

	rec, ok := s.transactions[p.TransactionID]
	if !ok || rec.ExitAt != nil {
		return store.ErrAlreadyProcessed
	}

	exitAt := p.ExitAt
	fee := p.Fee
	rec.ExitAt = &exitAt
	rec.Fee = &fee
	rec.ExitSnapshot = p.ExitSnapshot
	rec.ExitOperator = p.Operator
	s.transactions[p.TransactionID] = rec

	action.Status = types.StatusApproved
	s.pending[p.PollID] = action
	return nil
}

// ── PendingActionStore ───────────────────────────────────────────────────────

type pending struct{ s *Store }

func (v pending) Enqueue(_ context.Context, rec store.PendingActionRecord) (int64, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.nextActionID++
	rec.ID = s.nextActionID
	s.pending[rec.ID] = rec
	return rec.ID, nil
}

func (v pending) ClaimOldest(_ context.Context, ttl time.Duration) (*store.PendingActionRecord, int64, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-ttl)

	var swept int64
	for id, rec := range s.pending {
		if claimable(rec.Status) && rec.CreatedAt.Before(cutoff) {
			delete(s.pending, id)
			swept++
		}
	}

	var eligible []store.PendingActionRecord
	for _, rec := range s.pending {
		if claimable(rec.Status) {
			eligible = append(eligible, rec)
		}
	}
	if len(eligible) == 0 {
		return nil, swept, nil
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].ID < eligible[j].ID
		}
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})

	rec := eligible[0]
	if rec.Status.IsAlert() {
		// One-shot notification: deleted on read.
		delete(s.pending, rec.ID)
		return &rec, swept, nil
	}

	rec.Status = types.StatusProcessing
	s.pending[rec.ID] = rec
	return &rec, swept, nil
}

func claimable(st types.ActionStatus) bool {
	return st == types.StatusPending || st.IsAlert()
}

func (v pending) Deny(_ context.Context, id int64) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.pending[id]
	if !ok {
		return nil
	}
	rec.Status = types.StatusDenied
	s.pending[id] = rec
	return nil
}

func (v pending) ConsumeStatus(_ context.Context, id int64) (types.ActionStatus, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.pending[id]
	if !ok {
		return types.StatusDenied, nil
	}
	if rec.Status.Resolved() {
		delete(s.pending, id)
	}
	return rec.Status, nil
}

func (v pending) PurgeAbandoned(_ context.Context, cutoff time.Time) (int64, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for id, rec := range s.pending {
		if rec.Status == types.StatusProcessing && rec.CreatedAt.Before(cutoff) {
			delete(s.pending, id)
			purged++
		}
	}
	return purged, nil
}

// ── SettingsStore ────────────────────────────────────────────────────────────

type settings struct{ s *Store }

func (v settings) Get(_ context.Context, key string) (string, bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	val, ok := v.s.settings[key]
	return val, ok, nil
}

// SetSetting overrides a tariff value. Test helper.
func (s *Store) SetSetting(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
}

// ── OperatorStore ────────────────────────────────────────────────────────────

type operators struct{ s *Store }

func (v operators) GetByUsername(_ context.Context, username string) (*store.OperatorRecord, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	rec, ok := v.s.operators[strings.TrimSpace(username)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// PutOperator adds an account. Test and dev helper.
func (s *Store) PutOperator(rec store.OperatorRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Status == "" {
		rec.Status = types.OperatorActive
	}
	s.operators[rec.Username] = rec
}

// ── Test inspection helpers ──────────────────────────────────────────────────

// PendingActions returns a snapshot of the queue ordered by id.
func (s *Store) PendingActions() []store.PendingActionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.PendingActionRecord, 0, len(s.pending))
	for _, rec := range s.pending {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TransactionRows returns a snapshot of the ledger ordered by id.
func (s *Store) TransactionRows() []store.TransactionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.TransactionRecord, 0, len(s.transactions))
	for _, rec := range s.transactions {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BackdateAction rewrites an action's creation time so tests can exercise
// the TTL sweep and the abandonment purge.
func (s *Store) BackdateAction(id int64, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.pending[id]; ok {
		rec.CreatedAt = createdAt
		s.pending[id] = rec
	}
}
