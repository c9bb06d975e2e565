package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tranbichdiep/smart-parking-management/internal/metrics"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/store"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/types"
)

var ErrInvalidPollID = errors.New("poll_id is required")

// DefaultPendingTTL is how long an unclaimed request or unread alert may
// sit in the queue before the sweep removes it. Two minutes: the device
// and dashboard both poll on a seconds-scale cadence, so anything older
// belongs to a crashed handshake.
const DefaultPendingTTL = 2 * time.Minute

// walkInHolderName labels auto-registered walk-in cards.
const walkInHolderName = "Walk-in guest"

// DecisionService handles the operator side of the handshake: claiming
// the oldest outstanding action for display and committing the decision.
type DecisionService struct {
	cards        store.CardStore
	transactions store.TransactionStore
	pending      store.PendingActionStore
	camera       Snapshotter
	logger       *slog.Logger
	now          func() time.Time
	pendingTTL   time.Duration
}

type DecisionDeps struct {
	Cards        store.CardStore
	Transactions store.TransactionStore
	Pending      store.PendingActionStore
	Camera       Snapshotter
	Logger       *slog.Logger
	Now          func() time.Time // defaults to time.Now
	PendingTTL   time.Duration    // defaults to DefaultPendingTTL
}

func NewDecisionService(d DecisionDeps) *DecisionService {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.PendingTTL <= 0 {
		d.PendingTTL = DefaultPendingTTL
	}
	return &DecisionService{
		cards:        d.Cards,
		transactions: d.Transactions,
		pending:      d.Pending,
		camera:       d.Camera,
		logger:       d.Logger,
		now:          d.Now,
		pendingTTL:   d.PendingTTL,
	}
}

// PollPending claims the oldest outstanding action and enriches it for
// display. Returns nil when the queue is empty. Alerts come back already
// consumed; regular actions are now in processing and must be resolved
// (or left to the abandonment pruner).
func (s *DecisionService) PollPending(ctx context.Context) (*types.PendingView, error) {
	rec, swept, err := s.pending.ClaimOldest(ctx, s.pendingTTL)
	if swept > 0 {
		metrics.QueueSweptTotal.Add(float64(swept))
	}
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	switch {
	case rec.Status.IsAlert():
		return s.alertView(rec), nil
	case rec.Kind == types.ActionEntry:
		return s.entryView(ctx, rec)
	default:
		return s.exitView(ctx, rec)
	}
}

// ApproveEntry commits an entry decision: entry-side snapshot, walk-in
// card auto-registration when needed, the open transaction, and the
// action approval, all-or-nothing.
func (s *DecisionService) ApproveEntry(ctx context.Context, pollID int64, cardID, plate, operator string) error {
	cardID = strings.TrimSpace(cardID)
	if pollID == 0 {
		return ErrInvalidPollID
	}
	if cardID == "" {
		return ErrInvalidCardID
	}

	snapshot := s.camera.Capture(ctx, cardID, types.DirectionIn)

	_, err := s.transactions.OpenSession(ctx, store.OpenSessionParams{
		PollID:        pollID,
		CardID:        cardID,
		HolderName:    fmt.Sprintf("%s %s", walkInHolderName, plate),
		LicensePlate:  plate,
		EntryAt:       s.now().UTC(),
		EntrySnapshot: snapshot,
		Operator:      operator,
	})
	if err != nil {
		return err
	}

	metrics.DecisionsTotal.WithLabelValues("entry_approved").Inc()
	return nil
}

// ApproveExit commits an exit decision: exit-side snapshot, the ledger
// close, and the action approval, all-or-nothing. A transaction that is
// already closed reports store.ErrAlreadyProcessed and leaves the queue
// untouched.
func (s *DecisionService) ApproveExit(ctx context.Context, pollID, transactionID, fee int64, operator string) error {
	if pollID == 0 {
		return ErrInvalidPollID
	}

	txn, err := s.transactions.Get(ctx, transactionID)
	if err != nil {
		return err
	}
	if txn == nil || txn.ExitAt != nil {
		return store.ErrAlreadyProcessed
	}

	snapshot := s.camera.Capture(ctx, txn.CardID, types.DirectionOut)

	err = s.transactions.CloseSession(ctx, store.CloseSessionParams{
		PollID:        pollID,
		TransactionID: transactionID,
		Fee:           fee,
		ExitAt:        s.now().UTC(),
		ExitSnapshot:  snapshot,
		Operator:      operator,
	})
	if err != nil {
		return err
	}

	metrics.DecisionsTotal.WithLabelValues("exit_approved").Inc()
	return nil
}

// Deny resolves the action as denied unconditionally. No ledger writes.
func (s *DecisionService) Deny(ctx context.Context, pollID int64) error {
	if pollID == 0 {
		return ErrInvalidPollID
	}
	if err := s.pending.Deny(ctx, pollID); err != nil {
		return err
	}
	metrics.DecisionsTotal.WithLabelValues("denied").Inc()
	return nil
}

func (s *DecisionService) alertView(rec *store.PendingActionRecord) *types.PendingView {
	msg := fmt.Sprintf("ALERT: unregistered card %s at the gate", rec.CardID)
	if rec.Status == types.StatusAlertLost {
		msg = fmt.Sprintf("LOST CARD: %s has been deactivated and was just used", rec.CardID)
	}
	return &types.PendingView{
		Kind:    types.ActionAlert,
		CardID:  rec.CardID,
		Message: msg,
	}
}

// entryView caches card display fields for the dashboard. Read-only
// enrichment: the claim's processing transition is the only mutation.
func (s *DecisionService) entryView(ctx context.Context, rec *store.PendingActionRecord) (*types.PendingView, error) {
	view := &types.PendingView{
		PollID:     rec.ID,
		Kind:       types.ActionEntry,
		CardID:     rec.CardID,
		EntryTime:  rec.CreatedAt.Format(time.RFC3339),
		HolderName: walkInHolderName,
		TicketKind: types.TicketDaily,
	}

	card, err := s.cards.Get(ctx, rec.CardID)
	if err != nil {
		return nil, err
	}
	if card != nil {
		if card.HolderName != "" {
			view.HolderName = card.HolderName
		}
		view.LicensePlate = card.LicensePlate
		view.TicketKind = card.TicketKind
	}
	return view, nil
}

func (s *DecisionService) exitView(ctx context.Context, rec *store.PendingActionRecord) (*types.PendingView, error) {
	view := &types.PendingView{
		PollID:        rec.ID,
		Kind:          types.ActionExit,
		CardID:        rec.CardID,
		TransactionID: rec.TransactionID,
		LicensePlate:  rec.LicensePlate,
		ExitTime:      rec.CreatedAt.Format(time.RFC3339),
		Duration:      (time.Duration(rec.DurationSecs) * time.Second).String(),
		Fee:           rec.Fee,
	}
	if rec.EntryAt != nil {
		view.EntryTime = rec.EntryAt.Format(time.RFC3339)
	}

	txn, err := s.transactions.Get(ctx, rec.TransactionID)
	if err != nil {
		return nil, err
	}
	if txn != nil && txn.EntrySnapshot != "" {
		view.EntrySnapshot = txn.EntrySnapshot
	} else {
		view.EntrySnapshot = PlaceholderRef
	}

	card, err := s.cards.Get(ctx, rec.CardID)
	if err != nil {
		return nil, err
	}
	if card != nil {
		view.TicketKind = card.TicketKind
	} else {
		view.TicketKind = types.TicketDaily
	}
	return view, nil
}
