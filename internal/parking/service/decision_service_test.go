package service_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/tranbichdiep/smart-parking-management/internal/parking/service"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/store"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/store/memory"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/types"
)

type stubCamera struct{ ref string }

func (c stubCamera) Capture(context.Context, string, types.Direction) string { return c.ref }

type fixture struct {
	mem       *memory.Store
	clock     *testClock
	gate      *service.GateService
	decisions *service.DecisionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := memory.New()
	clock := newClock()
	return &fixture{
		mem:   mem,
		clock: clock,
		gate:  newGate(t, mem, clock),
		decisions: service.NewDecisionService(service.DecisionDeps{
			Cards:        mem.Cards(),
			Transactions: mem.Transactions(),
			Pending:      mem.Pending(),
			Camera:       stubCamera{ref: "snap.jpg"},
			Logger:       slog.Default(),
			Now:          clock.Now,
		}),
	}
}

func TestEntryHandshake(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mustCreateCard(t, f.mem, store.CardRecord{
		CardID: "CARD-1", HolderName: "Nguyen Van A", LicensePlate: "29A-123.45",
		TicketKind: types.TicketMonthly, Status: types.CardActive,
	})

	scan, err := f.gate.HandleScan(ctx, "CARD-1")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	view, err := f.decisions.PollPending(ctx)
	if err != nil {
		t.Fatalf("poll pending: %v", err)
	}
	if view == nil || view.Kind != types.ActionEntry {
		t.Fatalf("expected entry view, got %+v", view)
	}
	if view.PollID != scan.PollID {
		t.Fatalf("view poll id = %d, scan handed out %d", view.PollID, scan.PollID)
	}
	if view.HolderName != "Nguyen Van A" || view.TicketKind != types.TicketMonthly {
		t.Fatalf("card fields not enriched: %+v", view)
	}

	// The claim moved it to processing; nothing else is poll-able.
	if again, err := f.decisions.PollPending(ctx); err != nil || again != nil {
		t.Fatalf("second poll = (%+v, %v), want empty queue", again, err)
	}

	if err := f.decisions.ApproveEntry(ctx, scan.PollID, "CARD-1", "29A-123.45", "guard"); err != nil {
		t.Fatalf("approve entry: %v", err)
	}

	txns := f.mem.TransactionRows()
	if len(txns) != 1 || txns[0].ExitAt != nil {
		t.Fatalf("expected one open transaction, got %+v", txns)
	}
	if txns[0].EntrySnapshot != "snap.jpg" {
		t.Fatalf("entry snapshot = %q, want snap.jpg", txns[0].EntrySnapshot)
	}

	// Device reads the approval exactly once.
	if st, err := f.gate.CheckStatus(ctx, scan.PollID); err != nil || st != types.StatusApproved {
		t.Fatalf("first status read = (%q, %v), want approved", st, err)
	}
	if st, err := f.gate.CheckStatus(ctx, scan.PollID); err != nil || st != types.StatusDenied {
		t.Fatalf("second status read = (%q, %v), want denied after consumption", st, err)
	}
}

func TestApproveEntryAutoRegistersWalkIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Kiosk-issued paper ticket: queued as an entry for a card id the
	// facility has never enrolled.
	id, err := f.mem.Pending().Enqueue(ctx, store.PendingActionRecord{
		CardID: "TICKET-1", Status: types.StatusPending, Kind: types.ActionEntry,
		CreatedAt: f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	rec, _, err := f.mem.Pending().ClaimOldest(ctx, time.Hour)
	if err != nil || rec == nil || rec.ID != id {
		t.Fatalf("claim ticket entry: rec=%+v err=%v", rec, err)
	}

	if err := f.decisions.ApproveEntry(ctx, id, "TICKET-1", "51C-999.99", "guard"); err != nil {
		t.Fatalf("approve entry: %v", err)
	}

	card, err := f.mem.Cards().Get(ctx, "TICKET-1")
	if err != nil || card == nil {
		t.Fatalf("walk-in card not auto-registered: %v", err)
	}
	if card.TicketKind != types.TicketDaily {
		t.Fatalf("walk-in ticket kind = %q, want daily", card.TicketKind)
	}
	if !strings.Contains(card.HolderName, "Walk-in") {
		t.Fatalf("walk-in holder name = %q", card.HolderName)
	}
}

func TestApproveEntryRejectsDuplicateOpenSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mustCreateCard(t, f.mem, store.CardRecord{
		CardID: "CARD-1", TicketKind: types.TicketDaily, Status: types.CardActive,
	})
	openSession(t, f.mem, f.gate, "CARD-1", "29A-123.45")

	// A second pending entry for the same card (stuck device retry).
	id, err := f.mem.Pending().Enqueue(ctx, store.PendingActionRecord{
		CardID: "CARD-1", Status: types.StatusPending, Kind: types.ActionEntry,
		CreatedAt: f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, _, err := f.mem.Pending().ClaimOldest(ctx, time.Hour); err != nil {
		t.Fatalf("claim: %v", err)
	}

	err = f.decisions.ApproveEntry(ctx, id, "CARD-1", "29A-123.45", "guard")
	if !errors.Is(err, store.ErrOpenSessionExists) {
		t.Fatalf("err = %v, want ErrOpenSessionExists", err)
	}
}

func TestExitHandshake(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mustCreateCard(t, f.mem, store.CardRecord{
		CardID: "CARD-1", TicketKind: types.TicketDaily, Status: types.CardActive,
	})
	txID := openSession(t, f.mem, f.gate, "CARD-1", "29A-123.45")

	f.clock.Advance(90 * time.Minute)

	scan, err := f.gate.HandleScan(ctx, "CARD-1")
	if err != nil {
		t.Fatalf("exit scan: %v", err)
	}

	view, err := f.decisions.PollPending(ctx)
	if err != nil || view == nil {
		t.Fatalf("poll pending: view=%+v err=%v", view, err)
	}
	if view.Kind != types.ActionExit || view.TransactionID != txID {
		t.Fatalf("exit view = %+v", view)
	}
	if view.Fee != 20000 {
		t.Fatalf("precomputed fee = %d, want 20000", view.Fee)
	}

	if err := f.decisions.ApproveExit(ctx, scan.PollID, txID, view.Fee, "guard"); err != nil {
		t.Fatalf("approve exit: %v", err)
	}

	txns := f.mem.TransactionRows()
	if len(txns) != 1 || txns[0].ExitAt == nil {
		t.Fatalf("transaction not closed: %+v", txns)
	}
	if txns[0].Fee == nil || *txns[0].Fee != 20000 {
		t.Fatalf("recorded fee = %v, want 20000", txns[0].Fee)
	}

	if st, err := f.gate.CheckStatus(ctx, scan.PollID); err != nil || st != types.StatusApproved {
		t.Fatalf("status = (%q, %v), want approved", st, err)
	}
}

func TestApproveExitTwiceFailsAndKeepsFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mustCreateCard(t, f.mem, store.CardRecord{
		CardID: "CARD-1", TicketKind: types.TicketDaily, Status: types.CardActive,
	})
	txID := openSession(t, f.mem, f.gate, "CARD-1", "29A-123.45")

	f.clock.Advance(time.Hour)
	scan, err := f.gate.HandleScan(ctx, "CARD-1")
	if err != nil {
		t.Fatalf("exit scan: %v", err)
	}
	if _, err := f.decisions.PollPending(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := f.decisions.ApproveExit(ctx, scan.PollID, txID, 10000, "guard"); err != nil {
		t.Fatalf("first approve: %v", err)
	}

	err = f.decisions.ApproveExit(ctx, scan.PollID, txID, 99999, "guard")
	if !errors.Is(err, store.ErrAlreadyProcessed) {
		t.Fatalf("second approve err = %v, want ErrAlreadyProcessed", err)
	}

	txns := f.mem.TransactionRows()
	if txns[0].Fee == nil || *txns[0].Fee != 10000 {
		t.Fatalf("fee changed by double submit: %v", txns[0].Fee)
	}
}

func TestDenyResolvesAction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mustCreateCard(t, f.mem, store.CardRecord{
		CardID: "CARD-1", TicketKind: types.TicketDaily, Status: types.CardActive,
	})
	scan, err := f.gate.HandleScan(ctx, "CARD-1")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, err := f.decisions.PollPending(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := f.decisions.Deny(ctx, scan.PollID); err != nil {
		t.Fatalf("deny: %v", err)
	}

	if st, err := f.gate.CheckStatus(ctx, scan.PollID); err != nil || st != types.StatusDenied {
		t.Fatalf("status = (%q, %v), want denied", st, err)
	}
	// Denied was terminal; the row is gone now.
	if len(f.mem.PendingActions()) != 0 {
		t.Fatalf("queue not empty after consumption: %+v", f.mem.PendingActions())
	}

	if len(f.mem.TransactionRows()) != 0 {
		t.Fatal("deny must not touch the ledger")
	}
}

func TestAlertIsOneShot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.gate.HandleScan(ctx, "GHOST-9"); err != nil {
		t.Fatalf("scan: %v", err)
	}

	view, err := f.decisions.PollPending(ctx)
	if err != nil || view == nil {
		t.Fatalf("poll: view=%+v err=%v", view, err)
	}
	if view.Kind != types.ActionAlert || !strings.Contains(view.Message, "GHOST-9") {
		t.Fatalf("alert view = %+v", view)
	}

	if again, err := f.decisions.PollPending(ctx); err != nil || again != nil {
		t.Fatalf("alert redelivered: %+v %v", again, err)
	}
}

func TestPendingTTLSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mustCreateCard(t, f.mem, store.CardRecord{
		CardID: "CARD-1", TicketKind: types.TicketDaily, Status: types.CardActive,
	})
	scan, err := f.gate.HandleScan(ctx, "CARD-1")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	// Far older than any TTL the sweep could be configured with.
	f.mem.BackdateAction(scan.PollID, time.Now().UTC().Add(-24*time.Hour))

	view, err := f.decisions.PollPending(ctx)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if view != nil {
		t.Fatalf("expired action still delivered: %+v", view)
	}

	// The crashed handshake fails closed on the device side.
	if st, err := f.gate.CheckStatus(ctx, scan.PollID); err != nil || st != types.StatusDenied {
		t.Fatalf("status = (%q, %v), want denied", st, err)
	}
}

func TestPurgeAbandonedClaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mustCreateCard(t, f.mem, store.CardRecord{
		CardID: "CARD-1", TicketKind: types.TicketDaily, Status: types.CardActive,
	})
	scan, err := f.gate.HandleScan(ctx, "CARD-1")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, err := f.decisions.PollPending(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	// Operator walked away; the claim went stale.
	f.mem.BackdateAction(scan.PollID, time.Now().UTC().Add(-time.Hour))

	purged, err := f.mem.Pending().PurgeAbandoned(ctx, time.Now().UTC().Add(-15*time.Minute))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}
	if len(f.mem.PendingActions()) != 0 {
		t.Fatalf("queue not empty: %+v", f.mem.PendingActions())
	}
}
