package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	dbpkg "github.com/tranbichdiep/smart-parking-management/internal/db"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/store"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/store/sqlite"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/types"
)

var dbSeq atomic.Int64

// openTestDB opens a fresh in-memory database with the full migrated
// schema. Each test gets its own named memory database so parallel tests
// never share state.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:testdb_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		dbSeq.Add(1),
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := dbpkg.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestWriter(t *testing.T, db *sql.DB) *dbpkg.Worker {
	t.Helper()
	w := dbpkg.NewWorker(db)
	t.Cleanup(w.Close)
	return w
}

type sqliteStores struct {
	cards        *sqlite.CardStore
	transactions *sqlite.TransactionStore
	pending      *sqlite.PendingActionStore
	settings     *sqlite.SettingsStore
	operators    *sqlite.OperatorStore
}

func newStores(t *testing.T) sqliteStores {
	t.Helper()
	db := openTestDB(t)
	w := newTestWriter(t, db)
	return sqliteStores{
		cards:        sqlite.NewCardStore(db, w),
		transactions: sqlite.NewTransactionStore(db, w),
		pending:      sqlite.NewPendingActionStore(db, w),
		settings:     sqlite.NewSettingsStore(db),
		operators:    sqlite.NewOperatorStore(db),
	}
}

func createCard(t *testing.T, s sqliteStores, rec store.CardRecord) {
	t.Helper()
	if rec.TicketKind == "" {
		rec.TicketKind = types.TicketDaily
	}
	if rec.Status == "" {
		rec.Status = types.CardActive
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if err := s.cards.Create(context.Background(), rec); err != nil {
		t.Fatalf("create card %s: %v", rec.CardID, err)
	}
}

// enqueueAndClaim pushes a pending entry action and claims it, the state
// every approval starts from.
func enqueueAndClaim(t *testing.T, s sqliteStores, cardID string) int64 {
	t.Helper()
	ctx := context.Background()

	id, err := s.pending.Enqueue(ctx, store.PendingActionRecord{
		CardID: cardID, Status: types.StatusPending, Kind: types.ActionEntry,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	rec, _, err := s.pending.ClaimOldest(ctx, time.Hour)
	if err != nil || rec == nil || rec.ID != id {
		t.Fatalf("claim: rec=%+v err=%v", rec, err)
	}
	return id
}
