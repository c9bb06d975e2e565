package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	dbpkg "github.com/tranbichdiep/smart-parking-management/internal/db"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/store"
)

type TransactionStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewTransactionStore(db *sql.DB, writer *dbpkg.Worker) *TransactionStore {
	return &TransactionStore{db: db, writer: writer}
}

const transactionColumns = `
id, card_id, license_plate, entry_ms, exit_ms, fee,
entry_snapshot, exit_snapshot, entry_operator, exit_operator`

func scanTransaction(row *sql.Row) (*store.TransactionRecord, error) {
	var (
		rec     store.TransactionRecord
		plate   sql.NullString
		entryMs int64
		exitMs  sql.NullInt64
		fee     sql.NullInt64
		entSnap sql.NullString
		extSnap sql.NullString
		entOp   sql.NullString
		extOp   sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.CardID, &plate, &entryMs, &exitMs, &fee,
		&entSnap, &extSnap, &entOp, &extOp)
	if err != nil {
		return nil, err
	}

	rec.LicensePlate = plate.String
	rec.EntryAt = msToTime(entryMs)
	rec.ExitAt = nullMsToTime(exitMs)
	rec.Fee = nullInt(fee)
	rec.EntrySnapshot = entSnap.String
	rec.ExitSnapshot = extSnap.String
	rec.EntryOperator = entOp.String
	rec.ExitOperator = extOp.String
	return &rec, nil
}

func (s *TransactionStore) FindOpen(ctx context.Context, cardID string) (*store.TransactionRecord, error) {
	rec, err := scanTransaction(s.db.QueryRowContext(ctx, `
SELECT `+transactionColumns+`
FROM transactions
WHERE card_id = ? AND exit_ms IS NULL;`, cardID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("transaction FindOpen: %w", err)
	}
	return rec, nil
}

func (s *TransactionStore) Get(ctx context.Context, id int64) (*store.TransactionRecord, error) {
	rec, err := scanTransaction(s.db.QueryRowContext(ctx, `
SELECT `+transactionColumns+`
FROM transactions
WHERE id = ?;`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("transaction Get: %w", err)
	}
	return rec, nil
}

// OpenSession commits an entry approval: walk-in card auto-registration,
// the open transaction row, and the pending-action approval in one
// transaction. Any failure rolls back all three writes.
func (s *TransactionStore) OpenSession(ctx context.Context, p store.OpenSessionParams) (int64, error) {
	entryMs := p.EntryAt.UTC().UnixMilli()

	var txID int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM cards WHERE card_id = ?;`, p.CardID).Scan(&exists)
		if err == sql.ErrNoRows {
			// Walk-in auto-registration: first unmatched entry approval
			// enrolls the card as a single-use daily credential.
			if _, err := tx.ExecContext(ctx, `
INSERT INTO cards(card_id, holder_name, license_plate, ticket_type, status, created_at_ms)
VALUES (?, ?, ?, 'daily', 'active', ?);`,
				p.CardID, p.HolderName, p.LicensePlate, entryMs,
			); err != nil {
				return fmt.Errorf("OpenSession create card: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("OpenSession card check: %w", err)
		}

		err = tx.QueryRowContext(ctx,
			`SELECT 1 FROM transactions WHERE card_id = ? AND exit_ms IS NULL;`,
			p.CardID).Scan(&exists)
		if err == nil {
			return store.ErrOpenSessionExists
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("OpenSession open check: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
INSERT INTO transactions(card_id, license_plate, entry_ms, entry_snapshot, entry_operator)
VALUES (?, ?, ?, ?, ?);`,
			p.CardID, p.LicensePlate, entryMs, p.EntrySnapshot, p.Operator)
		if err != nil {
			return fmt.Errorf("OpenSession insert: %w", err)
		}
		txID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("OpenSession id: %w", err)
		}

		return approveAction(ctx, tx, p.PollID)
	})
	if err != nil {
		return 0, err
	}
	return txID, nil
}

// CloseSession commits an exit approval. The open re-check defends
// against double submission: a second confirm on the same transaction
// fails with ErrAlreadyProcessed and leaves the queue untouched.
func (s *TransactionStore) CloseSession(ctx context.Context, p store.CloseSessionParams) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var exitMs sql.NullInt64
		err := tx.QueryRowContext(ctx,
			`SELECT exit_ms FROM transactions WHERE id = ?;`,
			p.TransactionID).Scan(&exitMs)
		if err == sql.ErrNoRows {
			return store.ErrAlreadyProcessed
		}
		if err != nil {
			return fmt.Errorf("CloseSession check: %w", err)
		}
		if exitMs.Valid {
			return store.ErrAlreadyProcessed
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE transactions
SET exit_ms = ?, fee = ?, exit_snapshot = ?, exit_operator = ?
WHERE id = ?;`,
			p.ExitAt.UTC().UnixMilli(), p.Fee, p.ExitSnapshot, p.Operator, p.TransactionID,
		); err != nil {
			return fmt.Errorf("CloseSession update: %w", err)
		}

		return approveAction(ctx, tx, p.PollID)
	})
}

// approveAction marks a claimed action approved. The status predicate is
// the other half of the at-most-one-claim invariant: only a processing
// action can become approved.
func approveAction(ctx context.Context, tx *sql.Tx, pollID int64) error {
	res, err := tx.ExecContext(ctx, `
UPDATE pending_actions SET status = 'approved'
WHERE id = ? AND status = 'processing';`, pollID)
	if err != nil {
		return fmt.Errorf("approve action %d: %w", pollID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrActionConflict
	}
	return nil
}
