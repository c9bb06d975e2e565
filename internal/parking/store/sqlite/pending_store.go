package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/tranbichdiep/smart-parking-management/internal/db"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/store"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/types"
)

// PendingActionStore is the durable queue behind the gate handshake.
// All mutations run on the write worker, so the sweep, the FIFO select,
// and the claim transition of ClaimOldest form one atomic unit.
type PendingActionStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewPendingActionStore(db *sql.DB, writer *dbpkg.Worker) *PendingActionStore {
	return &PendingActionStore{db: db, writer: writer}
}

func (s *PendingActionStore) Enqueue(ctx context.Context, rec store.PendingActionRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var id int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var txID any
		if rec.TransactionID != 0 {
			txID = rec.TransactionID
		}
		var plate any
		if rec.LicensePlate != "" {
			plate = rec.LicensePlate
		}
		var durationSecs any
		if rec.Kind == types.ActionExit {
			durationSecs = rec.DurationSecs
		}

		res, err := tx.ExecContext(ctx, `
INSERT INTO pending_actions(
  card_id, status, action_kind, created_at_ms,
  transaction_id, license_plate, entry_ms, duration_secs, fee
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
			rec.CardID, string(rec.Status), string(rec.Kind),
			rec.CreatedAt.UTC().UnixMilli(),
			txID, plate, timeToNullMs(rec.EntryAt), durationSecs, rec.Fee,
		)
		if err != nil {
			return fmt.Errorf("pending Enqueue: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("pending Enqueue id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *PendingActionStore) ClaimOldest(ctx context.Context, ttl time.Duration) (*store.PendingActionRecord, int64, error) {
	var (
		claimed *store.PendingActionRecord
		swept   int64
	)

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		cutoffMs := time.Now().UTC().Add(-ttl).UnixMilli()

		// Expiry sweep: stale unclaimed requests and unread alerts vanish,
		// and the device's next status poll reports denied for them.
		res, err := tx.ExecContext(ctx, `
DELETE FROM pending_actions
WHERE status IN ('pending', 'alert_unregistered', 'alert_lost')
  AND created_at_ms < ?;`, cutoffMs)
		if err != nil {
			return fmt.Errorf("pending sweep: %w", err)
		}
		swept, _ = res.RowsAffected()

		rec, err := scanPending(tx.QueryRowContext(ctx, `
SELECT id, card_id, status, action_kind, created_at_ms,
       transaction_id, license_plate, entry_ms, duration_secs, fee
FROM pending_actions
WHERE status IN ('pending', 'alert_unregistered', 'alert_lost')
ORDER BY created_at_ms ASC, id ASC
LIMIT 1;`))
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("pending select oldest: %w", err)
		}

		if rec.Status.IsAlert() {
			// One-shot notification: delete on read, never redelivered.
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM pending_actions WHERE id = ?;`, rec.ID); err != nil {
				return fmt.Errorf("pending delete alert: %w", err)
			}
			claimed = rec
			return nil
		}

		// Atomic read-and-mark: the status predicate means a row another
		// claimer already moved to processing cannot be won twice.
		res, err = tx.ExecContext(ctx, `
UPDATE pending_actions SET status = 'processing'
WHERE id = ? AND status = 'pending';`, rec.ID)
		if err != nil {
			return fmt.Errorf("pending claim: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		rec.Status = types.StatusProcessing
		claimed = rec
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return claimed, swept, nil
}

func (s *PendingActionStore) Deny(ctx context.Context, id int64) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
UPDATE pending_actions SET status = 'denied' WHERE id = ?;`, id); err != nil {
			return fmt.Errorf("pending Deny: %w", err)
		}
		return nil
	})
}

func (s *PendingActionStore) ConsumeStatus(ctx context.Context, id int64) (types.ActionStatus, error) {
	var status types.ActionStatus

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var raw string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM pending_actions WHERE id = ?;`, id).Scan(&raw)
		if err == sql.ErrNoRows {
			// Consumed, expired, or never existed: fail closed.
			status = types.StatusDenied
			return nil
		}
		if err != nil {
			return fmt.Errorf("pending ConsumeStatus: %w", err)
		}

		status = types.ActionStatus(raw)
		if status.Resolved() {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM pending_actions WHERE id = ?;`, id); err != nil {
				return fmt.Errorf("pending consume delete: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

func (s *PendingActionStore) PurgeAbandoned(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM pending_actions
WHERE status = 'processing' AND created_at_ms < ?;`,
			cutoff.UTC().UnixMilli())
		if err != nil {
			return fmt.Errorf("pending PurgeAbandoned: %w", err)
		}
		purged, _ = res.RowsAffected()
		return nil
	})
	return purged, err
}

func scanPending(row *sql.Row) (*store.PendingActionRecord, error) {
	var (
		rec      store.PendingActionRecord
		crtMs    int64
		txID     sql.NullInt64
		plate    sql.NullString
		entryMs  sql.NullInt64
		duration sql.NullInt64
		fee      sql.NullInt64
	)
	err := row.Scan(&rec.ID, &rec.CardID, &rec.Status, &rec.Kind, &crtMs,
		&txID, &plate, &entryMs, &duration, &fee)
	if err != nil {
		return nil, err
	}

	rec.CreatedAt = msToTime(crtMs)
	rec.TransactionID = txID.Int64
	rec.LicensePlate = plate.String
	rec.EntryAt = nullMsToTime(entryMs)
	rec.DurationSecs = duration.Int64
	rec.Fee = fee.Int64
	return &rec, nil
}
