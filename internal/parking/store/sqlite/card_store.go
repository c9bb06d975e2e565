package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/tranbichdiep/smart-parking-management/internal/db"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/store"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/types"
)

type CardStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewCardStore(db *sql.DB, writer *dbpkg.Worker) *CardStore {
	return &CardStore{db: db, writer: writer}
}

func (s *CardStore) Get(ctx context.Context, cardID string) (*store.CardRecord, error) {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return nil, nil
	}

	var (
		rec    store.CardRecord
		holder sql.NullString
		plate  sql.NullString
		expiry sql.NullInt64
		crtMs  int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT card_id, holder_name, license_plate, ticket_type, expiry_ms, status, created_at_ms
FROM cards
WHERE card_id = ?;`, cardID).Scan(
		&rec.CardID, &holder, &plate, &rec.TicketKind, &expiry, &rec.Status, &crtMs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("card Get: %w", err)
	}

	rec.HolderName = holder.String
	rec.LicensePlate = plate.String
	rec.ExpiresAt = nullMsToTime(expiry)
	rec.CreatedAt = msToTime(crtMs)
	return &rec, nil
}

func (s *CardStore) Create(ctx context.Context, rec store.CardRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = types.CardActive
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM cards WHERE card_id = ?;`, rec.CardID).Scan(&exists)
		if err == nil {
			return store.ErrCardExists
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("card Create check: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO cards(card_id, holder_name, license_plate, ticket_type, expiry_ms, status, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);`,
			rec.CardID, rec.HolderName, rec.LicensePlate, string(rec.TicketKind),
			timeToNullMs(rec.ExpiresAt), string(rec.Status), rec.CreatedAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("card Create insert: %w", err)
		}
		return nil
	})
}

func (s *CardStore) SetStatus(ctx context.Context, cardID string, status types.CardStatus) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE cards SET status = ? WHERE card_id = ?;`, string(status), cardID)
		if err != nil {
			return fmt.Errorf("card SetStatus: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrCardNotFound
		}
		return nil
	})
}

func (s *CardStore) SetExpiry(ctx context.Context, cardID string, expiry time.Time) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE cards SET expiry_ms = ? WHERE card_id = ?;`,
			expiry.UTC().UnixMilli(), cardID)
		if err != nil {
			return fmt.Errorf("card SetExpiry: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrCardNotFound
		}
		return nil
	})
}
