package store

import (
	"context"
	"time"
)

// TransactionRecord is one parking session. ExitAt and Fee stay nil while
// the vehicle is inside; the record is immutable once closed.
type TransactionRecord struct {
	ID            int64
	CardID        string
	LicensePlate  string
	EntryAt       time.Time
	ExitAt        *time.Time
	Fee           *int64
	EntrySnapshot string
	ExitSnapshot  string
	EntryOperator string
	ExitOperator  string
}

// OpenSessionParams is the atomic unit committed when an operator approves
// an entry: walk-in card auto-registration, the open transaction row, and
// the pending-action approval either all land or none do.
type OpenSessionParams struct {
	PollID        int64
	CardID        string
	HolderName    string // used only when the card is auto-created
	LicensePlate  string
	EntryAt       time.Time
	EntrySnapshot string
	Operator      string
}

// CloseSessionParams is the atomic unit committed when an operator
// approves an exit.
type CloseSessionParams struct {
	PollID        int64
	TransactionID int64
	Fee           int64
	ExitAt        time.Time
	ExitSnapshot  string
	Operator      string
}

type TransactionStore interface {
	// FindOpen returns this card's transaction with no exit timestamp, or
	// nil. The schema guarantees at most one exists.
	FindOpen(ctx context.Context, cardID string) (*TransactionRecord, error)

	Get(ctx context.Context, id int64) (*TransactionRecord, error)

	// OpenSession creates the card if absent (walk-in, daily), inserts an
	// open transaction, and marks the pending action approved, all in one
	// storage transaction. Returns the new transaction id.
	// ErrOpenSessionExists or ErrActionConflict roll back everything.
	OpenSession(ctx context.Context, p OpenSessionParams) (int64, error)

	// CloseSession re-checks the transaction is still open, writes the
	// exit side, and marks the pending action approved, atomically.
	// ErrAlreadyProcessed or ErrActionConflict roll back everything.
	CloseSession(ctx context.Context, p CloseSessionParams) error
}
