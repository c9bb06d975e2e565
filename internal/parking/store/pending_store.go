package store

import (
	"context"
	"time"

	"github.com/tranbichdiep/smart-parking-management/internal/parking/types"
)

// PendingActionRecord is one outstanding gate request or operator alert.
// The exit-context fields are set only for exit actions.
type PendingActionRecord struct {
	ID        int64
	CardID    string
	Status    types.ActionStatus
	Kind      types.ActionKind
	CreatedAt time.Time

	TransactionID int64
	LicensePlate  string
	EntryAt       *time.Time
	DurationSecs  int64
	Fee           int64
}

type PendingActionStore interface {
	// Enqueue inserts the action and returns its queue id. Ids are
	// monotonically increasing, so FIFO order is stable within a
	// creation-time tie.
	Enqueue(ctx context.Context, rec PendingActionRecord) (int64, error)

	// ClaimOldest runs the expiry sweep (deleting pending and alert rows
	// older than ttl), then selects the single oldest eligible action.
	// Alert actions are deleted as they are read (one-shot); pending
	// actions transition to processing atomically with the read, so two
	// concurrent claims cannot both win the same action. Returns the
	// claimed record (nil when the queue is empty) and the number of rows
	// the sweep removed.
	ClaimOldest(ctx context.Context, ttl time.Duration) (*PendingActionRecord, int64, error)

	// Deny marks the action denied unconditionally. Used for
	// operator-initiated cancellation; no ledger side effects.
	Deny(ctx context.Context, id int64) error

	// ConsumeStatus reports the action's status to the device. Resolved
	// actions are deleted after being reported so a stale decision cannot
	// be observed twice; a missing id reports denied (fail-closed).
	ConsumeStatus(ctx context.Context, id int64) (types.ActionStatus, error)

	// PurgeAbandoned deletes processing rows created before the cutoff:
	// claims an operator took but never resolved.
	PurgeAbandoned(ctx context.Context, cutoff time.Time) (int64, error)
}
