package store

import (
	"context"
	"time"

	"github.com/tranbichdiep/smart-parking-management/internal/parking/types"
)

// CardRecord is one credential. ExpiresAt is set only for monthly
// subscriptions; daily (single-use) cards never carry an expiry.
type CardRecord struct {
	CardID       string
	HolderName   string
	LicensePlate string
	TicketKind   types.TicketKind
	ExpiresAt    *time.Time
	Status       types.CardStatus
	CreatedAt    time.Time
}

type CardStore interface {
	// Get returns the card or nil when the id is not enrolled.
	Get(ctx context.Context, cardID string) (*CardRecord, error)

	// Create enrolls a new card. ErrCardExists when the id is taken.
	Create(ctx context.Context, rec CardRecord) error

	// SetStatus flips the lifecycle status (report-lost / found).
	SetStatus(ctx context.Context, cardID string, status types.CardStatus) error

	// SetExpiry moves a subscription's expiry timestamp.
	SetExpiry(ctx context.Context, cardID string, expiry time.Time) error
}
