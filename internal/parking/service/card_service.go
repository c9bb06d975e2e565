package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tranbichdiep/smart-parking-management/internal/parking/store"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/types"
)

var (
	ErrInvalidTicketKind = errors.New("ticket_type must be daily or monthly")
	ErrInvalidMonths     = errors.New("months must be between 1 and 12")
	ErrNotSubscription   = errors.New("card is not a monthly subscription")
)

// CardService covers administrative card management: enrollment, lost /
// found status flips, and subscription renewal.
type CardService struct {
	cards  store.CardStore
	logger *slog.Logger
	now    func() time.Time
}

func NewCardService(cards store.CardStore, logger *slog.Logger) *CardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CardService{cards: cards, logger: logger, now: time.Now}
}

// Enroll registers a card. Monthly subscriptions start with one paid
// month; daily cards never carry an expiry.
func (s *CardService) Enroll(ctx context.Context, req types.CreateCardRequest) (*store.CardRecord, error) {
	cardID := strings.TrimSpace(req.CardID)
	if cardID == "" {
		return nil, ErrInvalidCardID
	}
	if !req.TicketKind.Valid() {
		return nil, ErrInvalidTicketKind
	}

	now := s.now().UTC()
	rec := store.CardRecord{
		CardID:       cardID,
		HolderName:   strings.TrimSpace(req.HolderName),
		LicensePlate: strings.TrimSpace(req.LicensePlate),
		TicketKind:   req.TicketKind,
		Status:       types.CardActive,
		CreatedAt:    now,
	}
	if req.TicketKind == types.TicketMonthly {
		expiry := AddMonths(now, 1)
		rec.ExpiresAt = &expiry
	}

	if err := s.cards.Create(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Info("card enrolled", "card_id", cardID, "ticket_type", string(req.TicketKind))
	return &rec, nil
}

func (s *CardService) ReportLost(ctx context.Context, cardID string) error {
	return s.cards.SetStatus(ctx, strings.TrimSpace(cardID), types.CardLost)
}

func (s *CardService) MarkFound(ctx context.Context, cardID string) error {
	return s.cards.SetStatus(ctx, strings.TrimSpace(cardID), types.CardActive)
}

// Renew extends a monthly subscription by the given number of months,
// counted from the current expiry when it is still in the future, or
// from now when the subscription already lapsed.
func (s *CardService) Renew(ctx context.Context, cardID string, months int) (time.Time, error) {
	if months < 1 || months > 12 {
		return time.Time{}, ErrInvalidMonths
	}

	card, err := s.cards.Get(ctx, cardID)
	if err != nil {
		return time.Time{}, err
	}
	if card == nil {
		return time.Time{}, store.ErrCardNotFound
	}
	if card.TicketKind != types.TicketMonthly {
		return time.Time{}, ErrNotSubscription
	}

	now := s.now().UTC()
	base := now
	if card.ExpiresAt != nil && card.ExpiresAt.After(now) {
		base = *card.ExpiresAt
	}
	expiry := AddMonths(base, months)

	if err := s.cards.SetExpiry(ctx, cardID, expiry); err != nil {
		return time.Time{}, err
	}
	return expiry, nil
}

// AddMonths advances a date by whole months, clamping the day to the last
// day of the target month (Jan 31 + 1 month = Feb 28/29, not Mar 2/3).
func AddMonths(base time.Time, months int) time.Time {
	y, m, d := base.Date()
	month := int(m) - 1 + months
	year := y + month/12
	month = month%12 + 1

	if last := daysIn(year, time.Month(month)); d > last {
		d = last
	}
	return time.Date(year, time.Month(month), d,
		base.Hour(), base.Minute(), base.Second(), base.Nanosecond(), base.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
