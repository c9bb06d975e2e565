package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tranbichdiep/smart-parking-management/internal/metrics"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/store"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/types"
)

var ErrInvalidCardID = errors.New("card_id is required")

// defaultHourlyRate applies when the tariff setting is missing entirely.
const defaultHourlyRate = 5000

// GateService handles the device side of the handshake: it classifies a
// card scan into entry, exit, or rejection, precomputes the exit fee, and
// enqueues the pending action the operator will decide on.
type GateService struct {
	cards        store.CardStore
	transactions store.TransactionStore
	pending      store.PendingActionStore
	settings     store.SettingsStore
	logger       *slog.Logger
	now          func() time.Time
}

type GateDeps struct {
	Cards        store.CardStore
	Transactions store.TransactionStore
	Pending      store.PendingActionStore
	Settings     store.SettingsStore
	Logger       *slog.Logger
	Now          func() time.Time // defaults to time.Now
}

func NewGateService(d GateDeps) *GateService {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &GateService{
		cards:        d.Cards,
		transactions: d.Transactions,
		pending:      d.Pending,
		settings:     d.Settings,
		logger:       d.Logger,
		now:          d.Now,
	}
}

// HandleScan processes one card swipe. Exactly one queue insertion
// happens per accepted scan; the device either gets a poll id to follow
// up on or a wait telling it to show a rejection. Unexpected storage
// errors return an error so the transport can answer with a generic
// wait: a scan must never open a gate by failing.
func (s *GateService) HandleScan(ctx context.Context, cardID string) (types.ScanResponse, error) {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return types.ScanResponse{}, ErrInvalidCardID
	}

	card, err := s.cards.Get(ctx, cardID)
	if err != nil {
		return types.ScanResponse{}, err
	}

	now := s.now().UTC()

	if card == nil {
		s.enqueueAlert(ctx, cardID, types.StatusAlertUnregistered, now)
		metrics.ScansTotal.WithLabelValues("unregistered").Inc()
		return types.ScanResponse{
			Action:  types.DeviceActionWait,
			Message: "card is not enrolled at this facility",
		}, nil
	}

	if card.Status == types.CardLost {
		s.enqueueAlert(ctx, cardID, types.StatusAlertLost, now)
		metrics.ScansTotal.WithLabelValues("lost").Inc()
		return types.ScanResponse{
			Action:  types.DeviceActionWait,
			Message: "card has been reported lost, contact the office",
		}, nil
	}

	open, err := s.transactions.FindOpen(ctx, cardID)
	if err != nil {
		return types.ScanResponse{}, err
	}

	if open == nil {
		return s.enqueueEntry(ctx, cardID, now)
	}
	return s.enqueueExit(ctx, card, open, now)
}

// CheckStatus answers the device's follow-up poll. Resolved actions are
// consumed; unknown ids report denied.
func (s *GateService) CheckStatus(ctx context.Context, id int64) (types.ActionStatus, error) {
	return s.pending.ConsumeStatus(ctx, id)
}

func (s *GateService) enqueueEntry(ctx context.Context, cardID string, now time.Time) (types.ScanResponse, error) {
	id, err := s.pending.Enqueue(ctx, store.PendingActionRecord{
		CardID:    cardID,
		Status:    types.StatusPending,
		Kind:      types.ActionEntry,
		CreatedAt: now,
	})
	if err != nil {
		return types.ScanResponse{}, err
	}

	metrics.ScansTotal.WithLabelValues("entry").Inc()
	return types.ScanResponse{
		Action:  types.DeviceActionPoll,
		PollID:  id,
		Message: "vehicle entering, waiting for operator",
	}, nil
}

func (s *GateService) enqueueExit(ctx context.Context, card *store.CardRecord, open *store.TransactionRecord, now time.Time) (types.ScanResponse, error) {
	entryAt := open.EntryAt

	// Walk-ins always pay. A subscription pays only when it had already
	// lapsed at the moment the vehicle entered; lapsing mid-visit bills
	// the whole stay at the walk-in rate.
	shouldCharge := card.TicketKind == types.TicketDaily ||
		(card.TicketKind == types.TicketMonthly && card.ExpiresAt != nil &&
			!SubscriptionCoversEntry(card.ExpiresAt, entryAt))

	var fee int64
	if shouldCharge {
		fee = ComputeFee(entryAt, now, s.hourlyRate(ctx))
	}

	id, err := s.pending.Enqueue(ctx, store.PendingActionRecord{
		CardID:        card.CardID,
		Status:        types.StatusPending,
		Kind:          types.ActionExit,
		CreatedAt:     now,
		TransactionID: open.ID,
		LicensePlate:  open.LicensePlate,
		EntryAt:       &entryAt,
		DurationSecs:  int64(now.Sub(entryAt) / time.Second),
		Fee:           fee,
	})
	if err != nil {
		return types.ScanResponse{}, err
	}

	metrics.ScansTotal.WithLabelValues("exit").Inc()
	return types.ScanResponse{
		Action:  types.DeviceActionPoll,
		PollID:  id,
		Message: "vehicle exiting, waiting for operator",
	}, nil
}

// enqueueAlert records a fire-and-forget operator notification. The
// device's answer is the same wait either way, so a failed alert write is
// logged rather than turned into a server error.
func (s *GateService) enqueueAlert(ctx context.Context, cardID string, status types.ActionStatus, now time.Time) {
	_, err := s.pending.Enqueue(ctx, store.PendingActionRecord{
		CardID:    cardID,
		Status:    status,
		Kind:      types.ActionAlert,
		CreatedAt: now,
	})
	if err != nil {
		s.logger.Warn("alert enqueue failed",
			"card_id", cardID, "alert", string(status), "error", err)
	}
}

func (s *GateService) hourlyRate(ctx context.Context) int64 {
	raw, ok, err := s.settings.Get(ctx, store.SettingFeePerHour)
	if err != nil {
		s.logger.Warn("tariff lookup failed, using default rate", "error", err)
		return defaultHourlyRate
	}
	if !ok {
		return defaultHourlyRate
	}
	rate, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || rate <= 0 {
		s.logger.Warn("invalid fee_per_hour setting, using default rate", "value", raw)
		return defaultHourlyRate
	}
	return rate
}
