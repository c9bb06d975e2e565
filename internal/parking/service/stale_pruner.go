package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/tranbichdiep/smart-parking-management/internal/metrics"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/store"
)

// StalePruner periodically deletes processing actions an operator claimed
// and then abandoned (browser closed, shift change). The claim-time TTL
// sweep only covers unclaimed rows, so without this a claimed-but-never-
// resolved action would sit in processing forever while its device long
// since gave up.
//
// Runs as a background goroutine; safe to stop via its context or Stop.
type StalePruner struct {
	store       store.PendingActionStore
	abandonment time.Duration
	interval    time.Duration
	logger      *slog.Logger
	cancel      context.CancelFunc
	done        chan struct{}
}

type PrunerConfig struct {
	// AbandonAfter is how long a processing claim may live before it is
	// considered abandoned. Defaults to 15 minutes.
	AbandonAfter time.Duration

	// Interval is how often the pruner runs. Defaults to 5 minutes.
	Interval time.Duration
}

// NewStalePruner creates a pruner but does not start it.
func NewStalePruner(s store.PendingActionStore, cfg PrunerConfig, logger *slog.Logger) *StalePruner {
	if cfg.AbandonAfter <= 0 {
		cfg.AbandonAfter = 15 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &StalePruner{
		store:       s,
		abandonment: cfg.AbandonAfter,
		interval:    cfg.Interval,
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// Start begins the background loop: one immediate prune to clear any
// backlog, then repeats on the configured interval until ctx is cancelled
// or Stop is called.
func (p *StalePruner) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)

	p.logger.Info("stale-claim pruner started",
		"abandon_after", p.abandonment.String(), "interval", p.interval.String())
}

// Stop signals the pruner to exit and waits for it to finish.
func (p *StalePruner) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *StalePruner) loop(ctx context.Context) {
	defer close(p.done)

	p.prune(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *StalePruner) prune(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-p.abandonment)
	purged, err := p.store.PurgeAbandoned(ctx, cutoff)
	if err != nil {
		p.logger.Error("stale-claim prune failed", "error", err)
		return
	}
	if purged > 0 {
		metrics.QueuePurgedTotal.Add(float64(purged))
		p.logger.Info("stale-claim prune removed abandoned claims",
			"count", purged, "cutoff", cutoff.Format(time.RFC3339))
	}
}
