package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"netwatch/internal/history"
	"netwatch/internal/metrics"
)

// Journal is the part of the alert journal that ages out with history.
type Journal interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Service struct {
	store     *history.Store
	journal   Journal
	retention time.Duration
	interval  time.Duration
	clock     clock.Clock
	log       *slog.Logger
}

func NewService(store *history.Store, journal Journal, retention, interval time.Duration, logger *slog.Logger, clk clock.Clock) *Service {
	if retention <= 0 {
		retention = history.DefaultRetention
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Service{store: store, journal: journal, retention: retention, interval: interval, clock: clk, log: logger}
}

// Run evicts on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *Service) Sweep(ctx context.Context) {
	removed := s.store.Evict(s.retention)
	metrics.HistoryEvicted.Add(float64(removed))
	metrics.HistoryEntries.Set(float64(s.store.Len()))

	if s.journal != nil {
		cutoff := s.clock.Now().UTC().Add(-s.retention)
		if _, err := s.journal.DeleteOlderThan(ctx, cutoff); err != nil {
			s.log.Error("journal cleanup failed", "err", err)
		}
	}
	s.log.Info("retention cleanup completed", "removed", removed, "retained", s.store.Len())
}
