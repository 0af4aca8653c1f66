package retention

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netwatch/internal/history"
	"netwatch/internal/models"
)

type fakeJournal struct {
	mu      sync.Mutex
	cutoffs []time.Time
}

func (f *fakeJournal) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return 0, nil
}

func (f *fakeJournal) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestSweepEvictsOldSamples(t *testing.T) {
	clk := clock.NewMock()
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	clk.Set(now)
	store := history.NewStore(clk)
	store.RecordStats([]models.InterfaceCounters{
		{Interface: "eth0", Timestamp: now.Add(-4000 * time.Second)},
		{Interface: "eth0", Timestamp: now.Add(-time.Minute)},
	})
	store.RecordSpeeds([]models.SpeedSample{{Interface: "wlan0", Timestamp: now.Add(-2 * time.Hour)}})
	journal := &fakeJournal{}
	svc := NewService(store, journal, time.Hour, 10*time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)), clk)

	svc.Sweep(context.Background())

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, []string{"eth0"}, store.Interfaces())
	require.Len(t, journal.cutoffs, 1)
	assert.Equal(t, now.Add(-time.Hour), journal.cutoffs[0])
}

func TestRunSweepsOnInterval(t *testing.T) {
	clk := clock.NewMock()
	journal := &fakeJournal{}
	svc := NewService(history.NewStore(clk), journal, time.Hour, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)), clk)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Run(ctx)
	}()

	// Run registers its ticker asynchronously, so keep advancing until it fires.
	require.Eventually(t, func() bool {
		clk.Add(time.Minute)
		return journal.Calls() >= 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
