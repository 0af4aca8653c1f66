package history

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netwatch/internal/models"
)

func newTestStore() (*Store, *clock.Mock) {
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC))
	return NewStore(clk), clk
}

func speedAt(iface string, ts time.Time, rx float64) models.SpeedSample {
	return models.SpeedSample{Interface: iface, Timestamp: ts, RxSpeed: rx}
}

func TestQueryFiltersByDurationInOrder(t *testing.T) {
	s, clk := newTestStore()
	now := clk.Now()
	s.RecordSpeeds([]models.SpeedSample{
		speedAt("eth0", now.Add(-90*time.Minute), 1),
		speedAt("eth0", now.Add(-30*time.Minute), 2),
		speedAt("eth1", now.Add(-20*time.Minute), 99),
	})
	s.RecordSpeeds([]models.SpeedSample{speedAt("eth0", now.Add(-10*time.Minute), 3)})
	s.RecordSpeeds([]models.SpeedSample{speedAt("eth0", now, 4)})

	got := s.QuerySpeeds("eth0", time.Hour)
	require.Len(t, got, 3)
	for i, want := range []float64{2, 3, 4} {
		assert.Equal(t, want, got[i].RxSpeed)
	}
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Timestamp.Before(got[i-1].Timestamp), "entries out of order at %d", i)
	}

	for _, d := range []time.Duration{0, time.Minute, 15 * time.Minute, 2 * time.Hour} {
		for _, e := range s.QuerySpeeds("eth0", d) {
			assert.LessOrEqual(t, now.Sub(e.Timestamp), d)
		}
	}

	zero := s.QuerySpeeds("eth0", 0)
	require.Len(t, zero, 1)
	assert.Equal(t, 4.0, zero[0].RxSpeed)
}

func TestQueryUnknownInterfaceIsEmpty(t *testing.T) {
	s, _ := newTestStore()
	got := s.QueryStats("nope", time.Hour)
	require.NotNil(t, got)
	assert.Empty(t, got)
	assert.NotNil(t, s.QuerySpeeds("nope", time.Hour))
}

func TestQueryReturnsCopy(t *testing.T) {
	s, clk := newTestStore()
	s.RecordStats([]models.InterfaceCounters{{Interface: "eth0", Timestamp: clk.Now(), RxBytes: 10}})

	got := s.QueryStats("eth0", time.Hour)
	got[0].RxBytes = 999
	assert.Equal(t, uint64(10), s.QueryStats("eth0", time.Hour)[0].RxBytes)
}

func TestEvictionScenario(t *testing.T) {
	s, clk := newTestStore()
	now := clk.Now()
	old := now.Add(-4000000 * time.Millisecond)
	s.RecordStats([]models.InterfaceCounters{
		{Interface: "eth0", Timestamp: old, RxBytes: 1},
		{Interface: "eth0", Timestamp: now, RxBytes: 2},
	})

	// Query-time filtering already hides the stale entry.
	assert.Len(t, s.QueryStats("eth0", 3600000*time.Millisecond), 1)
	// The raw store still holds it until eviction.
	assert.Len(t, s.QueryStats("eth0", 7200000*time.Millisecond), 2)

	removed := s.Evict(3600000 * time.Millisecond)
	assert.Equal(t, 1, removed)
	got := s.QueryStats("eth0", 7200000*time.Millisecond)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(2), got[0].RxBytes)
}

func TestEvictDropsEmptyInterfaces(t *testing.T) {
	s, clk := newTestStore()
	s.RecordStats([]models.InterfaceCounters{{Interface: "eth0", Timestamp: clk.Now()}})
	s.RecordSpeeds([]models.SpeedSample{speedAt("eth1", clk.Now(), 1)})
	assert.Equal(t, []string{"eth0", "eth1"}, s.Interfaces())
	assert.Equal(t, 2, s.Len())

	clk.Add(2 * time.Hour)
	assert.Equal(t, 2, s.Evict(DefaultRetention))
	assert.Empty(t, s.Interfaces())
	assert.Zero(t, s.Len())
}

func TestQueryAfterClockAdvance(t *testing.T) {
	s, clk := newTestStore()
	s.RecordSpeeds([]models.SpeedSample{speedAt("eth0", clk.Now(), 1)})

	clk.Add(59 * time.Minute)
	assert.Len(t, s.QuerySpeeds("eth0", DefaultDuration), 1)
	clk.Add(2 * time.Minute)
	assert.Empty(t, s.QuerySpeeds("eth0", DefaultDuration))
}
