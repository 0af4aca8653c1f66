package history

import (
	"slices"
	"time"

	"github.com/benbjohnson/clock"

	"netwatch/internal/models"
)

const (
	DefaultRetention = time.Hour
	DefaultDuration  = time.Hour
)

// Store keeps raw counters and derived speeds per interface. Queries always
// filter by the requested window, so results stay correct even when
// eviction runs late.
type Store struct {
	clock  clock.Clock
	stats  *series[models.InterfaceCounters]
	speeds *series[models.SpeedSample]
}

func NewStore(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.New()
	}
	return &Store{
		clock:  clk,
		stats:  newSeries[models.InterfaceCounters](),
		speeds: newSeries[models.SpeedSample](),
	}
}

func (s *Store) RecordStats(entries []models.InterfaceCounters) {
	s.stats.append(entries, func(c models.InterfaceCounters) string { return c.Interface })
}

func (s *Store) RecordSpeeds(entries []models.SpeedSample) {
	s.speeds.append(entries, func(v models.SpeedSample) string { return v.Interface })
}

// QueryStats returns counters for iface no older than d, oldest first.
func (s *Store) QueryStats(iface string, d time.Duration) []models.InterfaceCounters {
	return s.stats.since(iface, s.clock.Now().Add(-d))
}

// QuerySpeeds returns speed samples for iface no older than d, oldest first.
func (s *Store) QuerySpeeds(iface string, d time.Duration) []models.SpeedSample {
	return s.speeds.since(iface, s.clock.Now().Add(-d))
}

// Evict drops everything older than retention and reports how many entries
// were removed across both series.
func (s *Store) Evict(retention time.Duration) int {
	cutoff := s.clock.Now().Add(-retention)
	return s.stats.evict(cutoff) + s.speeds.evict(cutoff)
}

// Interfaces lists interfaces that currently hold counters or speeds.
func (s *Store) Interfaces() []string {
	names := append(s.stats.names(), s.speeds.names()...)
	slices.Sort(names)
	return slices.Compact(names)
}

// Len is the number of retained entries across both series.
func (s *Store) Len() int {
	return s.stats.len() + s.speeds.len()
}
