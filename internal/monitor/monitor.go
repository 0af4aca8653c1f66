package monitor

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"netwatch/internal/alerts"
	"netwatch/internal/collector"
	"netwatch/internal/history"
	"netwatch/internal/metrics"
	"netwatch/internal/models"
	"netwatch/internal/pubsub"
)

const DefaultInterval = time.Second

type Source interface {
	Sample(ctx context.Context) ([]models.InterfaceCounters, error)
}

type Publisher interface {
	Publish(topic string, payload any)
}

// Monitor drives the sampling loop and is the entry point for every command
// that reads or changes monitoring state.
type Monitor struct {
	source  Source
	history *history.Store
	alerts  *alerts.Engine
	pub     Publisher
	clock   clock.Clock
	log     *slog.Logger

	inFlight atomic.Bool

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	interval time.Duration

	latestMu     sync.RWMutex
	latestStats  []models.InterfaceCounters
	latestSpeeds []models.SpeedSample
}

func New(source Source, hist *history.Store, engine *alerts.Engine, pub Publisher, logger *slog.Logger, clk clock.Clock) *Monitor {
	if clk == nil {
		clk = clock.New()
	}
	return &Monitor{
		source:  source,
		history: hist,
		alerts:  engine,
		pub:     pub,
		clock:   clk,
		log:     logger,
	}
}

// Start begins sampling every interval. A running loop is stopped first, so
// there is never more than one loop.
func (m *Monitor) Start(interval time.Duration) error {
	if interval <= 0 {
		return &models.ValidationError{Field: "interval", Reason: "must be positive"}
	}
	m.mu.Lock()
	m.stopLocked()
	ctx, cancel := context.WithCancel(context.Background())
	ticker := m.clock.Ticker(interval)
	done := make(chan struct{})
	m.cancel, m.done, m.interval = cancel, done, interval
	m.mu.Unlock()

	go m.loop(ctx, ticker, done)
	m.log.Info("monitoring started", "interval", interval)
	m.pub.Publish(pubsub.TopicStatus, m.Status())
	return nil
}

// Stop cancels the loop and waits for an in-flight tick to return. Safe to
// call when already stopped.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stopped := m.stopLocked()
	m.mu.Unlock()
	if !stopped {
		return
	}
	m.log.Info("monitoring stopped")
	m.pub.Publish(pubsub.TopicStatus, m.Status())
}

func (m *Monitor) stopLocked() bool {
	if m.cancel == nil {
		return false
	}
	m.cancel()
	<-m.done
	m.cancel, m.done = nil, nil
	return true
}

func (m *Monitor) Status() models.MonitorStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		return models.MonitorStatus{Status: models.MonitorStopped}
	}
	return models.MonitorStatus{Status: models.MonitorStarted, Interval: m.interval.Milliseconds()}
}

func (m *Monitor) loop(ctx context.Context, ticker *clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one sample-derive-record-evaluate-publish cycle. A tick that
// finds another still running is skipped.
func (m *Monitor) Tick(ctx context.Context) {
	if !m.inFlight.CompareAndSwap(false, true) {
		metrics.TicksTotal.WithLabelValues("skipped").Inc()
		m.log.Warn("previous tick still running, skipping")
		return
	}
	defer m.inFlight.Store(false)
	start := m.clock.Now()

	counters, err := m.source.Sample(ctx)
	if err != nil {
		metrics.TicksTotal.WithLabelValues("source_error").Inc()
		m.log.Warn("sample counters", "err", err)
		return
	}
	speeds := collector.Derive(counters)
	m.history.RecordStats(counters)
	m.history.RecordSpeeds(speeds)
	events := m.alerts.Evaluate(speeds)

	m.latestMu.Lock()
	m.latestStats, m.latestSpeeds = counters, speeds
	m.latestMu.Unlock()

	m.pub.Publish(pubsub.TopicRawStats, counters)
	m.pub.Publish(pubsub.TopicSpeeds, speeds)
	m.publishAlerts(events)

	metrics.TicksTotal.WithLabelValues("ok").Inc()
	metrics.TickDuration.Observe(m.clock.Since(start).Seconds())
	metrics.InterfacesSampled.Set(float64(len(counters)))
	for _, s := range speeds {
		metrics.InterfaceRate.WithLabelValues(s.Interface, "rx").Set(s.RxSpeed)
		metrics.InterfaceRate.WithLabelValues(s.Interface, "tx").Set(s.TxSpeed)
	}
}

func (m *Monitor) publishAlerts(events []models.AlertEvent) {
	for _, ev := range events {
		metrics.AlertTransitions.WithLabelValues(string(ev.Kind)).Inc()
		m.pub.Publish(pubsub.AlertTopic(ev.Kind), ev.Alert)
	}
	metrics.AlertsActive.Set(float64(m.alerts.ActiveCount()))
}

// Latest returns the counters and speeds from the last successful tick.
func (m *Monitor) Latest() ([]models.InterfaceCounters, []models.SpeedSample, bool) {
	m.latestMu.RLock()
	defer m.latestMu.RUnlock()
	if m.latestStats == nil {
		return nil, nil, false
	}
	return append([]models.InterfaceCounters(nil), m.latestStats...),
		append([]models.SpeedSample(nil), m.latestSpeeds...), true
}

func (m *Monitor) SetThreshold(t models.AlertThreshold) error {
	t.Interface = strings.TrimSpace(t.Interface)
	if t.Interface == "" {
		return &models.ValidationError{Field: "interface", Reason: "is required"}
	}
	if invalidLimit(t.RxSpeedThreshold) {
		return &models.ValidationError{Field: "rx_speed_threshold", Reason: "must be a non-negative number"}
	}
	if invalidLimit(t.TxSpeedThreshold) {
		return &models.ValidationError{Field: "tx_speed_threshold", Reason: "must be a non-negative number"}
	}
	m.publishAlerts(m.alerts.SetThreshold(t))
	return nil
}

func invalidLimit(v float64) bool {
	return v < 0 || math.IsNaN(v) || math.IsInf(v, 0)
}

func (m *Monitor) Threshold(iface string) (models.AlertThreshold, bool) {
	return m.alerts.Threshold(iface)
}

func (m *Monitor) Thresholds() []models.AlertThreshold {
	return m.alerts.Thresholds()
}

// RemoveThreshold deletes the threshold and publishes a resolution for every
// alert it leaves behind.
func (m *Monitor) RemoveThreshold(iface string) error {
	if strings.TrimSpace(iface) == "" {
		return &models.ValidationError{Field: "interface", Reason: "is required"}
	}
	m.publishAlerts(m.alerts.RemoveThreshold(iface))
	return nil
}

func (m *Monitor) Alerts(includeResolved bool) []models.Alert {
	return m.alerts.Alerts(includeResolved)
}

func (m *Monitor) StatsHistory(iface string, d time.Duration) ([]models.InterfaceCounters, error) {
	if err := validateQuery(iface, d); err != nil {
		return nil, err
	}
	return m.history.QueryStats(iface, d), nil
}

func (m *Monitor) SpeedHistory(iface string, d time.Duration) ([]models.SpeedSample, error) {
	if err := validateQuery(iface, d); err != nil {
		return nil, err
	}
	return m.history.QuerySpeeds(iface, d), nil
}

func validateQuery(iface string, d time.Duration) error {
	if strings.TrimSpace(iface) == "" {
		return &models.ValidationError{Field: "interface", Reason: "is required"}
	}
	if d < 0 {
		return &models.ValidationError{Field: "duration", Reason: "must not be negative"}
	}
	return nil
}
