package alerts

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"netwatch/internal/models"
)

type alertKey struct {
	iface string
	typ   models.AlertType
}

// Engine evaluates speed samples against per-interface thresholds. At most
// one unresolved alert exists per interface and direction; resolved alerts
// stay in the log.
type Engine struct {
	clock clock.Clock
	log   *slog.Logger
	newID func() string

	mu         sync.RWMutex
	thresholds map[string]models.AlertThreshold
	active     map[alertKey]*models.Alert
	all        []*models.Alert
}

func NewEngine(logger *slog.Logger, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	return &Engine{
		clock:      clk,
		log:        logger,
		newID:      uuid.NewString,
		thresholds: map[string]models.AlertThreshold{},
		active:     map[alertKey]*models.Alert{},
	}
}

// SetThreshold stores t, replacing any previous threshold for the interface.
// Disabling a threshold resolves the interface's active alerts, since Evaluate
// no longer looks at it.
func (e *Engine) SetThreshold(t models.AlertThreshold) []models.AlertEvent {
	now := e.clock.Now()
	e.mu.Lock()
	e.thresholds[t.Interface] = t
	var events []models.AlertEvent
	if !t.Enabled {
		events = e.resolveInterface(t.Interface, now)
	}
	e.mu.Unlock()
	e.log.Info("threshold set",
		"interface", t.Interface,
		"rx_limit", t.RxSpeedThreshold,
		"tx_limit", t.TxSpeedThreshold,
		"enabled", t.Enabled,
		"resolved", len(events),
	)
	return events
}

func (e *Engine) Threshold(iface string) (models.AlertThreshold, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.thresholds[iface]
	return t, ok
}

func (e *Engine) Thresholds() []models.AlertThreshold {
	e.mu.RLock()
	out := make([]models.AlertThreshold, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		out = append(out, t)
	}
	e.mu.RUnlock()
	slices.SortFunc(out, func(a, b models.AlertThreshold) int {
		return strings.Compare(a.Interface, b.Interface)
	})
	return out
}

// RemoveThreshold deletes the interface's threshold and resolves its active
// alerts, since Evaluate skips interfaces without a threshold and would never
// close them.
func (e *Engine) RemoveThreshold(iface string) []models.AlertEvent {
	now := e.clock.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	_, had := e.thresholds[iface]
	delete(e.thresholds, iface)
	events := e.resolveInterface(iface, now)
	if had {
		e.log.Info("threshold removed", "interface", iface, "resolved", len(events))
	}
	return events
}

// Evaluate checks every sample in both directions and returns the resulting
// transitions in order. Equal to the limit is not a breach.
func (e *Engine) Evaluate(samples []models.SpeedSample) []models.AlertEvent {
	now := e.clock.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	var events []models.AlertEvent
	for _, s := range samples {
		t, ok := e.thresholds[s.Interface]
		if !ok || !t.Enabled {
			continue
		}
		events = e.check(events, s, models.AlertRxSpeed, s.RxSpeed, t.RxSpeedThreshold, now)
		events = e.check(events, s, models.AlertTxSpeed, s.TxSpeed, t.TxSpeedThreshold, now)
	}
	return events
}

func (e *Engine) check(events []models.AlertEvent, s models.SpeedSample, typ models.AlertType, value, limit float64, now time.Time) []models.AlertEvent {
	key := alertKey{iface: s.Interface, typ: typ}
	if !breached(value, limit) {
		if ev, ok := e.resolve(key, now); ok {
			events = append(events, ev)
		}
		return events
	}
	if a, ok := e.active[key]; ok {
		a.Value = value
		a.Threshold = limit
		a.Timestamp = s.Timestamp
		a.Message = message(s.Interface, typ, value, limit)
		e.log.Debug("alert updated", "id", a.ID, "interface", a.Interface, "type", a.Type, "value", value)
		return append(events, models.AlertEvent{Kind: models.AlertUpdated, Alert: *a})
	}
	a := &models.Alert{
		ID:        e.newID(),
		Interface: s.Interface,
		Timestamp: s.Timestamp,
		Type:      typ,
		Value:     value,
		Threshold: limit,
		Message:   message(s.Interface, typ, value, limit),
	}
	e.all = append(e.all, a)
	e.active[key] = a
	e.log.Warn("alert raised", "id", a.ID, "interface", a.Interface, "type", a.Type, "msg", a.Message)
	return append(events, models.AlertEvent{Kind: models.AlertRaised, Alert: *a})
}

func (e *Engine) resolveInterface(iface string, now time.Time) []models.AlertEvent {
	var events []models.AlertEvent
	for _, typ := range []models.AlertType{models.AlertRxSpeed, models.AlertTxSpeed} {
		if ev, ok := e.resolve(alertKey{iface: iface, typ: typ}, now); ok {
			events = append(events, ev)
		}
	}
	return events
}

func (e *Engine) resolve(key alertKey, now time.Time) (models.AlertEvent, bool) {
	a, ok := e.active[key]
	if !ok {
		return models.AlertEvent{}, false
	}
	at := now
	a.Resolved = true
	a.ResolvedAt = &at
	delete(e.active, key)
	e.log.Info("alert resolved", "id", a.ID, "interface", a.Interface, "type", a.Type)
	return models.AlertEvent{Kind: models.AlertResolved, Alert: *a}, true
}

// Alerts returns copies of the log in append order. Without includeResolved
// only open alerts are returned.
func (e *Engine) Alerts(includeResolved bool) []models.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.Alert, 0, len(e.all))
	for _, a := range e.all {
		if !includeResolved && a.Resolved {
			continue
		}
		out = append(out, *a)
	}
	return out
}

func (e *Engine) ActiveCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.active)
}

func breached(value, limit float64) bool {
	return value > limit
}

func message(iface string, typ models.AlertType, value, limit float64) string {
	dir := "receive"
	if typ == models.AlertTxSpeed {
		dir = "transmit"
	}
	return fmt.Sprintf("%s %s rate %.2f KB/s exceeds threshold %.2f KB/s", iface, dir, value/1024, limit/1024)
}
