package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"netwatch/internal/metrics"
	"netwatch/internal/models"
	"netwatch/internal/pubsub"
)

const defaultBackoff = 300 * time.Millisecond

type Sender interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, msg string) error
}

// Journal records the outcome of each delivery.
type Journal interface {
	InsertNotificationEvent(ctx context.Context, alertID, channel, status string, attempts int, lastErr string, sent *time.Time) error
}

// Dispatcher turns raised and resolved alerts into outbound messages.
// Updates are not sent; they would repeat every tick while a breach lasts.
type Dispatcher struct {
	sender   Sender
	journal  Journal
	bus      *pubsub.Bus
	clock    clock.Clock
	log      *slog.Logger
	attempts int
	backoff  time.Duration
}

func NewDispatcher(sender Sender, journal Journal, bus *pubsub.Bus, attempts int, logger *slog.Logger, clk clock.Clock) *Dispatcher {
	if attempts <= 0 {
		attempts = 3
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Dispatcher{
		sender:   sender,
		journal:  journal,
		bus:      bus,
		clock:    clk,
		log:      logger,
		attempts: attempts,
		backoff:  defaultBackoff,
	}
}

func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.sender.Enabled() {
		d.log.Info("notifications disabled", "channel", d.sender.Name())
		<-ctx.Done()
		return nil
	}
	sub := d.bus.Subscribe(0, pubsub.TopicAlertRaised, pubsub.TopicAlertResolved)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.C():
			if !ok {
				return nil
			}
			a, ok := msg.Payload.(models.Alert)
			if !ok {
				d.log.Warn("unexpected alert payload", "topic", msg.Topic)
				continue
			}
			kind, _ := pubsub.KindForTopic(msg.Topic)
			d.deliver(ctx, a.ID, text(kind, a))
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, alertID, msg string) {
	channel := d.sender.Name()
	attempts := 0
	var err error
	for attempts < d.attempts {
		attempts++
		err = d.sender.Send(ctx, msg)
		if err == nil {
			now := d.clock.Now().UTC()
			d.record(ctx, alertID, channel, "sent", attempts, "", &now)
			return
		}
		if attempts == d.attempts || !d.wait(ctx, time.Duration(attempts)*d.backoff) {
			break
		}
	}
	d.record(ctx, alertID, channel, "failed", attempts, err.Error(), nil)
	d.log.Warn("notify failed", "alert_id", alertID, "attempts", attempts, "err", err)
}

func (d *Dispatcher) wait(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-d.clock.After(delay):
		return true
	}
}

func (d *Dispatcher) record(ctx context.Context, alertID, channel, status string, attempts int, lastErr string, sent *time.Time) {
	metrics.Notifications.WithLabelValues(channel, status).Inc()
	// The run context may already be canceled; the journal write should still land.
	if err := d.journal.InsertNotificationEvent(context.WithoutCancel(ctx), alertID, channel, status, attempts, lastErr, sent); err != nil {
		d.log.Error("journal notification", "alert_id", alertID, "err", err)
	}
}

func text(kind models.AlertEventKind, a models.Alert) string {
	if kind == models.AlertResolved {
		return fmt.Sprintf("[netwatch] RESOLVED %s %s rate back under %.2f KB/s", a.Interface, direction(a.Type), a.Threshold/1024)
	}
	return fmt.Sprintf("[netwatch] ALERT %s", a.Message)
}

func direction(t models.AlertType) string {
	if t == models.AlertTxSpeed {
		return "transmit"
	}
	return "receive"
}
