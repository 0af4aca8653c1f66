package db

import (
	"context"
	"log/slog"

	"netwatch/internal/models"
	"netwatch/internal/pubsub"
)

// Recorder writes every alert transition seen on the bus into the journal.
type Recorder struct {
	repo *Repository
	bus  *pubsub.Bus
	log  *slog.Logger
}

func NewRecorder(repo *Repository, bus *pubsub.Bus, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, bus: bus, log: logger}
}

func (r *Recorder) Run(ctx context.Context) error {
	sub := r.bus.Subscribe(0, pubsub.AlertTopics...)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.C():
			if !ok {
				return nil
			}
			r.record(ctx, msg)
		}
	}
}

func (r *Recorder) record(ctx context.Context, msg pubsub.Message) {
	kind, ok := pubsub.KindForTopic(msg.Topic)
	if !ok {
		return
	}
	a, ok := msg.Payload.(models.Alert)
	if !ok {
		r.log.Warn("unexpected alert payload", "topic", msg.Topic)
		return
	}
	entry := models.AlertJournalEntry{
		AlertID:   a.ID,
		Interface: a.Interface,
		Type:      a.Type,
		Event:     string(kind),
		Value:     a.Value,
		Threshold: a.Threshold,
		Message:   a.Message,
		TS:        msg.TS,
	}
	if _, err := r.repo.InsertAlertEvent(ctx, entry); err != nil {
		r.log.Error("journal alert event", "alert_id", a.ID, "err", err)
	}
}
