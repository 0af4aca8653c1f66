package notifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"netwatch/internal/db"
	"netwatch/internal/models"
	"netwatch/internal/pubsub"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestTelegramSendPostsToBotAPI(t *testing.T) {
	var gotURL, gotBody string
	n := NewTelegram("token", "chat")
	n.HTTP = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		b, _ := io.ReadAll(req.Body)
		gotBody = string(b)
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`{"ok":true}`))}, nil
	})}

	if err := n.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotURL != "https://api.telegram.org/bottoken/sendMessage" {
		t.Fatalf("unexpected url %q", gotURL)
	}
	if !strings.Contains(gotBody, `"chat_id":"chat"`) || !strings.Contains(gotBody, `"text":"hello"`) {
		t.Fatalf("unexpected body %s", gotBody)
	}
}

func TestTelegramSendReportsStatus(t *testing.T) {
	n := NewTelegram("token", "chat")
	n.HTTP = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusBadGateway, Body: io.NopCloser(strings.NewReader("bad gateway"))}, nil
	})}
	err := n.Send(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status error, got %v", err)
	}
	if err := NewTelegram("", "").Send(context.Background(), "x"); err == nil {
		t.Fatalf("expected error for unconfigured telegram")
	}
}

type flakySender struct {
	mu       sync.Mutex
	failures int
	calls    int
	msgs     []string
}

func (f *flakySender) Name() string  { return "test" }
func (f *flakySender) Enabled() bool { return true }

func (f *flakySender) Send(_ context.Context, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.msgs = append(f.msgs, msg)
	if f.calls <= f.failures {
		return errors.New("upstream unavailable")
	}
	return nil
}

func newTestDispatcher(t *testing.T, sender Sender) (*Dispatcher, *db.Repository) {
	t.Helper()
	sqldb, err := db.Open(strings.ReplaceAll(t.Name(), "/", "_"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })
	if err := db.Migrate(sqldb); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	repo := db.NewRepository(sqldb)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDispatcher(sender, repo, pubsub.NewBus(16, logger, nil), 3, logger, nil)
	d.backoff = 0
	return d, repo
}

func TestDeliverRetriesUntilSent(t *testing.T) {
	sender := &flakySender{failures: 2}
	d, repo := newTestDispatcher(t, sender)

	d.deliver(context.Background(), "a1", "hello")

	events, err := repo.RecentNotificationEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent notifications: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events len = %d, want 1", len(events))
	}
	if events[0].Status != "sent" || events[0].Attempts != 3 || events[0].SentTS == nil {
		t.Fatalf("unexpected event: %#v", events[0])
	}
}

func TestDeliverRecordsFailureAfterAllAttempts(t *testing.T) {
	sender := &flakySender{failures: 10}
	d, repo := newTestDispatcher(t, sender)

	d.deliver(context.Background(), "a1", "hello")

	if sender.calls != 3 {
		t.Fatalf("send calls = %d, want 3", sender.calls)
	}
	events, err := repo.RecentNotificationEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent notifications: %v", err)
	}
	if len(events) != 1 || events[0].Status != "failed" || events[0].LastError != "upstream unavailable" {
		t.Fatalf("unexpected events: %#v", events)
	}
}

func TestRunSendsRaisedAndResolvedOnly(t *testing.T) {
	sender := &flakySender{}
	d, repo := newTestDispatcher(t, sender)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()
	waitFor(t, func() bool { return d.bus.Subscribers() == 1 })

	a := models.Alert{ID: "a1", Interface: "eth0", Type: models.AlertRxSpeed, Value: 1500, Threshold: 1024, Message: "eth0 receive rate 1.46 KB/s exceeds threshold 1.00 KB/s"}
	d.bus.Publish(pubsub.TopicAlertRaised, a)
	d.bus.Publish(pubsub.TopicAlertUpdated, a)
	d.bus.Publish(pubsub.TopicAlertResolved, a)

	waitFor(t, func() bool {
		events, err := repo.RecentNotificationEvents(context.Background(), 10)
		return err == nil && len(events) == 2
	})
	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(sender.msgs))
	}
	if sender.msgs[0] != "[netwatch] ALERT eth0 receive rate 1.46 KB/s exceeds threshold 1.00 KB/s" {
		t.Fatalf("unexpected raised text %q", sender.msgs[0])
	}
	if sender.msgs[1] != "[netwatch] RESOLVED eth0 receive rate back under 1.00 KB/s" {
		t.Fatalf("unexpected resolved text %q", sender.msgs[1])
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
