package pubsub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"netwatch/internal/metrics"
)

type Message struct {
	Topic   string    `json:"topic"`
	Payload any       `json:"payload"`
	TS      time.Time `json:"ts"`
}

// Bus is an in-process fan-out. Publish never blocks: a subscriber whose
// buffer is full loses the message.
type Bus struct {
	clock  clock.Clock
	log    *slog.Logger
	buffer int

	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

type Subscription struct {
	bus    *Bus
	ch     chan Message
	topics map[string]struct{}
	once   sync.Once
}

// NewBus returns a bus whose subscriptions default to buffer slots each.
func NewBus(buffer int, logger *slog.Logger, clk clock.Clock) *Bus {
	if buffer <= 0 {
		buffer = 1
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Bus{clock: clk, log: logger, buffer: buffer, subs: map[*Subscription]struct{}{}}
}

// Subscribe registers a subscription. A non-positive buffer takes the bus
// default; no topics means every topic.
func (b *Bus) Subscribe(buffer int, topics ...string) *Subscription {
	if buffer <= 0 {
		buffer = b.buffer
	}
	s := &Subscription{bus: b, ch: make(chan Message, buffer)}
	if len(topics) > 0 {
		s.topics = make(map[string]struct{}, len(topics))
		for _, t := range topics {
			s.topics[t] = struct{}{}
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

func (b *Bus) Publish(topic string, payload any) {
	msg := Message{Topic: topic, Payload: payload, TS: b.clock.Now()}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		if !s.wants(topic) {
			continue
		}
		select {
		case s.ch <- msg:
		default:
			metrics.BusDropped.WithLabelValues(topic).Inc()
			b.log.Warn("subscriber buffer full, message dropped", "topic", topic)
		}
	}
}

// Close ends every subscription. Later publishes are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.once.Do(func() { close(s.ch) })
		delete(b.subs, s)
	}
}

func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (s *Subscription) C() <-chan Message { return s.ch }

func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs, s)
	s.once.Do(func() { close(s.ch) })
}

func (s *Subscription) wants(topic string) bool {
	if s.topics == nil {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}
