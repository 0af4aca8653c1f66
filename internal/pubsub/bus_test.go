package pubsub

import (
	"io"
	"log/slog"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netwatch/internal/models"
)

func newTestBus() *Bus {
	return NewBus(4, slog.New(slog.NewTextHandler(io.Discard, nil)), clock.NewMock())
}

func TestBusDeliversByTopic(t *testing.T) {
	b := newTestBus()
	all := b.Subscribe(8)
	alertsOnly := b.Subscribe(8, TopicAlertRaised, TopicAlertResolved)

	b.Publish(TopicRawStats, "stats")
	b.Publish(TopicAlertRaised, "raised")

	require.Len(t, all.C(), 2)
	assert.Equal(t, TopicRawStats, (<-all.C()).Topic)
	assert.Equal(t, "raised", (<-all.C()).Payload)

	require.Len(t, alertsOnly.C(), 1)
	assert.Equal(t, TopicAlertRaised, (<-alertsOnly.C()).Topic)
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	b := newTestBus()
	s := b.Subscribe(1)
	b.Publish(TopicSpeeds, 1)
	b.Publish(TopicSpeeds, 2)

	require.Len(t, s.C(), 1)
	assert.Equal(t, 1, (<-s.C()).Payload)
}

func TestSubscriptionClose(t *testing.T) {
	b := newTestBus()
	s := b.Subscribe(1)
	require.Equal(t, 1, b.Subscribers())

	s.Close()
	s.Close()
	assert.Zero(t, b.Subscribers())
	_, ok := <-s.C()
	assert.False(t, ok)

	// Publishing after the subscriber left must not panic.
	b.Publish(TopicSpeeds, 1)
}

func TestBusClose(t *testing.T) {
	b := newTestBus()
	s := b.Subscribe(1)
	b.Close()
	_, ok := <-s.C()
	assert.False(t, ok)

	b.Publish(TopicSpeeds, 1)
	late := b.Subscribe(1)
	_, ok = <-late.C()
	assert.False(t, ok)
	late.Close()
}

func TestAlertTopic(t *testing.T) {
	assert.Equal(t, TopicAlertRaised, AlertTopic(models.AlertRaised))
	assert.Equal(t, TopicAlertUpdated, AlertTopic(models.AlertUpdated))
	assert.Equal(t, TopicAlertResolved, AlertTopic(models.AlertResolved))
}

func TestSubscribeUsesBusDefaultBuffer(t *testing.T) {
	b := newTestBus()
	s := b.Subscribe(0)
	assert.Equal(t, 4, cap(s.C()))
}

func TestKindForTopic(t *testing.T) {
	for _, topic := range AlertTopics {
		kind, ok := KindForTopic(topic)
		require.True(t, ok, topic)
		assert.Equal(t, topic, AlertTopic(kind))
	}
	_, ok := KindForTopic(TopicSpeeds)
	assert.False(t, ok)
}
