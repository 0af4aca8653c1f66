package pubsub

import "netwatch/internal/models"

// Topic names match the event names dashboard clients already listen for.
const (
	TopicRawStats      = "network-stats"
	TopicSpeeds        = "network-speeds"
	TopicAlertRaised   = "alert"
	TopicAlertUpdated  = "alert-update"
	TopicAlertResolved = "alert-resolved"
	TopicStatus        = "monitoring-status"
	TopicWelcome       = "welcome"
	TopicError         = "error"
)

// AlertTopic maps an alert transition to the topic it is published on.
func AlertTopic(kind models.AlertEventKind) string {
	switch kind {
	case models.AlertRaised:
		return TopicAlertRaised
	case models.AlertUpdated:
		return TopicAlertUpdated
	default:
		return TopicAlertResolved
	}
}

// AlertTopics lists every topic that carries a models.Alert payload.
var AlertTopics = []string{TopicAlertRaised, TopicAlertUpdated, TopicAlertResolved}

// KindForTopic is the inverse of AlertTopic.
func KindForTopic(topic string) (models.AlertEventKind, bool) {
	switch topic {
	case TopicAlertRaised:
		return models.AlertRaised, true
	case TopicAlertUpdated:
		return models.AlertUpdated, true
	case TopicAlertResolved:
		return models.AlertResolved, true
	}
	return "", false
}
