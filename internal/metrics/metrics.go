package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "netwatch"

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Monitor ticks by result (ok, source_error, skipped)",
		},
		[]string{"result"},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of completed monitor ticks",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)

	InterfacesSampled = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "interfaces_sampled",
			Help:      "Interfaces returned by the last successful sample",
		},
	)

	InterfaceRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "interface_bytes_per_second",
			Help:      "Last derived throughput per interface and direction",
		},
		[]string{"interface", "direction"},
	)

	AlertsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alerts_active",
			Help:      "Unresolved alerts",
		},
	)

	AlertTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_transitions_total",
			Help:      "Alert transitions by kind (raised, updated, resolved)",
		},
		[]string{"kind"},
	)

	HistoryEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_entries",
			Help:      "Retained history entries after the last eviction",
		},
	)

	HistoryEvicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_evicted_total",
			Help:      "History entries removed by eviction",
		},
	)

	BusDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_dropped_total",
			Help:      "Messages dropped because a subscriber buffer was full",
		},
		[]string{"topic"},
	)

	WSClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients",
		},
	)

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by channel and status",
		},
		[]string{"channel", "status"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		TickDuration,
		InterfacesSampled,
		InterfaceRate,
		AlertsActive,
		AlertTransitions,
		HistoryEntries,
		HistoryEvicted,
		BusDropped,
		WSClients,
		Notifications,
		HTTPRequests,
		HTTPDuration,
	)
}
