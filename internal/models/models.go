package models

import "time"

type InterfaceCounters struct {
	Interface string    `json:"interface"`
	Timestamp time.Time `json:"timestamp"`
	RxBytes   uint64    `json:"rx_bytes"`
	TxBytes   uint64    `json:"tx_bytes"`
	RxPackets uint64    `json:"rx_packets"`
	TxPackets uint64    `json:"tx_packets"`
	RxErrors  uint64    `json:"rx_errors"`
	TxErrors  uint64    `json:"tx_errors"`
	// Nil when no previous reading exists to measure against.
	RxSec *float64 `json:"rx_sec"`
	TxSec *float64 `json:"tx_sec"`
}

func (c InterfaceCounters) Stamp() time.Time { return c.Timestamp }

type SpeedSample struct {
	Interface string    `json:"interface"`
	Timestamp time.Time `json:"timestamp"`
	RxSpeed   float64   `json:"rx_speed"`
	TxSpeed   float64   `json:"tx_speed"`
}

func (s SpeedSample) Stamp() time.Time { return s.Timestamp }

// StatsDelta is the counter change across a window of consecutive samples.
type StatsDelta struct {
	Timestamp time.Time `json:"timestamp"`
	RxBytes   uint64    `json:"rx_bytes"`
	TxBytes   uint64    `json:"tx_bytes"`
	RxPackets uint64    `json:"rx_packets"`
	TxPackets uint64    `json:"tx_packets"`
}

type NetworkInterface struct {
	Name string `json:"name"`
	IP   string `json:"ip"`
	MAC  string `json:"mac"`
	IsUp bool   `json:"isUp"`
}

type AlertThreshold struct {
	Interface        string  `json:"interface"`
	RxSpeedThreshold float64 `json:"rx_speed_threshold"`
	TxSpeedThreshold float64 `json:"tx_speed_threshold"`
	Enabled          bool    `json:"enabled"`
}

type AlertType string

const (
	AlertRxSpeed AlertType = "rx_speed"
	AlertTxSpeed AlertType = "tx_speed"
)

type Alert struct {
	ID         string     `json:"id"`
	Interface  string     `json:"interface"`
	Timestamp  time.Time  `json:"timestamp"`
	Type       AlertType  `json:"type"`
	Value      float64    `json:"value"`
	Threshold  float64    `json:"threshold"`
	Message    string     `json:"message"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

type AlertEventKind string

const (
	AlertRaised   AlertEventKind = "raised"
	AlertUpdated  AlertEventKind = "updated"
	AlertResolved AlertEventKind = "resolved"
)

// AlertEvent carries a copy of the alert as it was at the transition.
type AlertEvent struct {
	Kind  AlertEventKind `json:"kind"`
	Alert Alert          `json:"alert"`
}

type MonitorState string

const (
	MonitorStarted MonitorState = "started"
	MonitorStopped MonitorState = "stopped"
)

type MonitorStatus struct {
	Status   MonitorState `json:"status"`
	Interval int64        `json:"interval,omitempty"`
}

// AlertJournalEntry is one recorded alert transition.
type AlertJournalEntry struct {
	ID        int64     `json:"id"`
	AlertID   string    `json:"alert_id"`
	Interface string    `json:"interface"`
	Type      AlertType `json:"type"`
	Event     string    `json:"event"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Message   string    `json:"message"`
	TS        time.Time `json:"ts"`
}

type NotificationEvent struct {
	ID        int64      `json:"id"`
	AlertID   string     `json:"alert_id"`
	Channel   string     `json:"channel"`
	Status    string     `json:"status"`
	Attempts  int        `json:"attempts"`
	LastError string     `json:"last_error,omitempty"`
	SentTS    *time.Time `json:"sent_ts,omitempty"`
}
