package web

import (
	"time"

	"github.com/gmulz/viam-automated-gate/internal/status"
)

// StatusJSON is the JSON representation of the daemon status.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	State         string     `json:"state"`
	Position      float64    `json:"position"`
	Busy          bool       `json:"busy"`
	LastOp        string     `json:"last_op,omitempty"`
	LastReason    string     `json:"last_reason,omitempty"`
	LastOutcomeAt string     `json:"last_outcome_at,omitempty"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"operation_counts"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of operation counts.
type CountsJSON struct {
	Opened   int `json:"opened"`
	Closed   int `json:"closed"`
	TimedOut int `json:"timed_out"`
	Stopped  int `json:"stopped"`
	Busy     int `json:"busy"`
	Invalid  int `json:"invalid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Name           string `json:"name"`
	CloseTimeoutMs int64  `json:"close_timeout_ms"`
	PollMs         int64  `json:"poll_ms"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
}

func statusJSON(snap status.Snapshot) StatusJSON {
	state := string(snap.State)
	if state == "" {
		state = "unknown"
	}

	inner := StatusInner{
		State:         state,
		Position:      snap.Position,
		Busy:          snap.Busy,
		LastOp:        snap.LastOp,
		LastReason:    snap.LastReason,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Opened:   snap.Counts.Opened,
			Closed:   snap.Counts.Closed,
			TimedOut: snap.Counts.TimedOut,
			Stopped:  snap.Counts.Stopped,
			Busy:     snap.Counts.Busy,
			Invalid:  snap.Counts.Invalid,
		},
		Config: ConfigJSON{
			Name:           snap.Config.Name,
			CloseTimeoutMs: snap.Config.CloseTimeoutMs,
			PollMs:         snap.Config.PollMs,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}
	if !snap.LastOutcomeAt.IsZero() {
		inner.LastOutcomeAt = snap.LastOutcomeAt.UTC().Format(time.RFC3339)
	}
	return StatusJSON{Status: inner}
}
