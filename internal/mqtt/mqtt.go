// Package mqtt provides MQTT command intake and event publishing with
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/gmulz/viam-automated-gate/internal/gate"
)

// Topics holds the topic names derived from a configured prefix.
type Topics struct {
	Command  string // inbound command payloads
	Response string // command responses
	Events   string // operation outcome events
	System   string // lifecycle events
}

// TopicsFor derives the topic set for a prefix, e.g. "gate/front".
func TopicsFor(prefix string) Topics {
	return Topics{
		Command:  prefix + "/command",
		Response: prefix + "/response",
		Events:   prefix + "/events",
		System:   prefix + "/system",
	}
}

// Publisher publishes gate events to MQTT.
type Publisher interface {
	// PublishEvent sends an operation outcome event to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishEvent(event Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Event represents a finished gate operation.
type Event struct {
	Timestamp time.Time
	Op        string // "open", "close", "stop"
	Status    string // final state, or "stopped"
	Position  float64
	Reason    string
	Source    string // "mqtt", "http", "trigger"
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp time.Time
	Event     string // e.g., "STARTUP", "SHUTDOWN"
	Reason    string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	Retained  bool   // Whether the message should be retained by the broker
}

// EventFromOutcome builds the event for a finished operation.
func EventFromOutcome(op, source string, finished time.Time, o gate.Outcome) Event {
	status := string(o.FinalState)
	if o.Reason == gate.ReasonStopped {
		status = "stopped"
	}
	return Event{
		Timestamp: finished,
		Op:        op,
		Status:    status,
		Position:  o.Position,
		Reason:    string(o.Reason),
		Source:    source,
	}
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Gate GatePayload `json:"gate"`
}

// GatePayload contains the operation event details.
type GatePayload struct {
	Timestamp string  `json:"timestamp"`
	Op        string  `json:"op"`
	Status    string  `json:"status"`
	Position  float64 `json:"position"`
	Reason    string  `json:"reason"`
	Source    string  `json:"source"`
}

// FormatPayload creates the JSON payload for an operation event.
func FormatPayload(event Event) ([]byte, error) {
	payload := Payload{
		Gate: GatePayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Op:        event.Op,
			Status:    event.Status,
			Position:  event.Position,
			Reason:    event.Reason,
			Source:    event.Source,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
