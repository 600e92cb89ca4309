// Package status provides a thread-safe status tracker for the gate daemon.
// It is read by the HTTP handlers and refreshed by the monitor loop and the
// command dispatcher.
package status

import (
	"sync"
	"time"

	"github.com/gmulz/viam-automated-gate/internal/gate"
)

// Config contains daemon configuration for display.
type Config struct {
	Name           string
	CloseTimeoutMs int64
	PollMs         int64
	Broker         string
	HTTPAddr       string
}

// Counts tracks completed operations by outcome since startup.
type Counts struct {
	Opened   int
	Closed   int
	TimedOut int
	Stopped  int
	Busy     int
	Invalid  int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State         gate.State
	Position      float64
	Busy          bool
	LastOp        string
	LastReason    string
	LastOutcomeAt time.Time
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			State:     gate.StateUnknown,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetLive updates the sensor-derived state. Called from the monitor loop.
func (t *Tracker) SetLive(state gate.State, position float64, busy bool) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.Position = position
	t.snap.Busy = busy
	t.mu.Unlock()
}

// RecordOutcome counts a completed drive operation.
func (t *Tracker) RecordOutcome(op string, o gate.Outcome) {
	t.mu.Lock()
	switch o.Reason {
	case gate.ReasonReachedTarget:
		if op == "open" {
			t.snap.Counts.Opened++
		} else {
			t.snap.Counts.Closed++
		}
	case gate.ReasonTimedOut:
		t.snap.Counts.TimedOut++
	case gate.ReasonStopped:
		t.snap.Counts.Stopped++
	}
	t.snap.LastOp = op
	t.snap.LastReason = string(o.Reason)
	t.snap.LastOutcomeAt = time.Now()
	t.mu.Unlock()
}

// RecordBusy counts a motion command rejected because one was in flight.
func (t *Tracker) RecordBusy() {
	t.mu.Lock()
	t.snap.Counts.Busy++
	t.mu.Unlock()
}

// RecordInvalid counts an unrecognized command.
func (t *Tracker) RecordInvalid() {
	t.mu.Lock()
	t.snap.Counts.Invalid++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
