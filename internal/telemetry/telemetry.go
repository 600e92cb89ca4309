// Package telemetry records gate position samples and operation outcomes to
// InfluxDB for trending. Telemetry is optional and strictly best-effort: a
// write failure never affects gate control.
package telemetry

import (
	"time"

	"github.com/gmulz/viam-automated-gate/internal/gate"
)

// Recorder accepts telemetry points.
type Recorder interface {
	// RecordPosition writes one position sample.
	RecordPosition(sample gate.Sample)

	// RecordOutcome writes one completed operation.
	RecordOutcome(op string, o gate.Outcome)

	// Close flushes and releases the recorder.
	Close()
}

// Noop discards all telemetry. Used when Influx is not configured.
type Noop struct{}

// RecordPosition discards the sample.
func (Noop) RecordPosition(sample gate.Sample) {}

// RecordOutcome discards the outcome.
func (Noop) RecordOutcome(op string, o gate.Outcome) {}

// Close does nothing.
func (Noop) Close() {}

// FakeRecorder captures telemetry for test assertions.
type FakeRecorder struct {
	Positions []gate.Sample
	Outcomes  []RecordedOutcome
	Closed    bool
}

// RecordedOutcome pairs an operation name with its outcome.
type RecordedOutcome struct {
	Op      string
	Outcome gate.Outcome
}

// RecordPosition captures the sample.
func (f *FakeRecorder) RecordPosition(sample gate.Sample) {
	f.Positions = append(f.Positions, sample)
}

// RecordOutcome captures the outcome.
func (f *FakeRecorder) RecordOutcome(op string, o gate.Outcome) {
	f.Outcomes = append(f.Outcomes, RecordedOutcome{Op: op, Outcome: o})
}

// Close marks the recorder closed.
func (f *FakeRecorder) Close() { f.Closed = true }

// durationMs converts a duration to whole milliseconds for field values.
func durationMs(d time.Duration) int64 {
	return d.Milliseconds()
}
