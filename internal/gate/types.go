// Package gate contains the gate control engine: position classification,
// trigger matching, the motor drive wrapper, and the controller that runs
// one timeout-bounded drive operation at a time.
package gate

import (
	"errors"
	"fmt"
	"time"
)

// State is the observable gate state, always derived from the position sensor.
type State string

const (
	StateOpen    State = "open"
	StateClosed  State = "closed"
	StateUnknown State = "unknown"
)

// Direction selects which way the motor drives the gate.
type Direction string

const (
	// DirectionOpen drives the motor in reverse (negative power).
	DirectionOpen Direction = "open"
	// DirectionClose drives the motor forward (positive power).
	DirectionClose Direction = "close"
)

// Reason explains why a drive operation ended.
type Reason string

const (
	// ReasonReachedTarget means the position sensor entered the target range.
	ReasonReachedTarget Reason = "reached_target"
	// ReasonTimedOut means the operation deadline expired before the target
	// was reached. The motor is stopped regardless.
	ReasonTimedOut Reason = "timed_out"
	// ReasonStopped means the operation was cancelled by an explicit Stop
	// or by service shutdown.
	ReasonStopped Reason = "stopped"
)

// ErrBusy is returned by Open and Close when another drive operation is
// already in flight. Motion commands are rejected, never queued.
var ErrBusy = errors.New("gate: operation already in progress")

// Range is an inclusive position interval.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Validate checks that the range is well-formed.
func (r Range) Validate() error {
	if r.Min > r.Max {
		return fmt.Errorf("range min %v greater than max %v", r.Min, r.Max)
	}
	return nil
}

// Overlaps reports whether two ranges share any value.
func (r Range) Overlaps(o Range) bool {
	return r.Min <= o.Max && o.Min <= r.Max
}

// Sample is one position reading with its classification.
type Sample struct {
	Value float64
	State State
}

// Outcome is the result of a completed drive operation.
type Outcome struct {
	// FinalState is the sensor-derived state when the operation ended.
	FinalState State

	// Reason explains how the operation ended.
	Reason Reason

	// Position is the last position value observed during the operation.
	Position float64

	// Duration is how long the operation ran.
	Duration time.Duration
}
