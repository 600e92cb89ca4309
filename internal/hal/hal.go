// Package hal provides the hardware abstraction for the gate: the board the
// motor is wired to, the motor itself, and the sensors consulted by the
// control loop. The real implementations use the Linux GPIO character device
// and sysfs IIO; the fake implementations allow testing without hardware.
package hal

import "context"

// Motor drives the gate motor at a signed power level.
type Motor interface {
	// SetPower runs the motor at the given power in [-1, 1].
	// Positive power drives the gate toward closed, negative toward open.
	SetPower(ctx context.Context, power float64) error

	// Stop halts the motor. Safe to call when already stopped.
	Stop(ctx context.Context) error

	// IsMoving reports whether the motor is currently powered.
	IsMoving() bool
}

// Sensor reports named readings. Implementations must tolerate concurrent
// calls to Readings; the control loop and the trigger loop both poll.
type Sensor interface {
	// Readings returns the current readings keyed by name.
	Readings(ctx context.Context) (map[string]any, error)
}

// Board represents the physical board the motor and sensors are attached to.
// The control logic only needs it for wiring and cleanup.
type Board interface {
	// Name identifies the board (e.g. the gpiochip device).
	Name() string

	// Close releases board resources.
	Close() error
}
