package gate

import (
	"context"
	"fmt"

	"github.com/gmulz/viam-automated-gate/internal/hal"
)

// MotorDriver wraps the motor with the direction and power conventions of
// the gate: close drives forward (positive power), open drives in reverse
// (negative power).
type MotorDriver struct {
	motor      hal.Motor
	openPower  float64
	closePower float64
}

// NewMotorDriver creates a driver using the given per-direction power levels,
// each in [0, 1].
func NewMotorDriver(motor hal.Motor, openPower, closePower float64) *MotorDriver {
	return &MotorDriver{motor: motor, openPower: openPower, closePower: closePower}
}

// Drive starts the motor in the given direction at its configured power.
func (d *MotorDriver) Drive(ctx context.Context, dir Direction) error {
	var power float64
	switch dir {
	case DirectionOpen:
		power = -d.openPower
	case DirectionClose:
		power = d.closePower
	default:
		return fmt.Errorf("unknown direction %q", dir)
	}
	if err := d.motor.SetPower(ctx, power); err != nil {
		return fmt.Errorf("set motor power: %w", err)
	}
	return nil
}

// Stop halts the motor. Safe to call when already stopped.
func (d *MotorDriver) Stop(ctx context.Context) error {
	if err := d.motor.Stop(ctx); err != nil {
		return fmt.Errorf("stop motor: %w", err)
	}
	return nil
}

// Moving reports whether the motor is currently powered.
func (d *MotorDriver) Moving() bool {
	return d.motor.IsMoving()
}
