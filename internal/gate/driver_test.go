package gate

import (
	"context"
	"testing"

	"github.com/gmulz/viam-automated-gate/internal/hal"
)

func TestDriverDirectionConvention(t *testing.T) {
	motor := &hal.FakeMotor{}
	d := NewMotorDriver(motor, 0.8, 0.6)

	if err := d.Drive(context.Background(), DirectionOpen); err != nil {
		t.Fatalf("Drive open: %v", err)
	}
	if err := d.Drive(context.Background(), DirectionClose); err != nil {
		t.Fatalf("Drive close: %v", err)
	}
	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := []float64{-0.8, 0.6}
	if len(motor.PowerCalls) != len(want) {
		t.Fatalf("power calls = %v, want %v", motor.PowerCalls, want)
	}
	for i := range want {
		if motor.PowerCalls[i] != want[i] {
			t.Errorf("power call %d = %v, want %v", i, motor.PowerCalls[i], want[i])
		}
	}
	if motor.IsMoving() {
		t.Error("motor moving after stop")
	}
}

func TestDriverRejectsUnknownDirection(t *testing.T) {
	d := NewMotorDriver(&hal.FakeMotor{}, 1, 1)
	if err := d.Drive(context.Background(), Direction("sideways")); err == nil {
		t.Fatal("expected error for unknown direction")
	}
}
