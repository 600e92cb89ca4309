package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/gmulz/viam-automated-gate/internal/hal"
)

func testReader(sensor hal.Sensor) *PositionReader {
	return NewPositionReader(sensor, "position", Range{Min: 0, Max: 50}, Range{Min: 950, Max: 1023})
}

func TestClassify(t *testing.T) {
	r := testReader(nil)

	tests := []struct {
		value float64
		want  State
	}{
		{0, StateOpen},
		{30, StateOpen},
		{50, StateOpen},
		{50.1, StateUnknown},
		{500, StateUnknown},
		{949.9, StateUnknown},
		{950, StateClosed},
		{1000, StateClosed},
		{1023, StateClosed},
		{1024, StateUnknown},
		{-1, StateUnknown},
	}
	for _, tt := range tests {
		if got := r.Classify(tt.value); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.value, got, tt.want)
		}
	}
}

func TestClassifyOpenPrecedence(t *testing.T) {
	// Overlapping ranges are rejected at config time, but if a value
	// matches both the open classification wins.
	r := NewPositionReader(nil, "position", Range{Min: 0, Max: 100}, Range{Min: 50, Max: 200})
	if got := r.Classify(75); got != StateOpen {
		t.Errorf("Classify(75) = %s, want %s", got, StateOpen)
	}
}

func TestSampleClassifiesReading(t *testing.T) {
	sensor := hal.NewFakeSensor(map[string]any{"position": 1000.0})
	r := testReader(sensor)

	s, err := r.Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if s.Value != 1000 {
		t.Errorf("value = %v, want 1000", s.Value)
	}
	if s.State != StateClosed {
		t.Errorf("state = %s, want %s", s.State, StateClosed)
	}
}

func TestSampleNumericCoercion(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want float64
	}{
		{"float64", 30.0, 30},
		{"float32", float32(30), 30},
		{"int", 30, 30},
		{"int64", int64(30), 30},
		{"string", "30", 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sensor := hal.NewFakeSensor(map[string]any{"position": tt.raw})
			s, err := testReader(sensor).Sample(context.Background())
			if err != nil {
				t.Fatalf("Sample: %v", err)
			}
			if s.Value != tt.want {
				t.Errorf("value = %v, want %v", s.Value, tt.want)
			}
			if s.State != StateOpen {
				t.Errorf("state = %s, want %s", s.State, StateOpen)
			}
		})
	}
}

func TestSampleErrors(t *testing.T) {
	t.Run("read error", func(t *testing.T) {
		sensor := hal.NewFakeSensor(map[string]any{"position": 10.0})
		sensor.SetError(errors.New("i2c bus fault"))
		_, err := testReader(sensor).Sample(context.Background())
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("missing key", func(t *testing.T) {
		sensor := hal.NewFakeSensor(map[string]any{"voltage": 10.0})
		_, err := testReader(sensor).Sample(context.Background())
		if err == nil {
			t.Fatal("expected error for missing key")
		}
	})

	t.Run("non-numeric reading", func(t *testing.T) {
		sensor := hal.NewFakeSensor(map[string]any{"position": "not-a-number"})
		_, err := testReader(sensor).Sample(context.Background())
		if err == nil {
			t.Fatal("expected error for non-numeric reading")
		}
	})
}

func TestRangeValidate(t *testing.T) {
	if err := (Range{Min: 0, Max: 50}).Validate(); err != nil {
		t.Errorf("valid range rejected: %v", err)
	}
	if err := (Range{Min: 10, Max: 10}).Validate(); err != nil {
		t.Errorf("point range rejected: %v", err)
	}
	if err := (Range{Min: 50, Max: 0}).Validate(); err == nil {
		t.Error("inverted range accepted")
	}
}

func TestRangeOverlaps(t *testing.T) {
	a := Range{Min: 0, Max: 50}
	if a.Overlaps(Range{Min: 950, Max: 1023}) {
		t.Error("disjoint ranges reported as overlapping")
	}
	if !a.Overlaps(Range{Min: 50, Max: 100}) {
		t.Error("touching ranges not reported as overlapping")
	}
	if !a.Overlaps(Range{Min: 10, Max: 20}) {
		t.Error("contained range not reported as overlapping")
	}
}
