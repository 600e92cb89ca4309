package gate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gmulz/viam-automated-gate/internal/hal"
)

// PositionReader samples the position sensor and classifies the reading
// against the configured open and close ranges.
type PositionReader struct {
	sensor     hal.Sensor
	key        string
	openRange  Range
	closeRange Range
}

// NewPositionReader creates a reader extracting the named key from the
// sensor's readings. Ranges are assumed validated at configuration time.
func NewPositionReader(sensor hal.Sensor, key string, openRange, closeRange Range) *PositionReader {
	return &PositionReader{
		sensor:     sensor,
		key:        key,
		openRange:  openRange,
		closeRange: closeRange,
	}
}

// Sample reads the sensor once and classifies the value.
func (r *PositionReader) Sample(ctx context.Context) (Sample, error) {
	readings, err := r.sensor.Readings(ctx)
	if err != nil {
		return Sample{State: StateUnknown}, fmt.Errorf("read position sensor: %w", err)
	}
	raw, ok := readings[r.key]
	if !ok {
		return Sample{State: StateUnknown}, fmt.Errorf("position sensor has no reading %q", r.key)
	}
	v, err := toFloat(raw)
	if err != nil {
		return Sample{State: StateUnknown}, fmt.Errorf("position reading %q: %w", r.key, err)
	}
	return Sample{Value: v, State: r.Classify(v)}, nil
}

// Classify maps a position value to a gate state. Open takes precedence if
// the ranges were misconfigured to overlap.
func (r *PositionReader) Classify(v float64) State {
	if r.openRange.Contains(v) {
		return StateOpen
	}
	if r.closeRange.Contains(v) {
		return StateClosed
	}
	return StateUnknown
}

// toFloat coerces the reading types sensors actually produce.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not numeric: %T", v)
	}
}
