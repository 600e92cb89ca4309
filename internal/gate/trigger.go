package gate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gmulz/viam-automated-gate/internal/hal"
)

// TriggerWatcher polls a trigger sensor for a key/value match that initiates
// an open or close operation.
type TriggerWatcher struct {
	sensor hal.Sensor
	key    string
	match  string
}

// NewTriggerWatcher creates a watcher matching the stringified reading at key
// against match.
func NewTriggerWatcher(sensor hal.Sensor, key, match string) *TriggerWatcher {
	return &TriggerWatcher{sensor: sensor, key: key, match: match}
}

// Matched reads the sensor once and reports whether the configured key is
// present and its stringified value equals the match value.
func (w *TriggerWatcher) Matched(ctx context.Context) (bool, error) {
	readings, err := w.sensor.Readings(ctx)
	if err != nil {
		return false, fmt.Errorf("read trigger sensor: %w", err)
	}
	raw, ok := readings[w.key]
	if !ok {
		return false, nil
	}
	return stringify(raw) == w.match, nil
}

// stringify renders a reading for equality comparison. Floats use the
// shortest representation so 1.0 compares equal to "1".
func stringify(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case bool:
		return strconv.FormatBool(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	default:
		return fmt.Sprint(v)
	}
}
