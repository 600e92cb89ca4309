package hal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// IIOSensor is a Sensor backed by a sysfs IIO ADC channel, the usual Linux
// route for analog position feedback (potentiometer or hall sensor on the
// gate arm). Readings reports the raw ADC value as a float under the
// configured key.
type IIOSensor struct {
	path string
	key  string
}

// NewIIOSensor creates a sensor reading the given IIO raw channel file,
// e.g. /sys/bus/iio/devices/iio:device0/in_voltage0_raw.
func NewIIOSensor(path, key string) (*IIOSensor, error) {
	if path == "" {
		return nil, fmt.Errorf("iio sensor: path is required")
	}
	if key == "" {
		return nil, fmt.Errorf("iio sensor: reading key is required")
	}
	return &IIOSensor{path: filepath.Clean(path), key: key}, nil
}

// Readings reads and parses the channel file. Read failures are returned to
// the caller; the control loop treats them as transient.
func (s *IIOSensor) Readings(ctx context.Context) (map[string]any, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read adc channel: %w", err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return nil, fmt.Errorf("parse adc value %q: %w", strings.TrimSpace(string(raw)), err)
	}
	return map[string]any{s.key: v}, nil
}
