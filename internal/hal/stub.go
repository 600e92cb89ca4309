//go:build !linux

package hal

import (
	"context"
	"errors"
)

var errUnsupported = errors.New("hal: gpio not supported on this platform (requires Linux)")

// GPIOBoard is not available on non-Linux platforms.
type GPIOBoard struct{}

// OpenBoard returns an error on non-Linux platforms.
func OpenBoard(name string) (*GPIOBoard, error) {
	return nil, errUnsupported
}

// Name is not implemented on non-Linux platforms.
func (b *GPIOBoard) Name() string { return "" }

// Close is not implemented on non-Linux platforms.
func (b *GPIOBoard) Close() error { return nil }

// RelayMotor is not available on non-Linux platforms.
type RelayMotor struct{}

// NewRelayMotor returns an error on non-Linux platforms.
func NewRelayMotor(board *GPIOBoard, closePin, openPin int) (*RelayMotor, error) {
	return nil, errUnsupported
}

// SetPower is not implemented on non-Linux platforms.
func (m *RelayMotor) SetPower(ctx context.Context, power float64) error { return errUnsupported }

// Stop is not implemented on non-Linux platforms.
func (m *RelayMotor) Stop(ctx context.Context) error { return errUnsupported }

// IsMoving is not implemented on non-Linux platforms.
func (m *RelayMotor) IsMoving() bool { return false }

// Close is not implemented on non-Linux platforms.
func (m *RelayMotor) Close() error { return nil }

// GPIOSensor is not available on non-Linux platforms.
type GPIOSensor struct{}

// NewGPIOSensor returns an error on non-Linux platforms.
func NewGPIOSensor(board *GPIOBoard, pin int, key string) (*GPIOSensor, error) {
	return nil, errUnsupported
}

// Readings is not implemented on non-Linux platforms.
func (s *GPIOSensor) Readings(ctx context.Context) (map[string]any, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (s *GPIOSensor) Close() error { return nil }
