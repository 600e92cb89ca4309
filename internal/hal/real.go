//go:build linux

package hal

import (
	"context"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOBoard is a Board backed by a Linux GPIO character device chip.
type GPIOBoard struct {
	chip *gpiocdev.Chip
}

// OpenBoard opens the named GPIO chip (e.g. "gpiochip0").
func OpenBoard(name string) (*GPIOBoard, error) {
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	return &GPIOBoard{chip: chip}, nil
}

// Name returns the chip device name.
func (b *GPIOBoard) Name() string {
	return b.chip.Name
}

// Close releases the chip. Lines requested from the board must be closed
// by their owners first.
func (b *GPIOBoard) Close() error {
	return b.chip.Close()
}

// RelayMotor is a Motor driven through a pair of relay output lines, one per
// direction. The gate motor runs at a fixed speed; power only selects the
// direction, so any nonzero magnitude engages the matching relay.
type RelayMotor struct {
	closeLine *gpiocdev.Line // energized for positive (closing) power
	openLine  *gpiocdev.Line // energized for negative (opening) power

	mu     sync.Mutex
	moving bool
}

// NewRelayMotor requests the two direction output lines from the board.
// Both relays start de-energized.
func NewRelayMotor(board *GPIOBoard, closePin, openPin int) (*RelayMotor, error) {
	closeLine, err := board.chip.RequestLine(closePin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request close pin %d: %w", closePin, err)
	}
	openLine, err := board.chip.RequestLine(openPin, gpiocdev.AsOutput(0))
	if err != nil {
		closeLine.Close()
		return nil, fmt.Errorf("request open pin %d: %w", openPin, err)
	}
	return &RelayMotor{closeLine: closeLine, openLine: openLine}, nil
}

// SetPower engages the relay matching the sign of power. Zero power is
// equivalent to Stop.
func (m *RelayMotor) SetPower(ctx context.Context, power float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if power == 0 {
		return m.stopLocked()
	}

	// Never energize both relays at once.
	if power > 0 {
		if err := m.openLine.SetValue(0); err != nil {
			return fmt.Errorf("clear open relay: %w", err)
		}
		if err := m.closeLine.SetValue(1); err != nil {
			return fmt.Errorf("set close relay: %w", err)
		}
	} else {
		if err := m.closeLine.SetValue(0); err != nil {
			return fmt.Errorf("clear close relay: %w", err)
		}
		if err := m.openLine.SetValue(1); err != nil {
			return fmt.Errorf("set open relay: %w", err)
		}
	}
	m.moving = true
	return nil
}

// Stop de-energizes both direction relays.
func (m *RelayMotor) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked()
}

func (m *RelayMotor) stopLocked() error {
	errClose := m.closeLine.SetValue(0)
	errOpen := m.openLine.SetValue(0)
	m.moving = false
	if errClose != nil {
		return fmt.Errorf("clear close relay: %w", errClose)
	}
	if errOpen != nil {
		return fmt.Errorf("clear open relay: %w", errOpen)
	}
	return nil
}

// IsMoving reports whether a relay is currently energized.
func (m *RelayMotor) IsMoving() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.moving
}

// Close stops the motor and releases both lines.
func (m *RelayMotor) Close() error {
	m.Stop(context.Background())
	errClose := m.closeLine.Close()
	errOpen := m.openLine.Close()
	if errClose != nil {
		return fmt.Errorf("close close line: %w", errClose)
	}
	if errOpen != nil {
		return fmt.Errorf("close open line: %w", errOpen)
	}
	return nil
}

// GPIOSensor is a Sensor backed by a single digital input line. Readings
// reports one boolean keyed by the configured name, suitable for trigger
// sensors such as beam breaks or keyswitches.
type GPIOSensor struct {
	line *gpiocdev.Line
	key  string
}

// NewGPIOSensor requests the input line with pull-down, matching Pi boot
// defaults so external trigger modules behave consistently.
func NewGPIOSensor(board *GPIOBoard, pin int, key string) (*GPIOSensor, error) {
	line, err := board.chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		return nil, fmt.Errorf("request trigger pin %d: %w", pin, err)
	}
	return &GPIOSensor{line: line, key: key}, nil
}

// Readings returns the line state as a boolean under the configured key.
func (s *GPIOSensor) Readings(ctx context.Context) (map[string]any, error) {
	v, err := s.line.Value()
	if err != nil {
		return nil, fmt.Errorf("read trigger pin: %w", err)
	}
	return map[string]any{s.key: v == 1}, nil
}

// Close releases the input line.
func (s *GPIOSensor) Close() error {
	return s.line.Close()
}
