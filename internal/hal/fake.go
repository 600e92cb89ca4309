package hal

import (
	"context"
	"errors"
	"sync"
)

// FakeMotor is a test double that records power commands.
type FakeMotor struct {
	mu sync.Mutex

	// PowerCalls contains every power level passed to SetPower.
	PowerCalls []float64

	// StopCalls counts calls to Stop.
	StopCalls int

	// SetPowerError, if set, is returned by SetPower.
	SetPowerError error

	// StopError, if set, is returned by Stop.
	StopError error

	power float64
}

// SetPower records the commanded power.
func (m *FakeMotor) SetPower(ctx context.Context, power float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetPowerError != nil {
		return m.SetPowerError
	}
	m.PowerCalls = append(m.PowerCalls, power)
	m.power = power
	return nil
}

// Stop records the stop and zeroes the power.
func (m *FakeMotor) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StopCalls++
	if m.StopError != nil {
		return m.StopError
	}
	m.power = 0
	return nil
}

// IsMoving reports whether the last commanded power is nonzero.
func (m *FakeMotor) IsMoving() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.power != 0
}

// Power returns the last commanded power level.
func (m *FakeMotor) Power() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.power
}

// FakeSensor is a test double that returns scripted readings.
// Safe for concurrent use.
type FakeSensor struct {
	mu sync.Mutex

	// samples are consumed one per Readings call; the last sample is
	// returned repeatedly once the script is exhausted.
	samples []map[string]any
	index   int

	// ReadError, if set, is returned by Readings.
	ReadError error
}

// NewFakeSensor creates a FakeSensor with the given scripted samples.
func NewFakeSensor(samples ...map[string]any) *FakeSensor {
	return &FakeSensor{samples: samples}
}

// Readings returns the next scripted sample.
func (s *FakeSensor) Readings(ctx context.Context) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReadError != nil {
		return nil, s.ReadError
	}
	if len(s.samples) == 0 {
		return nil, errors.New("no readings configured")
	}
	sample := s.samples[s.index]
	if s.index < len(s.samples)-1 {
		s.index++
	}
	return sample, nil
}

// Set replaces the script with a single sample returned from now on.
func (s *FakeSensor) Set(sample map[string]any) {
	s.mu.Lock()
	s.samples = []map[string]any{sample}
	s.index = 0
	s.mu.Unlock()
}

// SetError sets the error returned by subsequent Readings calls.
// Pass nil to clear it.
func (s *FakeSensor) SetError(err error) {
	s.mu.Lock()
	s.ReadError = err
	s.mu.Unlock()
}

// FakeBoard is a Board test double.
type FakeBoard struct {
	BoardName string
	Closed    bool
}

// Name returns the configured board name.
func (b *FakeBoard) Name() string {
	if b.BoardName == "" {
		return "fakeboard"
	}
	return b.BoardName
}

// Close marks the board as closed.
func (b *FakeBoard) Close() error {
	b.Closed = true
	return nil
}
