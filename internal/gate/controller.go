package gate

import (
	"context"
	"sync"
	"time"

	"github.com/gmulz/viam-automated-gate/internal/logging"
)

const (
	// defaultPollInterval is how often the drive loop samples the position
	// sensor. It bounds Stop latency and timeout precision.
	defaultPollInterval = 150 * time.Millisecond

	// openTimeoutFactor scales the configured close timeout for open
	// operations.
	openTimeoutFactor = 1.5

	// defaultCloseTimeout bounds a close operation when none is configured.
	defaultCloseTimeout = 30 * time.Second
)

// Config holds controller tunables.
type Config struct {
	// CloseTimeout bounds a close operation. Open operations get 1.5x this
	// value. Defaults to 30s.
	CloseTimeout time.Duration

	// PollInterval overrides the drive loop sampling interval. Defaults to
	// 150ms; only tests should need to change it.
	PollInterval time.Duration
}

// Controller runs one timeout-bounded drive operation at a time against the
// motor, consulting the position reader until the target range is reached.
// Concurrent motion commands are rejected with ErrBusy, never queued.
// Status and Position never touch drive state and stay responsive during an
// operation.
type Controller struct {
	pos    *PositionReader
	driver *MotorDriver
	cfg    Config
	logger *logging.Logger
	now    func() time.Time

	// mu guards busy and cancel. It is held only for flag flips, never
	// across motor or sensor calls.
	mu     sync.Mutex
	busy   bool
	cancel chan struct{}
}

// NewController creates a controller. Zero Config fields get defaults.
func NewController(pos *PositionReader, driver *MotorDriver, cfg Config, logger *logging.Logger) *Controller {
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = defaultCloseTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Controller{
		pos:    pos,
		driver: driver,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Open drives the gate toward the open range. Returns ErrBusy if another
// operation is in flight.
func (c *Controller) Open(ctx context.Context) (Outcome, error) {
	timeout := time.Duration(float64(c.cfg.CloseTimeout) * openTimeoutFactor)
	return c.run(ctx, DirectionOpen, StateOpen, timeout)
}

// Close drives the gate toward the closed range. Returns ErrBusy if another
// operation is in flight.
func (c *Controller) Close(ctx context.Context) (Outcome, error) {
	return c.run(ctx, DirectionClose, StateClosed, c.cfg.CloseTimeout)
}

// Stop cancels any in-flight operation and stops the motor unconditionally.
// The running drive loop notices the cancellation within one poll interval,
// but the motor halt does not wait for it. Safe to call when idle.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		close(c.cancel)
		c.cancel = nil
	}
	c.mu.Unlock()
	return c.driver.Stop(ctx)
}

// PollInterval returns the drive loop sampling interval in effect.
func (c *Controller) PollInterval() time.Duration {
	return c.cfg.PollInterval
}

// Busy reports whether a drive operation is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	b := c.busy
	c.mu.Unlock()
	return b
}

// Sample returns a live position sample. Never blocks on drive state.
func (c *Controller) Sample(ctx context.Context) (Sample, error) {
	return c.pos.Sample(ctx)
}

// Status returns the live sensor-derived gate state. On a sensor read
// failure the state is unknown and the error is returned alongside it.
func (c *Controller) Status(ctx context.Context) (State, error) {
	s, err := c.pos.Sample(ctx)
	if err != nil {
		return StateUnknown, err
	}
	return s.State, nil
}

// Position returns the live position value.
func (c *Controller) Position(ctx context.Context) (float64, error) {
	s, err := c.pos.Sample(ctx)
	if err != nil {
		return 0, err
	}
	return s.Value, nil
}

// run executes one drive operation: acquire busy ownership, short-circuit if
// already at the target, otherwise start the motor and poll until the target
// range is reached, the deadline expires, or a Stop cancels the operation.
// The motor is stopped on every exit path before run returns.
func (c *Controller) run(ctx context.Context, dir Direction, target State, timeout time.Duration) (Outcome, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return Outcome{}, ErrBusy
	}
	c.busy = true
	cancel := make(chan struct{})
	c.cancel = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.cancel = nil
		c.mu.Unlock()
	}()

	started := c.now()
	log := c.logger.With("op", string(dir))
	log.Info("drive operation starting", "timeout", timeout)

	// The motor must be stopped before control returns to the caller,
	// whatever path exits the loop below. Stop is idempotent, so this also
	// covers the already-at-target case where the motor never started.
	defer func() {
		if err := c.driver.Stop(context.Background()); err != nil {
			log.Error("motor stop failed", "error", err)
		}
	}()

	var lastPos float64
	sample, err := c.pos.Sample(ctx)
	if err != nil {
		// Transient: the poll loop below retries, bounded by the deadline.
		log.Warn("initial position read failed", "error", err)
	} else {
		lastPos = sample.Value
		if sample.State == target {
			log.Info("already at target", "position", sample.Value)
			return Outcome{
				FinalState: target,
				Reason:     ReasonReachedTarget,
				Position:   sample.Value,
				Duration:   c.now().Sub(started),
			}, nil
		}
	}

	if err := c.driver.Drive(ctx, dir); err != nil {
		log.Error("motor start failed", "error", err)
		return Outcome{}, err
	}

	deadline := started.Add(timeout)
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cancel:
			log.Info("drive operation stopped", "position", lastPos)
			return c.finish(ctx, ReasonStopped, lastPos, started), nil

		case <-ctx.Done():
			log.Info("drive operation aborted by shutdown")
			return c.finish(ctx, ReasonStopped, lastPos, started), nil

		case <-ticker.C:
			if !c.now().Before(deadline) {
				log.Warn("drive operation timed out", "position", lastPos)
				return c.finish(ctx, ReasonTimedOut, lastPos, started), nil
			}
			s, err := c.pos.Sample(ctx)
			if err != nil {
				// Retry next tick; the deadline is the backstop.
				log.Debug("position read failed, retrying", "error", err)
				continue
			}
			lastPos = s.Value
			if s.State == target {
				log.Info("target reached", "position", s.Value)
				return Outcome{
					FinalState: target,
					Reason:     ReasonReachedTarget,
					Position:   s.Value,
					Duration:   c.now().Sub(started),
				}, nil
			}
		}
	}
}

// finish builds the outcome for a stopped or timed-out operation, taking one
// last live sample for the final state.
func (c *Controller) finish(ctx context.Context, reason Reason, lastPos float64, started time.Time) Outcome {
	state := StateUnknown
	pos := lastPos
	if s, err := c.pos.Sample(ctx); err == nil {
		state = s.State
		pos = s.Value
	}
	return Outcome{
		FinalState: state,
		Reason:     reason,
		Position:   pos,
		Duration:   c.now().Sub(started),
	}
}
