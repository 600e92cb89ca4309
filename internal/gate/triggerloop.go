package gate

import (
	"context"
	"time"

	"github.com/gmulz/viam-automated-gate/internal/logging"
)

// defaultTriggerInterval is how often configured triggers are polled.
const defaultTriggerInterval = 250 * time.Millisecond

// Starter begins gate operations on behalf of the trigger loop.
// Implementations must not block: a busy controller drops the attempt and
// the next poll tick retries while the trigger condition still holds.
type Starter interface {
	TriggerOpen(ctx context.Context)
	TriggerClose(ctx context.Context)
}

// TriggerLoop polls the configured open/close trigger watchers and starts
// the matching operation when one fires. It runs for the lifetime of the
// service and exits when its context is cancelled.
type TriggerLoop struct {
	openTrigger  *TriggerWatcher // nil when not configured
	closeTrigger *TriggerWatcher // nil when not configured
	starter      Starter
	interval     time.Duration
	logger       *logging.Logger
}

// NewTriggerLoop creates the loop. Either watcher may be nil.
func NewTriggerLoop(openTrigger, closeTrigger *TriggerWatcher, starter Starter, logger *logging.Logger) *TriggerLoop {
	return &TriggerLoop{
		openTrigger:  openTrigger,
		closeTrigger: closeTrigger,
		starter:      starter,
		interval:     defaultTriggerInterval,
		logger:       logger,
	}
}

// Run polls until ctx is cancelled. It returns nil on shutdown.
func (l *TriggerLoop) Run(ctx context.Context) error {
	if l.openTrigger == nil && l.closeTrigger == nil {
		l.logger.Debug("no triggers configured, trigger loop idle")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("trigger loop stopping")
			return nil
		case <-ticker.C:
			l.poll(ctx)
		}
	}
}

// poll checks each configured watcher once. Sensor read failures are logged
// and retried on the next tick.
func (l *TriggerLoop) poll(ctx context.Context) {
	if l.openTrigger != nil {
		matched, err := l.openTrigger.Matched(ctx)
		switch {
		case err != nil:
			l.logger.Debug("open trigger read failed", "error", err)
		case matched:
			l.logger.Debug("open trigger matched")
			l.starter.TriggerOpen(ctx)
		}
	}
	if l.closeTrigger != nil {
		matched, err := l.closeTrigger.Matched(ctx)
		switch {
		case err != nil:
			l.logger.Debug("close trigger read failed", "error", err)
		case matched:
			l.logger.Debug("close trigger matched")
			l.starter.TriggerClose(ctx)
		}
	}
}
