// Package command translates named gate commands into controller calls and
// fixed response shapes. Every entry point (MQTT, HTTP, the trigger loop)
// funnels through the Dispatcher, which is the only writer of operation
// history and status counters.
package command

import (
	"context"
	"errors"
	"time"

	"github.com/gmulz/viam-automated-gate/internal/gate"
	"github.com/gmulz/viam-automated-gate/internal/history"
	"github.com/gmulz/viam-automated-gate/internal/logging"
	"github.com/gmulz/viam-automated-gate/internal/mqtt"
	"github.com/gmulz/viam-automated-gate/internal/status"
	"github.com/gmulz/viam-automated-gate/internal/telemetry"
)

// ErrInvalidCommand is returned when a request names no known command.
// A usage error, not a crash.
var ErrInvalidCommand = errors.New(`invalid command: expected one of "open", "close", "stop", "position", "status"`)

// Gate is the controller surface the dispatcher drives.
type Gate interface {
	Open(ctx context.Context) (gate.Outcome, error)
	Close(ctx context.Context) (gate.Outcome, error)
	Stop(ctx context.Context) error
	Sample(ctx context.Context) (gate.Sample, error)
}

// EventSink receives finished-operation events, typically to publish them
// on the MQTT events topic.
type EventSink interface {
	PublishEvent(event mqtt.Event) error
}

// Dispatcher maps commands to controller calls.
type Dispatcher struct {
	gate      Gate
	tracker   *status.Tracker
	history   history.Repository // nil disables persistence
	telemetry telemetry.Recorder
	events    EventSink // nil disables event publishing
	logger    *logging.Logger
	now       func() time.Time
}

// New creates a dispatcher. History may be nil; a nil telemetry recorder is
// replaced with a no-op.
func New(g Gate, tracker *status.Tracker, hist history.Repository, tel telemetry.Recorder, logger *logging.Logger) *Dispatcher {
	if tel == nil {
		tel = telemetry.Noop{}
	}
	return &Dispatcher{
		gate:      g,
		tracker:   tracker,
		history:   hist,
		telemetry: tel,
		logger:    logger,
		now:       time.Now,
	}
}

// SetEventSink attaches an event publisher. Must be called before the
// dispatcher handles commands.
func (d *Dispatcher) SetEventSink(s EventSink) {
	d.events = s
}

// Dispatch executes the command named by a true-ish flag in cmd and returns
// the response payload. When several flags are set the first of open, close,
// stop, position, status wins. Unknown commands return ErrInvalidCommand.
func (d *Dispatcher) Dispatch(ctx context.Context, source string, cmd map[string]any) (map[string]any, error) {
	d.logger.Info("command received", "source", source, "command", commandName(cmd))

	switch {
	case truthy(cmd["open"]):
		return d.runOp(ctx, source, "open")
	case truthy(cmd["close"]):
		return d.runOp(ctx, source, "close")
	case truthy(cmd["stop"]):
		return d.runStop(ctx, source)
	case truthy(cmd["position"]):
		s, err := d.gate.Sample(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"status": "position", "position": s.Value}, nil
	case truthy(cmd["status"]):
		s, err := d.gate.Sample(ctx)
		if err != nil {
			// Status queries degrade to unknown rather than fail.
			d.logger.Warn("status read failed", "error", err)
			return map[string]any{"status": string(gate.StateUnknown)}, nil
		}
		return map[string]any{"status": string(s.State)}, nil
	default:
		d.tracker.RecordInvalid()
		return nil, ErrInvalidCommand
	}
}

/// TriggerOpen starts an open on behalf of the trigger loop. Fire-and-forget:
// a busy rejection is dropped silently and the next trigger poll retries.
func (d *Dispatcher) TriggerOpen(ctx context.Context) {
	go d.triggerOp(ctx, "open")
}

// TriggerClose starts a close on behalf of the trigger loop.
func (d *Dispatcher) TriggerClose(ctx context.Context) {
	go d.triggerOp(ctx, "close")
}

func (d *Dispatcher) triggerOp(ctx context.Context, op string) {
	resp, err := d.Dispatch(ctx, "trigger", map[string]any{op: true})
	if err != nil {
		d.logger.Warn("triggered operation failed", "op", op, "error", err)
		return
	}
	if resp["status"] == "busy" {
		d.logger.Debug("triggered operation dropped, controller busy", "op", op)
	}
}

func (d *Dispatcher) runOp(ctx context.Context, source, op string) (map[string]any, error) {
	started := d.now()

	var outcome gate.Outcome
	var err error
	if op == "open" {
		outcome, err = d.gate.Open(ctx)
	} else {
		outcome, err = d.gate.Close(ctx)
	}
	if errors.Is(err, gate.ErrBusy) {
		d.tracker.RecordBusy()
		return map[string]any{"status": "busy"}, nil
	}
	if err != nil {
		return nil, err
	}

	d.record(ctx, op, source, started, outcome)

	if outcome.Reason == gate.ReasonStopped {
		return map[string]any{"status": "stopped"}, nil
	}
	return map[string]any{"status": string(outcome.FinalState)}, nil
}

func (d *Dispatcher) runStop(ctx context.Context, source string) (map[string]any, error) {
	started := d.now()
	if err := d.gate.Stop(ctx); err != nil {
		return nil, err
	}

	outcome := gate.Outcome{FinalState: gate.StateUnknown, Reason: gate.ReasonStopped}
	if s, err := d.gate.Sample(ctx); err == nil {
		outcome.FinalState = s.State
		outcome.Position = s.Value
	}
	d.record(ctx, "stop", source, started, outcome)

	return map[string]any{"status": "stopped"}, nil
}

// record updates the tracker, persists the history row, and emits telemetry.
// Persistence failures are logged; they never fail the command.
func (d *Dispatcher) record(ctx context.Context, op, source string, started time.Time, outcome gate.Outcome) {
	d.tracker.RecordOutcome(op, outcome)
	d.telemetry.RecordOutcome(op, outcome)

	if d.events != nil {
		if err := d.events.PublishEvent(mqtt.EventFromOutcome(op, source, d.now(), outcome)); err != nil {
			d.logger.Error("event publish failed", "op", op, "error", err)
		}
	}

	if d.history == nil {
		return
	}
	entry := history.Entry{
		Op:         op,
		Source:     source,
		Reason:     string(outcome.Reason),
		FinalState: string(outcome.FinalState),
		Position:   outcome.Position,
		StartedAt:  started,
		FinishedAt: d.now(),
	}
	if err := d.history.Record(ctx, entry); err != nil {
		d.logger.Error("history record failed", "op", op, "error", err)
	}
}

// truthy interprets the flag values command payloads actually carry.
func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case int:
		return b != 0
	case string:
		return b == "true" || b == "1"
	default:
		return false
	}
}

// commandName names the command for logging without echoing the payload.
func commandName(cmd map[string]any) string {
	for _, name := range []string{"open", "close", "stop", "position", "status"} {
		if truthy(cmd[name]) {
			return name
		}
	}
	return "unknown"
}
