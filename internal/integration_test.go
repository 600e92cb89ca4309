package internal

import (
	"context"
	"testing"
	"time"

	"github.com/gmulz/viam-automated-gate/internal/command"
	"github.com/gmulz/viam-automated-gate/internal/gate"
	"github.com/gmulz/viam-automated-gate/internal/hal"
	"github.com/gmulz/viam-automated-gate/internal/history"
	"github.com/gmulz/viam-automated-gate/internal/logging"
	"github.com/gmulz/viam-automated-gate/internal/mqtt"
	"github.com/gmulz/viam-automated-gate/internal/status"
	"github.com/gmulz/viam-automated-gate/internal/telemetry"
)

var (
	openRange  = gate.Range{Min: 0, Max: 50}
	closeRange = gate.Range{Min: 950, Max: 1023}
)

// harness wires the full stack on fakes: sensor and motor through the
// controller and dispatcher into tracker, history, telemetry, and events.
type harness struct {
	sensor     *hal.FakeSensor
	motor      *hal.FakeMotor
	controller *gate.Controller
	dispatcher *command.Dispatcher
	tracker    *status.Tracker
	repo       *history.FakeRepository
	recorder   *telemetry.FakeRecorder
	publisher  *mqtt.FakePublisher
}

func newHarness(t *testing.T, samples ...map[string]any) *harness {
	t.Helper()
	h := &harness{
		sensor:    hal.NewFakeSensor(samples...),
		motor:     &hal.FakeMotor{},
		tracker:   status.NewTracker(time.Now(), status.Config{}),
		repo:      &history.FakeRepository{},
		recorder:  &telemetry.FakeRecorder{},
		publisher: mqtt.NewFakePublisher(),
	}
	pos := gate.NewPositionReader(h.sensor, "position", openRange, closeRange)
	driver := gate.NewMotorDriver(h.motor, 1, 1)
	h.controller = gate.NewController(pos, driver, gate.Config{
		CloseTimeout: 100 * time.Millisecond,
		PollInterval: 2 * time.Millisecond,
	}, logging.Default())
	h.dispatcher = command.New(h.controller, h.tracker, h.repo, h.recorder, logging.Default())
	h.dispatcher.SetEventSink(h.publisher)
	return h
}

func (h *harness) waitForBusy(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !h.controller.Busy() {
		if time.Now().After(deadline) {
			t.Fatal("controller never became busy")
		}
		time.Sleep(time.Millisecond)
	}
}

// position builds one sensor reading.
func position(v float64) map[string]any {
	return map[string]any{"position": v}
}

func TestIntegrationCloseCommandFullFlow(t *testing.T) {
	// Gate starts open, passes through the middle, lands closed.
	h := newHarness(t, position(30), position(400), position(700), position(1000))

	resp, err := h.dispatcher.Dispatch(context.Background(), "http", map[string]any{"close": true})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp["status"] != "closed" {
		t.Fatalf("response = %v, want closed", resp)
	}

	// Motor drove forward once and was stopped.
	if calls := h.motor.PowerCalls; len(calls) != 1 || calls[0] != 1 {
		t.Errorf("power calls = %v, want [1]", calls)
	}
	if h.motor.StopCalls == 0 {
		t.Error("motor never stopped")
	}

	// One history row with the full outcome.
	entries := h.repo.Recorded()
	if len(entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Op != "close" || e.Source != "http" || e.Reason != "reached_target" || e.FinalState != "closed" {
		t.Errorf("history entry = %+v", e)
	}
	if e.Position != 1000 {
		t.Errorf("recorded position = %v, want 1000", e.Position)
	}

	// Tracker, telemetry, and the events topic all saw the outcome.
	if h.tracker.Snapshot().Counts.Closed != 1 {
		t.Errorf("closed count = %d, want 1", h.tracker.Snapshot().Counts.Closed)
	}
	if len(h.recorder.Outcomes) != 1 || h.recorder.Outcomes[0].Op != "close" {
		t.Errorf("telemetry outcomes = %+v", h.recorder.Outcomes)
	}
	events := h.publisher.Published()
	if len(events) != 1 || events[0].Status != "closed" || events[0].Source != "http" {
		t.Errorf("published events = %+v", events)
	}
}

func TestIntegrationBusyThenStop(t *testing.T) {
	// Sensor stuck in the middle: the close never reaches its target.
	h := newHarness(t, position(500))

	type result struct {
		resp map[string]any
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := h.dispatcher.Dispatch(context.Background(), "http", map[string]any{"close": true})
		done <- result{resp, err}
	}()

	h.waitForBusy(t)

	// A second motion command is rejected, not queued.
	resp, err := h.dispatcher.Dispatch(context.Background(), "mqtt", map[string]any{"open": true})
	if err != nil {
		t.Fatalf("Dispatch open: %v", err)
	}
	if resp["status"] != "busy" {
		t.Fatalf("open during close = %v, want busy", resp)
	}

	// Stop interrupts the close.
	resp, err = h.dispatcher.Dispatch(context.Background(), "mqtt", map[string]any{"stop": true})
	if err != nil {
		t.Fatalf("Dispatch stop: %v", err)
	}
	if resp["status"] != "stopped" {
		t.Fatalf("stop response = %v", resp)
	}

	r := <-done
	if r.err != nil {
		t.Fatalf("close returned error: %v", r.err)
	}
	if r.resp["status"] != "stopped" {
		t.Errorf("interrupted close = %v, want stopped", r.resp)
	}

	if h.motor.StopCalls == 0 {
		t.Error("motor never stopped")
	}
	if h.tracker.Snapshot().Counts.Busy != 1 {
		t.Errorf("busy count = %d, want 1", h.tracker.Snapshot().Counts.Busy)
	}

	// Both the stop command and the interrupted close are in history.
	ops := map[string]int{}
	for _, e := range h.repo.Recorded() {
		ops[e.Op]++
	}
	if ops["stop"] != 1 || ops["close"] != 1 {
		t.Errorf("history ops = %v, want one stop and one close", ops)
	}
}

func TestIntegrationTimeout(t *testing.T) {
	// Sensor never leaves the middle: the open exhausts its deadline.
	h := newHarness(t, position(500))

	start := time.Now()
	resp, err := h.dispatcher.Dispatch(context.Background(), "http", map[string]any{"open": true})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp["status"] != "unknown" {
		t.Fatalf("response = %v, want unknown after timeout", resp)
	}

	// Open deadline is 1.5x the close timeout.
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("open gave up after %v, want >= 150ms", elapsed)
	}

	entries := h.repo.Recorded()
	if len(entries) != 1 || entries[0].Reason != "timed_out" {
		t.Errorf("history = %+v, want one timed_out entry", entries)
	}
	if h.tracker.Snapshot().Counts.TimedOut != 1 {
		t.Errorf("timed out count = %d, want 1", h.tracker.Snapshot().Counts.TimedOut)
	}
}

func TestIntegrationAlreadyAtTarget(t *testing.T) {
	h := newHarness(t, position(1000))

	resp, err := h.dispatcher.Dispatch(context.Background(), "http", map[string]any{"close": true})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp["status"] != "closed" {
		t.Fatalf("response = %v, want closed", resp)
	}
	if len(h.motor.PowerCalls) != 0 {
		t.Errorf("motor driven for a no-op close: %v", h.motor.PowerCalls)
	}
}

func TestIntegrationTriggerStartsOperation(t *testing.T) {
	// Trigger held for one read, then released. The gate starts in the
	// close range and opens.
	h := newHarness(t, position(1000), position(500), position(30))

	triggerSensor := hal.NewFakeSensor(
		map[string]any{"trigger": true},
		map[string]any{"trigger": false},
	)
	watcher := gate.NewTriggerWatcher(triggerSensor, "trigger", "true")
	loop := gate.NewTriggerLoop(watcher, nil, h.dispatcher, logging.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for {
		entries := h.repo.Recorded()
		if len(entries) == 1 {
			e := entries[0]
			if e.Op != "open" || e.Source != "trigger" || e.FinalState != "open" {
				t.Errorf("history entry = %+v", e)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("triggered open never completed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
