// Command automated-gate drives a motorized gate: it executes open/close
// commands from MQTT and HTTP, watches trigger inputs, and stops the motor
// when the position sensor reports the target range or a timeout expires.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gmulz/viam-automated-gate/internal/command"
	"github.com/gmulz/viam-automated-gate/internal/config"
	"github.com/gmulz/viam-automated-gate/internal/gate"
	"github.com/gmulz/viam-automated-gate/internal/hal"
	"github.com/gmulz/viam-automated-gate/internal/history"
	"github.com/gmulz/viam-automated-gate/internal/logging"
	"github.com/gmulz/viam-automated-gate/internal/mqtt"
	"github.com/gmulz/viam-automated-gate/internal/status"
	"github.com/gmulz/viam-automated-gate/internal/telemetry"
	"github.com/gmulz/viam-automated-gate/internal/web"
)

// monitorInterval is how often the monitor loop refreshes the status tracker
// and emits position telemetry while the daemon is idle.
const monitorInterval = time.Second

// pruneInterval is how often old history rows are removed.
const pruneInterval = time.Hour

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	printPosition := flag.Bool("print-position", false, "Read the position sensor once and exit")
	flag.Parse()

	if err := run(*configPath, *printPosition); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, printPosition bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	// Hardware
	board, err := hal.OpenBoard(cfg.Gate.Board.Chip)
	if err != nil {
		return fmt.Errorf("open gpio chip %q: %w", cfg.Gate.Board.Chip, err)
	}
	defer board.Close()

	posCfg := cfg.Gate.PositionSensor
	posSensor, err := hal.NewIIOSensor(posCfg.ADCPath, posCfg.ReadingKey)
	if err != nil {
		return fmt.Errorf("open position sensor: %w", err)
	}
	pos := gate.NewPositionReader(posSensor, posCfg.ReadingKey,
		gate.Range{Min: posCfg.OpenRange.Min, Max: posCfg.OpenRange.Max},
		gate.Range{Min: posCfg.CloseRange.Min, Max: posCfg.CloseRange.Max},
	)

	// Print position mode
	if printPosition {
		s, err := pos.Sample(context.Background())
		if err != nil {
			return fmt.Errorf("read position: %w", err)
		}
		fmt.Printf("position: %.0f (%s)\n", s.Value, s.State)
		return nil
	}

	motor, err := hal.NewRelayMotor(board, cfg.Gate.Motor.ClosePin, cfg.Gate.Motor.OpenPin)
	if err != nil {
		return fmt.Errorf("init motor: %w", err)
	}
	driver := gate.NewMotorDriver(motor, cfg.OpenPower(), cfg.ClosePower())

	controller := gate.NewController(pos, driver, gate.Config{
		CloseTimeout: cfg.CloseTimeout(),
	}, logger.With("component", "controller"))

	tracker := status.NewTracker(time.Now(), status.Config{
		Name:           cfg.Gate.Name,
		CloseTimeoutMs: cfg.CloseTimeout().Milliseconds(),
		PollMs:         controller.PollInterval().Milliseconds(),
		Broker:         cfg.MQTT.Broker,
		HTTPAddr:       cfg.HTTP.Addr,
	})

	// Operation history
	var repo history.Repository
	if cfg.History.Enabled {
		sqlRepo, err := history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open history db: %w", err)
		}
		defer sqlRepo.Close()
		repo = sqlRepo
	}

	// Telemetry
	var recorder telemetry.Recorder
	if cfg.Influx.Enabled {
		influx := telemetry.NewInflux(cfg.Influx, cfg.Gate.Name, logger.With("component", "telemetry"))
		defer influx.Close()
		recorder = influx
	}

	dispatcher := command.New(controller, tracker, repo, recorder, logger.With("component", "dispatcher"))

	// MQTT transport
	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Enabled {
		client, err := mqtt.NewRealClient(cfg.MQTT, dispatcher, logger.With("component", "mqtt"), tracker.SetMQTTConnected)
		if err != nil {
			return fmt.Errorf("connect mqtt: %w", err)
		}
		defer client.Close()
		dispatcher.SetEventSink(client)
		publisher = client
		mqttStatus = client

		startup := mqtt.SystemEvent{Timestamp: time.Now(), Event: "STARTUP", Retained: true}
		if err := client.PublishSystem(startup); err != nil {
			logger.Warn("startup event publish failed", "error", err)
		}
	}

	// Trigger inputs
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	openWatcher, err := newTriggerWatcher(board, cfg.Gate.OpenTrigger)
	if err != nil {
		return fmt.Errorf("init open trigger: %w", err)
	}
	closeWatcher, err := newTriggerWatcher(board, cfg.Gate.CloseTrigger)
	if err != nil {
		return fmt.Errorf("init close trigger: %w", err)
	}
	if openWatcher != nil || closeWatcher != nil {
		loop := gate.NewTriggerLoop(openWatcher, closeWatcher, dispatcher, logger.With("component", "trigger"))
		go loop.Run(ctx)
	}

	// HTTP API
	if cfg.HTTP.Enabled {
		srv := web.New(cfg.HTTP.Addr, tracker, dispatcher, repo, logger.With("component", "http"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
	}

	logger.Info("started",
		"gate", cfg.Gate.Name,
		"close_timeout", cfg.CloseTimeout(),
		"mqtt", cfg.MQTT.Enabled,
		"http", cfg.HTTP.Enabled,
		"history", cfg.History.Enabled,
	)

	monitorTick := time.NewTicker(monitorInterval)
	defer monitorTick.Stop()
	pruneTick := time.NewTicker(pruneInterval)
	defer pruneTick.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	err = runLoop(ctx, loopDeps{
		controller: controller,
		tracker:    tracker,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		recorder:   recorder,
		history:    repo,
		retention:  cfg.HistoryRetention(),
		logger:     logger,
		now:        time.Now,
	}, monitorTick.C, pruneTick.C, sigCh)

	// Stop the trigger loop and any in-flight operation before the deferred
	// closes tear down the transports.
	cancel()
	if stopErr := controller.Stop(context.Background()); stopErr != nil {
		logger.Error("motor stop on shutdown failed", "error", stopErr)
	}
	return err
}

// newTriggerWatcher builds a watcher for an optional trigger config.
func newTriggerWatcher(board *hal.GPIOBoard, tc *config.TriggerConfig) (*gate.TriggerWatcher, error) {
	if tc == nil {
		return nil, nil
	}
	sensor, err := hal.NewGPIOSensor(board, tc.Pin, tc.ReadingKey)
	if err != nil {
		return nil, err
	}
	return gate.NewTriggerWatcher(sensor, tc.ReadingKey, tc.Match), nil
}

// loopDeps carries what the monitor loop needs. Publisher, mqttStatus,
// recorder, and history may be nil.
type loopDeps struct {
	controller *gate.Controller
	tracker    *status.Tracker
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	recorder   telemetry.Recorder
	history    history.Repository
	retention  time.Duration
	logger     *logging.Logger
	now        func() time.Time
}

// runLoop refreshes the status tracker and telemetry until a shutdown signal
// arrives. It owns nothing; the caller tears down the transports.
func runLoop(ctx context.Context, deps loopDeps, tick, pruneTick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			deps.logger.Info("shutting down", "signal", s)
			if deps.publisher != nil {
				event := mqtt.SystemEvent{
					Timestamp: deps.now(),
					Event:     "SHUTDOWN",
					Reason:    signalName(s),
					Retained:  true,
				}
				if err := deps.publisher.PublishSystem(event); err != nil {
					deps.logger.Warn("shutdown event publish failed", "error", err)
				}
			}
			return nil

		case <-ctx.Done():
			return ctx.Err()

		case <-tick:
			sample, err := deps.controller.Sample(ctx)
			if err != nil {
				deps.logger.Debug("monitor sample failed", "error", err)
				continue
			}
			deps.tracker.SetLive(sample.State, sample.Value, deps.controller.Busy())
			if deps.mqttStatus != nil {
				deps.tracker.SetMQTTConnected(deps.mqttStatus.IsConnected())
			}
			if deps.recorder != nil {
				deps.recorder.RecordPosition(sample)
			}

		case <-pruneTick:
			if deps.history == nil || deps.retention <= 0 {
				continue
			}
			n, err := deps.history.Prune(ctx, deps.retention)
			if err != nil {
				deps.logger.Error("history prune failed", "error", err)
			} else if n > 0 {
				deps.logger.Info("pruned history", "rows", n)
			}
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
