package telemetry

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/gmulz/viam-automated-gate/internal/config"
	"github.com/gmulz/viam-automated-gate/internal/gate"
	"github.com/gmulz/viam-automated-gate/internal/logging"
)

// InfluxRecorder writes telemetry points to an InfluxDB v2 bucket using the
// non-blocking batched write API.
type InfluxRecorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	gateName string
	logger   *logging.Logger
}

// NewInflux creates a recorder from configuration. Async write errors are
// logged, not surfaced.
func NewInflux(cfg config.InfluxConfig, gateName string, logger *logging.Logger) *InfluxRecorder {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	r := &InfluxRecorder{
		client:   client,
		writeAPI: writeAPI,
		gateName: gateName,
		logger:   logger,
	}

	go func() {
		for err := range writeAPI.Errors() {
			logger.Warn("telemetry write failed", "error", err)
		}
	}()

	return r
}

// RecordPosition writes one position sample.
func (r *InfluxRecorder) RecordPosition(sample gate.Sample) {
	point := write.NewPoint(
		"gate_position",
		map[string]string{
			"gate":  r.gateName,
			"state": string(sample.State),
		},
		map[string]interface{}{
			"value": sample.Value,
		},
		time.Now(),
	)
	r.writeAPI.WritePoint(point)
}

// RecordOutcome writes one completed operation.
func (r *InfluxRecorder) RecordOutcome(op string, o gate.Outcome) {
	point := write.NewPoint(
		"gate_operation",
		map[string]string{
			"gate":   r.gateName,
			"op":     op,
			"reason": string(o.Reason),
			"state":  string(o.FinalState),
		},
		map[string]interface{}{
			"position":    o.Position,
			"duration_ms": durationMs(o.Duration),
		},
		time.Now(),
	)
	r.writeAPI.WritePoint(point)
}

// Close flushes pending points and closes the client.
func (r *InfluxRecorder) Close() {
	r.writeAPI.Flush()
	r.client.Close()
}
