// Package config loads and validates the daemon's YAML configuration.
// All configuration errors are fatal at startup; the control loop never
// sees an invalid range, power, or timeout.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Gate    GateConfig    `yaml:"gate"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
	History HistoryConfig `yaml:"history"`
	Influx  InfluxConfig  `yaml:"influx"`
	Logging LoggingConfig `yaml:"logging"`
}

// GateConfig describes the gate hardware and control parameters.
type GateConfig struct {
	Name           string         `yaml:"name"`
	Board          BoardConfig    `yaml:"board"`
	Motor          MotorConfig    `yaml:"motor"`
	PositionSensor PositionConfig `yaml:"position_sensor"`
	OpenTrigger    *TriggerConfig `yaml:"open_trigger"`
	CloseTrigger   *TriggerConfig `yaml:"close_trigger"`

	// CloseTimeoutSecs bounds a close operation; opens get 1.5x this value.
	CloseTimeoutSecs float64 `yaml:"close_timeout"`
}

// BoardConfig identifies the GPIO chip the motor and triggers are wired to.
type BoardConfig struct {
	Chip string `yaml:"chip"`
}

// MotorConfig describes the relay pins and drive power.
type MotorConfig struct {
	ClosePin int `yaml:"close_pin"`
	OpenPin  int `yaml:"open_pin"`

	// Power is the default drive power in [0, 1].
	Power float64 `yaml:"power"`

	// OpenPower and ClosePower override Power per direction when set.
	OpenPower  *float64 `yaml:"open_power"`
	ClosePower *float64 `yaml:"close_power"`
}

// PositionConfig describes the analog position sensor and its ranges.
type PositionConfig struct {
	// ADCPath is the sysfs IIO raw channel file to read.
	ADCPath string `yaml:"adc_path"`

	// ReadingKey names the reading extracted from the sensor.
	ReadingKey string `yaml:"reading_key"`

	OpenRange  RangeConfig `yaml:"open_range"`
	CloseRange RangeConfig `yaml:"close_range"`
}

// RangeConfig is an inclusive position interval.
type RangeConfig struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// TriggerConfig describes one trigger sensor and its match condition.
type TriggerConfig struct {
	Pin        int    `yaml:"pin"`
	ReadingKey string `yaml:"reading_key"`
	Match      string `yaml:"match"`
}

// MQTTConfig contains the MQTT command/event transport settings.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`

	// TopicPrefix is prepended to command/response/events/system topics.
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// HTTPConfig contains the HTTP API settings.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// HistoryConfig contains the SQLite operation history settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`

	// RetentionDays prunes older entries; 0 keeps everything.
	RetentionDays int `yaml:"retention_days"`
}

// InfluxConfig contains the optional telemetry settings.
type InfluxConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads, parses, defaults, and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses, defaults, and validates raw YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Gate.Name == "" {
		c.Gate.Name = "gate"
	}
	if c.Gate.Board.Chip == "" {
		c.Gate.Board.Chip = "gpiochip0"
	}
	if c.Gate.Motor.Power == 0 {
		c.Gate.Motor.Power = 1.0
	}
	if c.Gate.CloseTimeoutSecs == 0 {
		c.Gate.CloseTimeoutSecs = 30.0
	}
	if c.Gate.PositionSensor.ReadingKey == "" {
		c.Gate.PositionSensor.ReadingKey = "position"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "automated-gate"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "gate/" + c.Gate.Name
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.History.Path == "" {
		c.History.Path = "gate-history.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate enforces the configuration invariants. Any failure here is fatal
// to starting the service.
func (c *Config) Validate() error {
	m := c.Gate.Motor
	if m.ClosePin == 0 && m.OpenPin == 0 {
		return fmt.Errorf("gate.motor: close_pin and open_pin are required")
	}
	if m.ClosePin == m.OpenPin {
		return fmt.Errorf("gate.motor: close_pin and open_pin must differ")
	}
	if err := validPower("gate.motor.power", m.Power); err != nil {
		return err
	}
	if m.OpenPower != nil {
		if err := validPower("gate.motor.open_power", *m.OpenPower); err != nil {
			return err
		}
	}
	if m.ClosePower != nil {
		if err := validPower("gate.motor.close_power", *m.ClosePower); err != nil {
			return err
		}
	}

	p := c.Gate.PositionSensor
	if p.ADCPath == "" {
		return fmt.Errorf("gate.position_sensor.adc_path is required")
	}
	if err := validRange("gate.position_sensor.open_range", p.OpenRange); err != nil {
		return err
	}
	if err := validRange("gate.position_sensor.close_range", p.CloseRange); err != nil {
		return err
	}
	if rangesOverlap(p.OpenRange, p.CloseRange) {
		return fmt.Errorf("gate.position_sensor: open_range and close_range overlap")
	}

	if c.Gate.CloseTimeoutSecs <= 0 {
		return fmt.Errorf("gate.close_timeout must be positive, got %v", c.Gate.CloseTimeoutSecs)
	}

	if err := validTrigger("gate.open_trigger", c.Gate.OpenTrigger); err != nil {
		return err
	}
	if err := validTrigger("gate.close_trigger", c.Gate.CloseTrigger); err != nil {
		return err
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1, or 2, got %d", c.MQTT.QoS)
		}
	}
	if c.Influx.Enabled {
		if c.Influx.URL == "" || c.Influx.Org == "" || c.Influx.Bucket == "" {
			return fmt.Errorf("influx: url, org, and bucket are required when influx is enabled")
		}
	}
	return nil
}

func validPower(field string, power float64) error {
	if power < 0 || power > 1 {
		return fmt.Errorf("%s must be in [0, 1], got %v", field, power)
	}
	return nil
}

func validRange(field string, r RangeConfig) error {
	if r.Min > r.Max {
		return fmt.Errorf("%s: min %v greater than max %v", field, r.Min, r.Max)
	}
	return nil
}

func rangesOverlap(a, b RangeConfig) bool {
	return a.Min <= b.Max && b.Min <= a.Max
}

func validTrigger(field string, t *TriggerConfig) error {
	if t == nil {
		return nil
	}
	if t.ReadingKey == "" {
		return fmt.Errorf("%s.reading_key is required", field)
	}
	if t.Match == "" {
		return fmt.Errorf("%s.match is required", field)
	}
	return nil
}

// CloseTimeout returns the close operation timeout as a duration.
func (c *Config) CloseTimeout() time.Duration {
	return time.Duration(c.Gate.CloseTimeoutSecs * float64(time.Second))
}

// OpenPower returns the effective open drive power.
func (c *Config) OpenPower() float64 {
	if c.Gate.Motor.OpenPower != nil {
		return *c.Gate.Motor.OpenPower
	}
	return c.Gate.Motor.Power
}

// ClosePower returns the effective close drive power.
func (c *Config) ClosePower() float64 {
	if c.Gate.Motor.ClosePower != nil {
		return *c.Gate.Motor.ClosePower
	}
	return c.Gate.Motor.Power
}

// HistoryRetention returns the prune horizon, or 0 when retention is
// unlimited.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}
