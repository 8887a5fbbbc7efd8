// Package config handles configuration loading from YAML files and environment variables.
// Configuration precedence: CLI flags > environment variables > config file > embedded > defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Sink kinds.
const (
	SinkInflux = "influx"
	SinkMQTT   = "mqtt"
	SinkBoth   = "both"
)

// Sensor modes.
const (
	ModeI2C = "i2c"
	ModeSim = "sim"
)

// Duration is a wrapper around time.Duration that supports YAML unmarshaling
// from human-readable strings like "1s", "30s", "1m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		parsed, err := time.ParseDuration(value.Value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value.Value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("unsupported duration format: %v", value.Kind)
	}
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds all station configuration.
type Config struct {
	Sink     SinkConfig     `yaml:"sink"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Sensors  SensorsConfig  `yaml:"sensors"`
	Logging  LoggingConfig  `yaml:"logging"`
	Status   StatusConfig   `yaml:"status"`
}

// SinkConfig selects and configures where averages are written.
type SinkConfig struct {
	Kind        string       `yaml:"kind"`
	Measurement string       `yaml:"measurement"`
	Influx      InfluxConfig `yaml:"influx"`
	MQTT        MQTTConfig   `yaml:"mqtt"`
}

// InfluxConfig holds InfluxDB line-protocol write settings.
type InfluxConfig struct {
	URL      string   `yaml:"url"`
	Database string   `yaml:"database"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	Gzip     bool     `yaml:"gzip"`
	Timeout  Duration `yaml:"timeout"`
}

// MQTTConfig holds MQTT publisher settings.
type MQTTConfig struct {
	Broker         string   `yaml:"broker"`
	ClientID       string   `yaml:"client_id"`
	TopicPrefix    string   `yaml:"topic_prefix"`
	Username       string   `yaml:"username,omitempty"`
	Password       string   `yaml:"password,omitempty"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
}

// ScheduleConfig holds the reporting tick and polling cadences.
type ScheduleConfig struct {
	Tick           Duration `yaml:"tick"`
	PollInterval   Duration `yaml:"poll_interval"`
	DerivedBackoff Duration `yaml:"derived_backoff"`
}

// SensorsConfig selects the instruments assembled at startup.
type SensorsConfig struct {
	Mode            string `yaml:"mode"`
	I2CBus          string `yaml:"i2c_bus"`
	MPL3115A2       bool   `yaml:"mpl3115a2"`
	AHTx0           bool   `yaml:"ahtx0"`
	SGP40           bool   `yaml:"sgp40"`
	TSL2561         bool   `yaml:"tsl2561"`
	LTR390          bool   `yaml:"ltr390"`
	HostTemperature bool   `yaml:"host_temperature"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// StatusConfig holds the read-only status page settings.
type StatusConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Address   string  `yaml:"address"`
	History   int     `yaml:"history"`
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Sink: SinkConfig{
			Kind:        SinkInflux,
			Measurement: "value",
			Influx: InfluxConfig{
				URL:      "http://127.0.0.1:8086",
				Database: "sensors",
				Timeout:  Duration{5 * time.Second},
			},
			MQTT: MQTTConfig{
				Broker:         "tcp://127.0.0.1:1883",
				ClientID:       "aerostat",
				TopicPrefix:    "aerostat",
				ConnectTimeout: Duration{10 * time.Second},
			},
		},
		Schedule: ScheduleConfig{
			Tick:           Duration{1 * time.Second},
			PollInterval:   Duration{1 * time.Second},
			DerivedBackoff: Duration{60 * time.Second},
		},
		Sensors: SensorsConfig{
			Mode:            ModeI2C,
			I2CBus:          "",
			MPL3115A2:       true,
			AHTx0:           true,
			SGP40:           true,
			TSL2561:         true,
			LTR390:          false,
			HostTemperature: false,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 4,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Status: StatusConfig{
			Enabled:   true,
			Address:   ":8080",
			History:   500,
			RateLimit: 20,
			Burst:     40,
		},
	}
}

// LoadFromBytes parses YAML configuration from a byte slice and merges with defaults.
// Environment variables take highest precedence and override values from the byte slice.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config data: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// Load reads configuration from a YAML file and merges with defaults.
// If path is empty or the file does not exist, only defaults and environment
// variables are used.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromBytes(nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		return LoadFromBytes(nil)
	}

	return LoadFromBytes(data)
}

// CLIOverrides holds values from command-line flags.
// Empty strings are treated as "not set" and skipped.
type CLIOverrides struct {
	SinkURL    string
	LogLevel   string
	SensorMode string
	StatusAddr string
}

// Locate searches standard config file paths and returns the first one found.
// Returns empty string if no config file exists.
func Locate() string {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadLayered loads configuration with the full precedence chain:
// CLI flags > env vars > external YAML file > embedded bytes > defaults.
//
// An optional configPath argument controls external-file discovery:
//   - omitted        → auto-discover via Locate()
//   - explicit value  → use that path ("" means no external file)
func LoadLayered(cli CLIOverrides, embedded []byte, configPath ...string) (*Config, error) {
	cfg := DefaultConfig()

	if len(embedded) > 0 {
		if err := yaml.Unmarshal(embedded, cfg); err != nil {
			return nil, fmt.Errorf("parsing embedded config: %w", err)
		}
	}

	var filePath string
	if len(configPath) > 0 {
		filePath = configPath[0]
	} else {
		filePath = Locate()
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file %s: %w", filePath, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if cli.SinkURL != "" {
		cfg.Sink.Influx.URL = cli.SinkURL
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.SensorMode != "" {
		cfg.Sensors.Mode = cli.SensorMode
	}
	if cli.StatusAddr != "" {
		cfg.Status.Address = cli.StatusAddr
	}

	return cfg, nil
}

// WriteConfig serializes the config to a YAML file at the given path.
// Creates parent directories if needed.
func WriteConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0640)
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AEROSTAT_SINK_URL"); v != "" {
		cfg.Sink.Influx.URL = v
	}
	if v := os.Getenv("AEROSTAT_MQTT_BROKER"); v != "" {
		cfg.Sink.MQTT.Broker = v
	}
	if v := os.Getenv("AEROSTAT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AEROSTAT_STATUS_ADDR"); v != "" {
		cfg.Status.Address = v
	}
	if v := os.Getenv("AEROSTAT_I2C_BUS"); v != "" {
		cfg.Sensors.I2CBus = v
	}
	if v := os.Getenv("AEROSTAT_SENSOR_MODE"); v != "" {
		cfg.Sensors.Mode = v
	}
}

// Validate checks that the configuration can drive a running station.
func (c *Config) Validate() error {
	switch c.Sink.Kind {
	case SinkInflux, SinkMQTT, SinkBoth:
	default:
		return fmt.Errorf("unknown sink kind %q", c.Sink.Kind)
	}
	if c.Sink.Measurement == "" {
		return fmt.Errorf("sink measurement is required")
	}
	if c.Sink.Kind != SinkMQTT {
		u, err := url.Parse(c.Sink.Influx.URL)
		if err != nil {
			return fmt.Errorf("invalid influx URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("influx URL must use http or https (got: %s)", c.Sink.Influx.URL)
		}
		if c.Sink.Influx.Database == "" {
			return fmt.Errorf("influx database is required")
		}
	}
	if c.Sink.Kind != SinkInflux && c.Sink.MQTT.Broker == "" {
		return fmt.Errorf("mqtt broker is required")
	}

	if c.Schedule.Tick.Duration <= 0 {
		return fmt.Errorf("schedule tick must be positive")
	}
	if c.Schedule.PollInterval.Duration <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Schedule.DerivedBackoff.Duration < c.Schedule.PollInterval.Duration {
		return fmt.Errorf("derived backoff (%s) must not be shorter than the poll interval (%s)",
			c.Schedule.DerivedBackoff.Duration, c.Schedule.PollInterval.Duration)
	}

	switch c.Sensors.Mode {
	case ModeI2C, ModeSim:
	default:
		return fmt.Errorf("unknown sensor mode %q", c.Sensors.Mode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}

	if c.Status.Enabled {
		if c.Status.Address == "" {
			return fmt.Errorf("status address is required when the status page is enabled")
		}
		if c.Status.History <= 0 {
			return fmt.Errorf("status history must be positive")
		}
	}
	return nil
}
