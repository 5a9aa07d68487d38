// Package config loads daemon configuration from defaults, an optional
// YAML or JSON file and THERMOSTAT_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/sweeney/thermostat/internal/relay"
	"github.com/sweeney/thermostat/internal/sensor"
	"github.com/sweeney/thermostat/internal/thermostat"
)

// EnvPrefix is stripped from environment variable names before mapping,
// e.g. THERMOSTAT_CONTROL_TARGET_TEMPERATURE sets control.target_temperature.
const EnvPrefix = "THERMOSTAT_"

// DefaultPath is the config file read when no -config flag is given.
const DefaultPath = "thermostat.yaml"

// Config is the full daemon configuration.
type Config struct {
	HTTP    HTTPConfig    `koanf:"http"`
	MQTT    MQTTConfig    `koanf:"mqtt"`
	Sensor  SensorConfig  `koanf:"sensor"`
	Relay   RelayConfig   `koanf:"relay"`
	Control ControlConfig `koanf:"control"`
}

// HTTPConfig configures the local API. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
	// Assets holds mqtt.min.js for the live status page.
	Assets string `koanf:"assets"`
}

// MQTTConfig configures the status publisher. An empty Broker disables it.
type MQTTConfig struct {
	Broker      string        `koanf:"broker"`
	ClientID    string        `koanf:"client_id"`
	Username    string        `koanf:"username"`
	Password    string        `koanf:"password"`
	TopicPrefix string        `koanf:"topic_prefix"`
	Heartbeat   time.Duration `koanf:"heartbeat"`
	BufferSize  int           `koanf:"buffer_size"`
	// WSBroker is the websocket URL the status page uses for live updates.
	// "=broker" derives it from Broker, "off" disables.
	WSBroker string `koanf:"ws_broker"`
}

// SensorConfig configures the 1-Wire probe.
type SensorConfig struct {
	DevicesDir string `koanf:"devices_dir"`
}

// RelayConfig configures the heating relay output.
type RelayConfig struct {
	Chip      string `koanf:"chip"`
	Line      int    `koanf:"line"`
	ActiveLow bool   `koanf:"active_low"`
}

// ControlConfig holds the controller settings applied on the first start.
type ControlConfig struct {
	TargetTemperature    float64       `koanf:"target_temperature"`
	Hysteresis           float64       `koanf:"hysteresis"`
	PollInterval         time.Duration `koanf:"poll_interval"`
	MaxConsecutiveErrors int           `koanf:"max_consecutive_errors"`
	MinActuationInterval time.Duration `koanf:"min_actuation_interval"`
	ReadTimeout          time.Duration `koanf:"read_timeout"`
	// AutoStart starts the controller at boot instead of waiting for the API.
	AutoStart bool `koanf:"autostart"`
}

// Default returns the built-in configuration.
func Default() Config {
	tc := thermostat.DefaultConfig()
	return Config{
		HTTP: HTTPConfig{Addr: ":8080", Assets: "/usr/share/thermostat/web"},
		MQTT: MQTTConfig{
			ClientID:    "thermostat",
			TopicPrefix: "home/thermostat",
			Heartbeat:   15 * time.Minute,
			BufferSize:  100,
			WSBroker:    "=broker",
		},
		Sensor: SensorConfig{DevicesDir: sensor.DefaultDevicesDir},
		Relay: RelayConfig{
			Chip:      relay.DefaultChip,
			Line:      relay.DefaultLine,
			ActiveLow: true,
		},
		Control: ControlConfig{
			TargetTemperature:    tc.TargetTemperature,
			Hysteresis:           tc.Hysteresis,
			PollInterval:         tc.PollInterval,
			MaxConsecutiveErrors: tc.MaxConsecutiveErrors,
			MinActuationInterval: tc.MinActuationInterval,
			ReadTimeout:          tc.ReadTimeout,
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := loadFile(k, path); err != nil {
			return Config{}, err
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envTransform,
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	var parser koanf.Parser
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config extension %q", ext)
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Printf("config: %s not found, using defaults", path)
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// envTransform maps SECTION_FIELD_NAME to section.field_name.
func envTransform(key, value string) (string, any) {
	return envKeyTransform(strings.TrimPrefix(key, EnvPrefix)), value
}

func envKeyTransform(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	section, field, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + field
}

// Validate checks the control settings and the relay line.
func (c Config) Validate() error {
	if err := c.Thermostat().Validate(); err != nil {
		return err
	}
	if c.Relay.Line < 0 {
		return fmt.Errorf("%w: relay line must not be negative, got %d", thermostat.ErrValidation, c.Relay.Line)
	}
	if c.MQTT.Heartbeat < 0 {
		return fmt.Errorf("%w: heartbeat must not be negative, got %v", thermostat.ErrValidation, c.MQTT.Heartbeat)
	}
	return nil
}

// Thermostat returns the controller config.
func (c Config) Thermostat() thermostat.Config {
	return thermostat.Config{
		TargetTemperature:    c.Control.TargetTemperature,
		Hysteresis:           c.Control.Hysteresis,
		PollInterval:         c.Control.PollInterval,
		MaxConsecutiveErrors: c.Control.MaxConsecutiveErrors,
		MinActuationInterval: c.Control.MinActuationInterval,
		ReadTimeout:          c.Control.ReadTimeout,
	}
}

// RelayBackend returns the relay backend config.
func (c Config) RelayBackend() relay.Config {
	return relay.Config{
		Chip:      c.Relay.Chip,
		Line:      c.Relay.Line,
		ActiveLow: c.Relay.ActiveLow,
	}
}
