// Package config loads the bridge's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
)

// Defaults applied to fields the file leaves out.
const (
	DefaultBaudRate  = 19200
	DefaultBroker    = "tcp://127.0.0.1:1883"
	DefaultKeepAlive = 30 * time.Second
	DefaultStorage   = "data"
	DefaultRetries   = 3
	DefaultTimeout   = 5 * time.Second
)

var (
	ErrNoPort     = errors.New("insteon.port is required")
	ErrBadDevice  = errors.New("invalid device entry")
	ErrDuplicate  = errors.New("duplicate device address")
	ErrUnknownTyp = errors.New("unknown device type")
)

// DeviceTypes lists the device personalities the bridge knows how to
// build.
var DeviceTypes = []string{"switch", "dimmer"}

// Config is the root of the configuration file.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Insteon InsteonConfig `yaml:"insteon"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
}

// LoggingConfig controls console and capture output.
type LoggingConfig struct {
	// Level is the console log level: debug, info, warn, or error.
	Level string `yaml:"level"`

	// Capture, when set, is the path of a CBOR protocol capture file.
	Capture string `yaml:"capture"`
}

// InsteonConfig covers the PLM side of the bridge.
type InsteonConfig struct {
	// Port is the PLM serial device path.
	Port string `yaml:"port"`

	// Baudrate defaults to 19200.
	Baudrate int `yaml:"baudrate"`

	// Address is the modem's Insteon address, when known ahead of the
	// first GetModemInfo exchange.
	Address insteon.Address `yaml:"address"`

	// Storage is the directory device databases are saved in.
	Storage string `yaml:"storage"`

	// StartupRefresh triggers a database download for every device at
	// startup.
	StartupRefresh bool `yaml:"startup_refresh"`

	// Retries is the send retry budget per command.
	Retries int `yaml:"retries"`

	// Timeout is the reply deadline per send attempt.
	Timeout time.Duration `yaml:"timeout"`

	// Devices lists the Insteon devices the bridge manages.
	Devices []DeviceConfig `yaml:"devices"`
}

// DeviceConfig describes one managed device.
type DeviceConfig struct {
	Address insteon.Address `yaml:"address"`
	Type    string          `yaml:"type"`
	Name    string          `yaml:"name"`
}

// MQTTConfig covers the broker connection.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. "tcp://127.0.0.1:1883".
	Broker string `yaml:"broker"`

	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	KeepAlive time.Duration `yaml:"keep_alive"`
}

// Load reads and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes, validates, and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Insteon.Baudrate <= 0 {
		c.Insteon.Baudrate = DefaultBaudRate
	}
	if c.Insteon.Storage == "" {
		c.Insteon.Storage = DefaultStorage
	}
	if c.Insteon.Retries <= 0 {
		c.Insteon.Retries = DefaultRetries
	}
	if c.Insteon.Timeout <= 0 {
		c.Insteon.Timeout = DefaultTimeout
	}
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = DefaultBroker
	}
	if c.MQTT.KeepAlive <= 0 {
		c.MQTT.KeepAlive = DefaultKeepAlive
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.Insteon.Port == "" {
		return ErrNoPort
	}

	seen := make(map[insteon.Address]bool, len(c.Insteon.Devices))
	for i, dev := range c.Insteon.Devices {
		if dev.Address == (insteon.Address{}) {
			return fmt.Errorf("%w: devices[%d] has no address", ErrBadDevice, i)
		}
		if seen[dev.Address] {
			return fmt.Errorf("%w: %s", ErrDuplicate, dev.Address)
		}
		seen[dev.Address] = true

		if !knownType(dev.Type) {
			return fmt.Errorf("%w: %q for device %s", ErrUnknownTyp, dev.Type, dev.Address)
		}
	}
	return nil
}

func knownType(t string) bool {
	for _, known := range DeviceTypes {
		if t == known {
			return true
		}
	}
	return false
}
