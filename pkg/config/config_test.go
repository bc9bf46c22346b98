package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insteon-mqtt/insteon-go/pkg/config"
	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
)

const fullConfig = `
logging:
  level: debug
  capture: /var/log/insteon-capture.cbor
insteon:
  port: /dev/ttyUSB0
  address: 44.85.11
  storage: /var/lib/insteon
  startup_refresh: true
  retries: 5
  timeout: 8s
  devices:
    - address: 3a.29.84
      type: dimmer
      name: lamp
    - address: 48.3d.46
      type: switch
      name: porch
mqtt:
  broker: tcp://broker.local:1883
  client_id: bridge
  username: insteon
  password: hunter2
  keep_alive: 60s
`

func TestParse_Full(t *testing.T) {
	cfg, err := config.Parse([]byte(fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/var/log/insteon-capture.cbor", cfg.Logging.Capture)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Insteon.Port)
	assert.Equal(t, config.DefaultBaudRate, cfg.Insteon.Baudrate)
	assert.Equal(t, insteon.MustAddress("44.85.11"), cfg.Insteon.Address)
	assert.Equal(t, "/var/lib/insteon", cfg.Insteon.Storage)
	assert.True(t, cfg.Insteon.StartupRefresh)
	assert.Equal(t, 5, cfg.Insteon.Retries)
	assert.Equal(t, 8*time.Second, cfg.Insteon.Timeout)

	require.Len(t, cfg.Insteon.Devices, 2)
	assert.Equal(t, insteon.MustAddress("3a.29.84"), cfg.Insteon.Devices[0].Address)
	assert.Equal(t, "dimmer", cfg.Insteon.Devices[0].Type)
	assert.Equal(t, "lamp", cfg.Insteon.Devices[0].Name)

	assert.Equal(t, "tcp://broker.local:1883", cfg.MQTT.Broker)
	assert.Equal(t, "bridge", cfg.MQTT.ClientID)
	assert.Equal(t, "insteon", cfg.MQTT.Username)
	assert.Equal(t, 60*time.Second, cfg.MQTT.KeepAlive)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse([]byte("insteon:\n  port: /dev/ttyUSB0\n"))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultBaudRate, cfg.Insteon.Baudrate)
	assert.Equal(t, config.DefaultStorage, cfg.Insteon.Storage)
	assert.Equal(t, config.DefaultRetries, cfg.Insteon.Retries)
	assert.Equal(t, config.DefaultTimeout, cfg.Insteon.Timeout)
	assert.Equal(t, config.DefaultBroker, cfg.MQTT.Broker)
	assert.Equal(t, config.DefaultKeepAlive, cfg.MQTT.KeepAlive)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Insteon.StartupRefresh)
}

func TestParse_MissingPort(t *testing.T) {
	_, err := config.Parse([]byte("mqtt:\n  broker: tcp://localhost:1883\n"))
	require.ErrorIs(t, err, config.ErrNoPort)
}

func TestParse_DeviceValidation(t *testing.T) {
	base := "insteon:\n  port: /dev/ttyUSB0\n  devices:\n"

	_, err := config.Parse([]byte(base + "    - type: dimmer\n"))
	assert.ErrorIs(t, err, config.ErrBadDevice)

	_, err = config.Parse([]byte(base +
		"    - address: 3a.29.84\n      type: dimmer\n" +
		"    - address: 3a.29.84\n      type: switch\n"))
	assert.ErrorIs(t, err, config.ErrDuplicate)

	_, err = config.Parse([]byte(base +
		"    - address: 3a.29.84\n      type: toaster\n"))
	assert.ErrorIs(t, err, config.ErrUnknownTyp)
}

func TestParse_BadAddress(t *testing.T) {
	_, err := config.Parse([]byte(
		"insteon:\n  port: /dev/ttyUSB0\n  address: not-an-address\n"))
	require.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullConfig), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Insteon.Port)

	_, err = config.Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
