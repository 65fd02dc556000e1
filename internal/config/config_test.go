package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
device_id: "WRIST-07"
engine:
  window_size: 30
  sensitivity: 0.8
  thresholds:
    idle: 0.004
    standing: 0.04
    walking: 0.15
    running: 0.9
  sudden_stop:
    cooldown: 45s
mqtt:
  enabled: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "WRIST-07", cfg.DeviceID)
	assert.Equal(t, 30, cfg.Engine.WindowSize)
	assert.InDelta(t, 0.8, cfg.Engine.Sensitivity, 1e-9)
	assert.Equal(t, 45*time.Second, cfg.Engine.SuddenStop.Cooldown)
	assert.Equal(t, 50, cfg.Engine.SuddenStop.MinHistory, "campos omitidos conservan el default")
	assert.Equal(t, 30*time.Second, cfg.Engine.SettingsRefresh)
	assert.InDelta(t, 0.85, cfg.Engine.GyroWeight, 1e-9)
	assert.True(t, cfg.MQTT.Enabled)
}

func TestLoadConfigReplacesDeviceID(t *testing.T) {
	path := writeConfig(t, "device_id: \"W1\"\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "wearer/W1/activity", cfg.MQTT.Topics.Activity)
	assert.Equal(t, "wearer/W1/anomaly", cfg.MQTT.Topics.Anomaly)
	assert.Equal(t, "har-W1", cfg.MQTT.ClientID)
	assert.Equal(t, "wearer.W1.anomaly", cfg.RabbitMQ.RoutingKeys.Anomaly)
	assert.Equal(t, "HAR Monitor - W1", cfg.UI.Window.Title)
}

func TestLoadConfigRejectsUnorderedThresholds(t *testing.T) {
	path := writeConfig(t, `
engine:
  thresholds:
    idle: 0.5
    standing: 0.04
    walking: 0.15
    running: 0.9
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thresholds")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateSettingsSource(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Settings.Source = "sqlite"
	assert.Error(t, cfg.Validate(), "sqlite sin store habilitado")

	cfg.Store.Enabled = true
	assert.NoError(t, cfg.Validate())

	cfg.Settings.Source = "cloud"
	assert.Error(t, cfg.Validate())
}

func TestWithDeviceID(t *testing.T) {
	base := *Default()
	base = replaceDeviceIDPlaceholders(base)

	other := base.WithDeviceID("W-2")
	assert.Equal(t, "wearer/W-2/status", other.MQTT.Topics.Status)
	assert.Equal(t, "wearer.W-2.activity", other.RabbitMQ.RoutingKeys.Activity)
	assert.Equal(t, "wearer/WEARER-DEFAULT/status", base.MQTT.Topics.Status)
}
