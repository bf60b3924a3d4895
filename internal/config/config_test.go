package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
emporia:
  username: "user@example.com"
  password: "hunter22"
  channel_name: "Dryer"

switch:
  wattage_threshold: 50
  refresh_interval_minutes: 5

mqtt:
  enabled: true
  broker: "mqtt.local:1883"

logging:
  level: "debug"
  format: "text"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	config, err := Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "user@example.com", config.Emporia.Username)
	assert.Equal(t, "hunter22", config.Emporia.Password)
	assert.Equal(t, "Dryer", config.Emporia.ChannelName)
	assert.Equal(t, 50.0, config.Switch.WattageThreshold)
	assert.Equal(t, 5, config.Switch.RefreshIntervalMinutes)
	assert.True(t, config.MQTT.Enabled)
	assert.Equal(t, "mqtt.local:1883", config.MQTT.Broker)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "text", config.Logging.Format)

	// untouched sections keep their defaults
	assert.Equal(t, DefaultTimezone, config.Switch.Timezone)
	assert.Equal(t, DefaultTokenStorageFile, config.Emporia.TokenStorageFile)
	assert.Equal(t, 9100, config.Server.HTTPPort)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultChannelName, config.Emporia.ChannelName)
	assert.Equal(t, DefaultUsername, config.Emporia.Username)
	assert.Equal(t, DefaultPassword, config.Emporia.Password)
	assert.Equal(t, DefaultWattageThreshold, config.Switch.WattageThreshold)
	assert.Equal(t, DefaultRefreshIntervalMinutes, config.Switch.RefreshIntervalMinutes)
	assert.True(t, config.HomeKit.Enabled)
	assert.False(t, config.Database.Enabled)
	assert.Equal(t, DefaultRateLimit, config.Server.RateLimit)
	assert.Equal(t, DefaultRateLimitBurst, config.Server.RateLimitBurst)
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Setenv("APP_EMPORIA_PASSWORD", "from-env")
	t.Setenv("VUESWITCH_EMPORIA_CHANNEL_NAME", "Heat Pump")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
emporia:
  username: "user@example.com"
  password: "${APP_EMPORIA_PASSWORD}"
  channel_name: "Dryer"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	config, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "from-env", config.Emporia.Password)
	assert.Equal(t, "Heat Pump", config.Emporia.ChannelName)
}

func TestLoadClampsRefreshInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval string
		want     int
	}{
		{name: "zero", interval: "0", want: 1},
		{name: "negative", interval: "-5", want: 1},
		{name: "sixty", interval: "60", want: 59},
		{name: "in range", interval: "30", want: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			content := "switch:\n  refresh_interval_minutes: " + tt.interval + "\n"
			require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

			config, err := Load(configPath)
			require.NoError(t, err)
			assert.Equal(t, tt.want, config.Switch.RefreshIntervalMinutes)
		})
	}
}

func TestLoadNonPositiveThresholdFallsBack(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("switch:\n  wattage_threshold: 0\n"), 0644))

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, DefaultWattageThreshold, config.Switch.WattageThreshold)
}

func TestLoadInvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("emporia: [unclosed"), 0644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestClampRefreshInterval(t *testing.T) {
	assert.Equal(t, 1, ClampRefreshInterval(0))
	assert.Equal(t, 1, ClampRefreshInterval(-10))
	assert.Equal(t, 59, ClampRefreshInterval(60))
	assert.Equal(t, 1, ClampRefreshInterval(1))
	assert.Equal(t, 59, ClampRefreshInterval(59))
}

func TestLoadKeepsLiteralDollarSigns(t *testing.T) {
	t.Setenv("WORD1", "should-not-be-used")
	t.Setenv("MQTT_PASS", "a: b # c")

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
emporia:
  password: "pa$word1"
  username: "${UNSET_VUESWITCH_TEST_VAR}"
mqtt:
  password: "${MQTT_PASS}"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "pa$word1", config.Emporia.Password)
	assert.Equal(t, "${UNSET_VUESWITCH_TEST_VAR}", config.Emporia.Username)
	assert.Equal(t, "a: b # c", config.MQTT.Password)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("VUESWITCH_TEST_HOST", "broker")

	assert.Equal(t, "tcp://broker:1883", expandEnv("tcp://${VUESWITCH_TEST_HOST}:1883"))
	assert.Equal(t, "$VUESWITCH_TEST_HOST", expandEnv("$VUESWITCH_TEST_HOST"))
	assert.Equal(t, "$$", expandEnv("$$"))
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("switch:\n  timezone: Mars/Olympus_Mons\n"), 0644))

	_, err := Load(configPath)
	assert.ErrorContains(t, err, "invalid switch.timezone")
}
