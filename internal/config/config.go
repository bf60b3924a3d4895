package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	MinRefreshIntervalMinutes     = 1
	MaxRefreshIntervalMinutes     = 59
	DefaultRefreshIntervalMinutes = 15
	DefaultWattageThreshold       = 10.0
	DefaultTimezone               = "America/New_York"
	DefaultTokenStorageFile       = "keys.json"
	DefaultChannelName            = "Unknown Channel"
	DefaultUsername               = "--NoUsernameSet--"
	DefaultPassword               = "--NoPasswordSet--"
	DefaultRateLimit              = 5.0
	DefaultRateLimitBurst         = 10
)

// Config holds all configuration for our application
type Config struct {
	Emporia  EmporiaConfig  `mapstructure:"emporia"`
	Switch   SwitchConfig   `mapstructure:"switch"`
	HomeKit  HomeKitConfig  `mapstructure:"homekit"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type EmporiaConfig struct {
	Username         string `mapstructure:"username"`
	Password         string `mapstructure:"password"`
	ChannelName      string `mapstructure:"channel_name"`
	TokenStorageFile string `mapstructure:"token_storage_file"`
	APIURL           string `mapstructure:"api_url"`
	CognitoURL       string `mapstructure:"cognito_url"`
	ClientID         string `mapstructure:"client_id"`
}

type SwitchConfig struct {
	Name                   string  `mapstructure:"name"`
	UniqueID               string  `mapstructure:"unique_id"`
	WattageThreshold       float64 `mapstructure:"wattage_threshold"`
	RefreshIntervalMinutes int     `mapstructure:"refresh_interval_minutes"`
	Timezone               string  `mapstructure:"timezone"`
}

type HomeKitConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Pin         string `mapstructure:"pin"`
	Addr        string `mapstructure:"addr"`
	StoragePath string `mapstructure:"storage_path"`
}

type MQTTConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Broker          string `mapstructure:"broker"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	ClientID        string `mapstructure:"client_id"`
	TopicPrefix     string `mapstructure:"topic_prefix"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
}

type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"`
	DSN     string `mapstructure:"dsn"`
}

type ServerConfig struct {
	HTTPPort       int     `mapstructure:"http_port"`
	GRPCPort       int     `mapstructure:"grpc_port"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	HistorySize    int     `mapstructure:"history_size"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// A missing file is not an error: defaults and VUESWITCH_* variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("VUESWITCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if len(data) > 0 {
		// First unmarshal into a map to handle type conversions
		var rawConfig map[string]interface{}
		if err := yaml.Unmarshal(data, &rawConfig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal raw config: %w", err)
		}

		// Expand ${VAR} references per value so secrets containing '$' or
		// YAML syntax survive untouched.
		expandValues(rawConfig)

		data, err = yaml.Marshal(rawConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal raw config: %w", err)
		}

		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.normalize()
	if _, err := time.LoadLocation(config.Switch.Timezone); err != nil {
		return nil, fmt.Errorf("invalid switch.timezone %q: %w", config.Switch.Timezone, err)
	}
	return &config, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} with the variable's value. Unset variables and
// any other '$' are left as written.
func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		if val, ok := os.LookupEnv(ref[2 : len(ref)-1]); ok {
			return val
		}
		return ref
	})
}

func expandValues(node interface{}) interface{} {
	switch n := node.(type) {
	case string:
		return expandEnv(n)
	case map[string]interface{}:
		for k, val := range n {
			n[k] = expandValues(val)
		}
	case []interface{}:
		for i, val := range n {
			n[i] = expandValues(val)
		}
	}
	return node
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("emporia.username", DefaultUsername)
	v.SetDefault("emporia.password", DefaultPassword)
	v.SetDefault("emporia.channel_name", DefaultChannelName)
	v.SetDefault("emporia.token_storage_file", DefaultTokenStorageFile)
	v.SetDefault("emporia.api_url", "https://api.emporiaenergy.com")
	v.SetDefault("emporia.cognito_url", "https://cognito-idp.us-east-2.amazonaws.com/")
	v.SetDefault("emporia.client_id", "4qte47jbstod8apnfic0bunmrq")

	v.SetDefault("switch.name", "Emporia Vue Virtual Switch")
	v.SetDefault("switch.unique_id", "A3F3BD92-B61C-46D0-9D8C-C940C8746445")
	v.SetDefault("switch.wattage_threshold", DefaultWattageThreshold)
	v.SetDefault("switch.refresh_interval_minutes", DefaultRefreshIntervalMinutes)
	v.SetDefault("switch.timezone", DefaultTimezone)

	v.SetDefault("homekit.enabled", true)
	v.SetDefault("homekit.pin", "00102003")
	v.SetDefault("homekit.addr", "")
	v.SetDefault("homekit.storage_path", "homekit")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "localhost:1883")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.client_id", "vueswitch")
	v.SetDefault("mqtt.topic_prefix", "vueswitch")
	v.SetDefault("mqtt.discovery_prefix", "homeassistant")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "readings.db")

	v.SetDefault("server.http_port", 9100)
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.rate_limit", DefaultRateLimit)
	v.SetDefault("server.rate_limit_burst", DefaultRateLimitBurst)
	v.SetDefault("server.history_size", 96)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// normalize silently corrects user input. The refresh interval is clamped
// and a non-positive threshold falls back to the default.
func (c *Config) normalize() {
	c.Switch.RefreshIntervalMinutes = ClampRefreshInterval(c.Switch.RefreshIntervalMinutes)
	if c.Switch.WattageThreshold <= 0 {
		c.Switch.WattageThreshold = DefaultWattageThreshold
	}
	if c.Switch.Timezone == "" {
		c.Switch.Timezone = DefaultTimezone
	}
	if c.Emporia.TokenStorageFile == "" {
		c.Emporia.TokenStorageFile = DefaultTokenStorageFile
	}
	if c.Server.HistorySize <= 0 {
		c.Server.HistorySize = 1
	}
}

// ClampRefreshInterval forces minutes into [1,59] so that it stays a valid
// cron minute step.
func ClampRefreshInterval(minutes int) int {
	if minutes < MinRefreshIntervalMinutes {
		return MinRefreshIntervalMinutes
	}
	if minutes > MaxRefreshIntervalMinutes {
		return MaxRefreshIntervalMinutes
	}
	return minutes
}
