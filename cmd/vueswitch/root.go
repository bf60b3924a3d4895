package main

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tejusbharadwaj/vueswitch/internal/api"
	"github.com/tejusbharadwaj/vueswitch/internal/config"
	"github.com/tejusbharadwaj/vueswitch/internal/monitor"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "vueswitch",
	Short: "Expose an Emporia Vue channel as a virtual switch",
	Long: `vueswitch polls the Emporia Vue cloud for one channel's power draw and
exposes it as a read-only switch that is on while the draw is at or above
a wattage threshold.`,
	SilenceUsage: true,
	Version:      version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger, nil
}

// setup loads the config and builds the logger every command needs.
func setup() (*config.Config, *logrus.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// configLines renders the effective switch configuration with secrets
// masked.
func configLines(cfg *config.Config) []string {
	return []string{
		fmt.Sprintf(`Config "emporiaVueUsername" --> %s`, config.MaskValue(cfg.Emporia.Username, 2)),
		fmt.Sprintf(`Config "emporiaVuePassword" --> %s`, config.MaskValue(cfg.Emporia.Password, 2)),
		fmt.Sprintf(`Config "emporiaVueChannelName" --> %s`, cfg.Emporia.ChannelName),
		fmt.Sprintf(`Config "wattageThreshold" --> %v`, cfg.Switch.WattageThreshold),
		fmt.Sprintf(`Config "refreshIntervalMinutes" --> %d`, cfg.Switch.RefreshIntervalMinutes),
	}
}

func logConfig(logger *logrus.Logger, cfg *config.Config) {
	for _, line := range configLines(cfg) {
		logger.Info(line)
	}
}

func newAPIClient(cfg *config.Config, logger *logrus.Logger) *api.Client {
	return api.NewClient(api.Options{
		APIURL:     cfg.Emporia.APIURL,
		CognitoURL: cfg.Emporia.CognitoURL,
		ClientID:   cfg.Emporia.ClientID,
	}, logger)
}

func credentials(cfg *config.Config) api.Credentials {
	return api.Credentials{
		Username:         cfg.Emporia.Username,
		Password:         cfg.Emporia.Password,
		TokenStoragePath: cfg.Emporia.TokenStorageFile,
	}
}

func monitorSettings(cfg *config.Config) monitor.Settings {
	return monitor.Settings{
		ChannelName:    cfg.Emporia.ChannelName,
		ThresholdWatts: cfg.Switch.WattageThreshold,
		Credentials:    credentials(cfg),
	}
}
