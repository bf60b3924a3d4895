package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/tejusbharadwaj/vueswitch/internal/config"
	"github.com/tejusbharadwaj/vueswitch/internal/models"
)

func TestConfigLinesMaskSecrets(t *testing.T) {
	cfg := &config.Config{
		Emporia: config.EmporiaConfig{Username: "user@example.com", Password: "hunter22", ChannelName: "Dryer"},
		Switch:  config.SwitchConfig{WattageThreshold: 25, RefreshIntervalMinutes: 5},
	}

	assert.Equal(t, []string{
		`Config "emporiaVueUsername" --> us************om`,
		`Config "emporiaVuePassword" --> hu****22`,
		`Config "emporiaVueChannelName" --> Dryer`,
		`Config "wattageThreshold" --> 25`,
		`Config "refreshIntervalMinutes" --> 5`,
	}, configLines(cfg))
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(config.LoggingConfig{Level: "debug", Format: "text"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)

	logger, err = newLogger(config.LoggingConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	_, err = newLogger(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestBuildHostsNoneEnabled(t *testing.T) {
	logger, hook := test.NewNullLogger()
	cfg := &config.Config{}

	hosts, err := buildHosts(cfg, logger)
	require.NoError(t, err)
	assert.Empty(t, hosts)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestBuildHostsMQTTRequiresBroker(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := &config.Config{MQTT: config.MQTTConfig{Enabled: true}}

	_, err := buildHosts(cfg, logger)
	assert.Error(t, err)
}

func TestHistoryRequiresDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  enabled: false\n"), 0o600))

	cfgFile = path
	t.Cleanup(func() { cfgFile = "config.yaml" })

	err := runHistory(historyCmd, nil)
	assert.ErrorIs(t, err, errDatabaseDisabled)
}

func TestPrintReadings(t *testing.T) {
	var buf bytes.Buffer
	printReadings(&buf, nil)
	assert.Equal(t, "No readings found\n", buf.String())

	buf.Reset()
	printReadings(&buf, []models.Reading{
		{Time: time.Now(), Channel: "Dryer", Watts: 1800, On: true},
	})
	assert.Contains(t, buf.String(), "Dryer")
	assert.Contains(t, buf.String(), "1800.00")
	assert.Contains(t, buf.String(), "ON")
	assert.Contains(t, buf.String(), "1 readings")
}

func TestAbortStopsStartedWork(t *testing.T) {
	ctx, stop := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	finished := false
	g.Go(func() error {
		<-gctx.Done()
		finished = true
		return nil
	})

	startErr := errors.New("scheduling failed")
	err := abort(stop, g, startErr)
	assert.ErrorIs(t, err, startErr)
	assert.True(t, finished)
}

func TestRunRejectsUnknownTimezone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "homekit:\n  enabled: false\nswitch:\n  timezone: Mars/Olympus_Mons\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfgFile = path
	t.Cleanup(func() { cfgFile = "config.yaml" })

	runCmd.SetContext(context.Background())
	err := runDaemon(runCmd, nil)
	assert.ErrorContains(t, err, "invalid switch.timezone")
}
