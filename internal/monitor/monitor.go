//go:generate go run github.com/golang/mock/mockgen -destination=./mocks/usage_api.go -package=mocks . UsageAPI

// Package monitor turns a channel's cloud usage reading into an on/off
// decision.
//
// Every failure along the way (login, device listing, channel lookup,
// usage fetch) is reported by Fetch as a wrapped sentinel error. GetState
// logs it and answers false, so callers never see an error.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/vueswitch/internal/api"
	"github.com/tejusbharadwaj/vueswitch/internal/models"
)

// WattsPerKWhPerSecond converts kWh consumed over one second into average
// watts. It is tied to api.UsageScale.
const WattsPerKWhPerSecond = 3_600_000

var (
	ErrAuthentication  = errors.New("authentication failed")
	ErrDeviceList      = errors.New("device list failed")
	ErrChannelNotFound = errors.New("channel not found")
	ErrUsageFetch      = errors.New("usage fetch failed")
)

// UsageAPI is the subset of the cloud client the monitor depends on.
type UsageAPI interface {
	Login(ctx context.Context, creds api.Credentials) error
	GetDevices(ctx context.Context) ([]models.Device, error)
	GetDeviceListUsage(ctx context.Context, deviceGids ...int64) (map[int64]models.DeviceUsage, error)
}

// Observer is notified of every evaluation outcome.
type Observer interface {
	ObserveReading(ctx context.Context, reading models.Reading)
	ObserveFailure(ctx context.Context, err error)
}

// Settings is the immutable part of a Monitor.
type Settings struct {
	ChannelName    string
	ThresholdWatts float64
	Credentials    api.Credentials
}

type Monitor struct {
	api       UsageAPI
	settings  Settings
	logger    *logrus.Logger
	observers []Observer
	now       func() time.Time
}

func New(usageAPI UsageAPI, settings Settings, logger *logrus.Logger, observers ...Observer) *Monitor {
	return &Monitor{
		api:       usageAPI,
		settings:  settings,
		logger:    logger,
		observers: observers,
		now:       time.Now,
	}
}

// Settings returns the monitor's configuration.
func (m *Monitor) Settings() Settings {
	return m.settings
}

// ToWatts converts a one-second kWh reading to watts rounded to two
// decimal places.
func ToWatts(rawUsage float64) float64 {
	return math.Round(rawUsage*WattsPerKWhPerSecond*100) / 100
}

// Evaluate reports whether watts reaches the threshold. Equality counts as on.
func Evaluate(watts, thresholdWatts float64) bool {
	return watts >= thresholdWatts
}

// Fetch logs in, resolves the configured channel and evaluates its current
// usage against the threshold.
func (m *Monitor) Fetch(ctx context.Context) (models.Reading, error) {
	if err := m.api.Login(ctx, m.settings.Credentials); err != nil {
		return models.Reading{}, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	devices, err := m.api.GetDevices(ctx)
	if err != nil {
		return models.Reading{}, fmt.Errorf("%w: %v", ErrDeviceList, err)
	}

	channel, ok := FindChannel(devices, m.settings.ChannelName)
	if !ok {
		return models.Reading{}, fmt.Errorf("%w: %q", ErrChannelNotFound, m.settings.ChannelName)
	}

	usages, err := m.api.GetDeviceListUsage(ctx, channel.DeviceGid)
	if err != nil {
		return models.Reading{}, fmt.Errorf("%w: %v", ErrUsageFetch, err)
	}
	device, ok := usages[channel.DeviceGid]
	if !ok {
		return models.Reading{}, fmt.Errorf("%w: no usage for device %d", ErrUsageFetch, channel.DeviceGid)
	}
	usage, ok := device.ChannelUsages[channel.ChannelNum]
	if !ok {
		return models.Reading{}, fmt.Errorf("%w: no usage for channel %s of device %d", ErrUsageFetch, channel.ChannelNum, channel.DeviceGid)
	}

	watts := ToWatts(usage.Usage)
	return models.Reading{
		Time:           m.now(),
		Channel:        channel.Name,
		DeviceGid:      channel.DeviceGid,
		ChannelNum:     channel.ChannelNum,
		RawUsage:       usage.Usage,
		Watts:          watts,
		ThresholdWatts: m.settings.ThresholdWatts,
		On:             Evaluate(watts, m.settings.ThresholdWatts),
	}, nil
}

// GetState returns the channel's current on/off state. Any failure is
// logged and reported as off.
func (m *Monitor) GetState(ctx context.Context) bool {
	reading, err := m.Fetch(ctx)
	if err != nil {
		m.logFailure(err)
		for _, o := range m.observers {
			o.ObserveFailure(ctx, err)
		}
		return false
	}

	m.logger.WithFields(logrus.Fields{
		"channel": reading.Channel,
		"watts":   fmt.Sprintf("%.2f", reading.Watts),
	}).Infof("Device/Channel %s current consumption: %.2f Watts", reading.Channel, reading.Watts)
	m.logger.WithFields(logrus.Fields{
		"channel":   reading.Channel,
		"threshold": reading.ThresholdWatts,
		"state":     StateName(reading.On),
	}).Infof("Device/Channel %s reported as %s based on %v Watts threshold", reading.Channel, StateName(reading.On), reading.ThresholdWatts)

	for _, o := range m.observers {
		o.ObserveReading(ctx, reading)
	}
	return reading.On
}

func (m *Monitor) logFailure(err error) {
	entry := m.logger.WithError(err).WithField("channel", m.settings.ChannelName)
	switch {
	case errors.Is(err, ErrAuthentication):
		entry.Error("Error logging in to Emporia Vue API")
	case errors.Is(err, ErrDeviceList):
		entry.Error("Error fetching devices from Emporia Vue API")
	case errors.Is(err, ErrChannelNotFound):
		entry.Errorf("Channel with name '%s' not found, assuming OFF state", m.settings.ChannelName)
	case errors.Is(err, ErrUsageFetch):
		entry.Errorf("Error fetching '%s' current kWh usage from Emporia Vue API", m.settings.ChannelName)
	default:
		entry.Error("Unexpected error evaluating channel state")
	}
}

// FindChannel returns the first channel named exactly name. Each device's
// own channels are searched before those of its nested devices.
func FindChannel(devices []models.Device, name string) (models.Channel, bool) {
	for _, device := range devices {
		for _, ch := range device.Channels {
			if ch.Name == name {
				return ch, true
			}
		}
		if ch, ok := FindChannel(device.Devices, name); ok {
			return ch, true
		}
	}
	return models.Channel{}, false
}

// StateName renders a switch state the way it is logged.
func StateName(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
