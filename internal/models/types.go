package models

import "time"

// Channel is a named measurement point inside a monitored device.
type Channel struct {
	DeviceGid         int64   `json:"deviceGid"`
	Name              string  `json:"name"`
	ChannelNum        string  `json:"channelNum"`
	ChannelMultiplier float64 `json:"channelMultiplier"`
	ChannelTypeGid    int64   `json:"channelTypeGid"`
}

// Device represents a monitoring device as returned by the cloud API.
// Smart plugs and other attached devices are reported as nested Devices.
type Device struct {
	DeviceGid            int64     `json:"deviceGid"`
	ManufacturerDeviceID string    `json:"manufacturerDeviceId"`
	Model                string    `json:"model"`
	Firmware             string    `json:"firmware"`
	Channels             []Channel `json:"channels"`
	Devices              []Device  `json:"devices"`
}

// ChannelUsage is a single channel's energy usage over the requested scale.
type ChannelUsage struct {
	Name       string  `json:"name"`
	Usage      float64 `json:"usage"`
	DeviceGid  int64   `json:"deviceGid"`
	ChannelNum string  `json:"channelNum"`
	Percentage float64 `json:"percentage"`
}

// DeviceUsage holds a device's channel usages keyed by channel number.
type DeviceUsage struct {
	DeviceGid     int64
	ChannelUsages map[string]ChannelUsage
}

// Reading is the outcome of one successful threshold evaluation.
type Reading struct {
	Time           time.Time `json:"time"`
	Channel        string    `json:"channel"`
	DeviceGid      int64     `json:"device_gid"`
	ChannelNum     string    `json:"channel_num"`
	RawUsage       float64   `json:"raw_usage"`
	Watts          float64   `json:"watts"`
	ThresholdWatts float64   `json:"threshold_watts"`
	On             bool      `json:"on"`
}
