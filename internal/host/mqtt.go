package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/vueswitch/internal/config"
)

const (
	payloadOn      = "ON"
	payloadOff     = "OFF"
	payloadOnline  = "online"
	payloadOffline = "offline"

	publishTimeout = 10 * time.Second
)

var ErrMQTTNotConnected = errors.New("MQTT client not connected")

// discoveryConfig is the Home Assistant MQTT discovery payload for a switch.
type discoveryConfig struct {
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	ObjectID          string          `json:"object_id"`
	StateTopic        string          `json:"state_topic"`
	CommandTopic      string          `json:"command_topic"`
	AvailabilityTopic string          `json:"availability_topic"`
	PayloadOn         string          `json:"payload_on"`
	PayloadOff        string          `json:"payload_off"`
	Optimistic        bool            `json:"optimistic"`
	Icon              string          `json:"icon,omitempty"`
	Device            discoveryDevice `json:"device"`
}

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// MQTT exposes the switch to Home Assistant through MQTT discovery.
type MQTT struct {
	client   mqtt.Client
	cfg      config.MQTTConfig
	info     Info
	objectID string
	logger   *logrus.Logger

	mu    sync.RWMutex
	onGet func() bool
	onSet func(on bool)
}

func NewMQTT(cfg config.MQTTConfig, info Info, logger *logrus.Logger) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	m := newMQTT(nil, cfg, info, logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	// handlers publish and wait, which would block an ordered router
	opts.SetOrderMatters(false)
	opts.SetWill(m.availabilityTopic(), payloadOffline, 1, true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		m.announce()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.WithError(err).Warn("MQTT connection lost")
	})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	m.client = mqtt.NewClient(opts)
	return m, nil
}

func newMQTT(client mqtt.Client, cfg config.MQTTConfig, info Info, logger *logrus.Logger) *MQTT {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "vueswitch"
	}
	if cfg.DiscoveryPrefix == "" {
		cfg.DiscoveryPrefix = "homeassistant"
	}
	return &MQTT{
		client:   client,
		cfg:      cfg,
		info:     info,
		objectID: objectID(info.SerialNumber()),
		logger:   logger,
	}
}

func objectID(serial string) string {
	return "vueswitch_" + strings.ReplaceAll(strings.ToLower(serial), "-", "")
}

func (m *MQTT) stateTopic() string {
	return fmt.Sprintf("%s/%s/state", m.cfg.TopicPrefix, m.objectID)
}

func (m *MQTT) commandTopic() string {
	return fmt.Sprintf("%s/%s/set", m.cfg.TopicPrefix, m.objectID)
}

func (m *MQTT) availabilityTopic() string {
	return fmt.Sprintf("%s/%s/availability", m.cfg.TopicPrefix, m.objectID)
}

func (m *MQTT) discoveryTopic() string {
	return fmt.Sprintf("%s/switch/%s/config", m.cfg.DiscoveryPrefix, m.objectID)
}

func (m *MQTT) birthTopic() string {
	return m.cfg.DiscoveryPrefix + "/status"
}

func (m *MQTT) OnGet(fn func() bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onGet = fn
}

func (m *MQTT) OnSet(fn func(on bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSet = fn
}

func (m *MQTT) Publish(on bool) error {
	if !m.client.IsConnected() {
		return ErrMQTTNotConnected
	}
	payload := payloadOff
	if on {
		payload = payloadOn
	}
	return m.publish(m.stateTopic(), payload)
}

func (m *MQTT) publish(topic string, payload interface{}) error {
	token := m.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// announce publishes discovery and availability, (re)subscribes and pushes
// the current state. It runs on every (re)connect and Home Assistant birth.
func (m *MQTT) announce() {
	body, err := json.Marshal(discoveryConfig{
		Name:              m.info.Name,
		UniqueID:          m.objectID,
		ObjectID:          m.objectID,
		StateTopic:        m.stateTopic(),
		CommandTopic:      m.commandTopic(),
		AvailabilityTopic: m.availabilityTopic(),
		PayloadOn:         payloadOn,
		PayloadOff:        payloadOff,
		Icon:              "mdi:flash",
		Device: discoveryDevice{
			Identifiers:  []string{m.objectID},
			Name:         m.info.Name,
			Manufacturer: m.info.Manufacturer,
			Model:        m.info.Model,
			SWVersion:    m.info.Firmware,
		},
	})
	if err != nil {
		m.logger.WithError(err).Error("Failed to encode MQTT discovery config")
		return
	}

	if err := m.publish(m.discoveryTopic(), body); err != nil {
		m.logger.WithError(err).Error("Failed to publish MQTT discovery config")
	}
	if err := m.publish(m.availabilityTopic(), payloadOnline); err != nil {
		m.logger.WithError(err).Error("Failed to publish MQTT availability")
	}

	m.client.Subscribe(m.commandTopic(), 1, m.handleCommand)
	m.client.Subscribe(m.birthTopic(), 1, m.handleBirth)

	m.mu.RLock()
	onGet := m.onGet
	m.mu.RUnlock()
	if onGet != nil {
		if err := m.Publish(onGet()); err != nil {
			m.logger.WithError(err).Warn("Failed to publish MQTT state")
		}
	}
}

func (m *MQTT) handleCommand(_ mqtt.Client, msg mqtt.Message) {
	m.mu.RLock()
	onSet := m.onSet
	m.mu.RUnlock()
	if onSet == nil {
		return
	}
	switch strings.ToUpper(string(msg.Payload())) {
	case payloadOn:
		onSet(true)
	case payloadOff:
		onSet(false)
	default:
		m.logger.WithField("payload", string(msg.Payload())).Warn("Ignoring unknown MQTT switch command")
	}
}

func (m *MQTT) handleBirth(_ mqtt.Client, msg mqtt.Message) {
	if string(msg.Payload()) == payloadOnline {
		m.logger.Debug("Home Assistant came online, re-announcing switch")
		m.announce()
	}
}

func (m *MQTT) Run(ctx context.Context) error {
	m.logger.WithField("broker", m.cfg.Broker).Info("Connecting to MQTT broker")
	// with connect retry enabled the token only completes once connected
	token := m.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("connecting to MQTT broker: %w", err)
		}
	case <-ctx.Done():
	}

	<-ctx.Done()

	if m.client.IsConnected() {
		if err := m.publish(m.availabilityTopic(), payloadOffline); err != nil {
			m.logger.WithError(err).Warn("Failed to publish MQTT offline availability")
		}
	}
	m.client.Disconnect(250)
	return nil
}
