package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 2 * time.Second
)

// MQTTConfig selects the broker and topic prefix.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string

	// Prefix is prepended to every topic, e.g. "wellrig".
	Prefix string
	QoS    byte
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// MQTT publishes samples to <prefix>/sample/<series> and events to
// <prefix>/event/<kind> as JSON.
type MQTT struct {
	client publisher
	prefix string
	qos    byte
	log    *slog.Logger
}

var _ Sink = &MQTT{}

// DialMQTT connects to the broker with auto-reconnect enabled.
func DialMQTT(cfg MQTTConfig, logger *slog.Logger) (*MQTT, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "wellrig"
	}
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("%w: mqtt connect timed out after %v", ErrSinkUnavailable, mqttConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: mqtt connect: %w", ErrSinkUnavailable, err)
	}

	return newMQTT(client, cfg, logger), nil
}

func newMQTT(p publisher, cfg MQTTConfig, logger *slog.Logger) *MQTT {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := strings.TrimSuffix(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "wellrig"
	}
	return &MQTT{client: p, prefix: prefix, qos: cfg.QoS, log: logger.With("component", "mqtt")}
}

func (m *MQTT) publish(topic string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		m.log.Error("marshal json", "error", err)
		return
	}
	token := m.client.Publish(topic, m.qos, false, data)
	go func() {
		if !token.WaitTimeout(mqttPublishTimeout) {
			m.log.Warn("publish timed out", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			m.log.Warn("publish", "topic", topic, "error", err)
		}
	}()
}

type mqttSample struct {
	Time  time.Time         `json:"time"`
	Value float64           `json:"value"`
	Tags  map[string]string `json:"tags,omitempty"`
}

func (m *MQTT) Sample(s Sample) {
	m.publish(m.prefix+"/sample/"+s.Series, mqttSample{Time: s.Time, Value: s.Value, Tags: s.Tags})
}

type mqttEvent struct {
	Time   time.Time              `json:"time"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

func (m *MQTT) Event(e Event) {
	m.publish(m.prefix+"/event/"+e.Kind, mqttEvent{Time: e.Time, Fields: e.Fields})
}

// Close disconnects, waiting up to 250ms for in-flight messages.
func (m *MQTT) Close() {
	if c, ok := m.client.(pahomqtt.Client); ok {
		c.Disconnect(250)
	}
}
