package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/andresmejia3/thermosentinel/internal/capture"
)

// MQTTConfig holds the publisher settings.
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
}

// MQTT publishes a JSON Report per cycle to a broker.
type MQTT struct {
	cfg    MQTTConfig
	Client mqtt.Client

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

// NewMQTT creates a publisher; call Connect before use.
func NewMQTT(cfg MQTTConfig) *MQTT {
	return &MQTT{cfg: cfg}
}

// Connect establishes the connection and keeps it alive in the background.
func (m *MQTT) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.cfg.Broker)
	opts.SetClientID(m.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		m.setConnected(true)
		slog.Info("mqtt connection established", "broker", m.cfg.Broker, "client_id", m.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		m.setConnected(false)
		slog.Warn("mqtt connection lost, will auto-reconnect", "error", err, "broker", m.cfg.Broker)
	}

	if m.Client == nil {
		m.Client = mqtt.NewClient(opts)
	}

	slog.Info("connecting to mqtt broker", "broker", m.cfg.Broker)
	token := m.Client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	m.setConnected(true)
	return nil
}

// Render publishes the cycle report.
func (m *MQTT) Render(ctx context.Context, res *capture.Result) error {
	if !m.isConnected() {
		m.countError()
		return fmt.Errorf("mqtt not connected")
	}
	payload, err := json.Marshal(NewReport(res))
	if err != nil {
		m.countError()
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	token := m.Client.Publish(m.cfg.Topic, m.cfg.QoS, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		m.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		m.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	m.mu.Lock()
	m.published++
	m.mu.Unlock()
	slog.Debug("report published", "topic", m.cfg.Topic, "qos", m.cfg.QoS, "size", len(payload))
	return nil
}

// Disconnect closes the connection.
func (m *MQTT) Disconnect() {
	if m.Client != nil && m.Client.IsConnected() {
		m.Client.Disconnect(250) // 250ms grace period
		slog.Info("mqtt disconnected")
	}
	m.setConnected(false)
}

// Stats returns the number of published reports and failures.
func (m *MQTT) Stats() (published, errors uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.published, m.errors
}

func (m *MQTT) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

func (m *MQTT) isConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *MQTT) countError() {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
}
