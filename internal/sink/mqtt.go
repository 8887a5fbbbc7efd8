package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/Guliveer/aerostat/internal/config"
)

// disconnectQuiesce is how long Close waits for in-flight publishes (ms).
const disconnectQuiesce = 250

// MQTT publishes each point's line-protocol text to <prefix>/<tag> at QoS 0.
type MQTT struct {
	client  mqtt.Client
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewMQTT creates an MQTT sink. Call Connect before the first Write; the
// client reconnects on its own after that.
func NewMQTT(cfg config.MQTTConfig, logger *zap.Logger) *MQTT {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("sink", "mqtt"))

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(cfg.ConnectTimeout.Duration).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("Connection to broker lost", zap.Error(err))
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info("Connected to broker", zap.String("broker", cfg.Broker))
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}

	return newMQTT(mqtt.NewClient(opts), cfg.TopicPrefix, cfg.ConnectTimeout.Duration, logger)
}

func newMQTT(client mqtt.Client, prefix string, timeout time.Duration, logger *zap.Logger) *MQTT {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &MQTT{
		client:  client,
		prefix:  strings.TrimSuffix(prefix, "/"),
		timeout: timeout,
		logger:  logger,
	}
}

// Name returns the sink identifier.
func (m *MQTT) Name() string { return "mqtt" }

// Connect starts the broker connection. With connect-retry enabled the
// client keeps trying in the background when the first attempt times out.
func (m *MQTT) Connect(ctx context.Context) error {
	return m.wait(ctx, m.client.Connect())
}

// Topic returns the topic a source's points are published to.
func (m *MQTT) Topic(tag string) string {
	if m.prefix == "" {
		return tag
	}
	return m.prefix + "/" + tag
}

// Write publishes one point.
func (m *MQTT) Write(ctx context.Context, p Point) error {
	line, err := FormatLine(p)
	if err != nil {
		return &TransmitError{Sink: m.Name(), Err: err}
	}
	if !m.client.IsConnectionOpen() {
		return &TransmitError{Sink: m.Name(), Err: errors.New("not connected to broker")}
	}
	if err := m.wait(ctx, m.client.Publish(m.Topic(p.Tag), 0, false, line)); err != nil {
		return &TransmitError{Sink: m.Name(), Err: err}
	}
	return nil
}

func (m *MQTT) wait(ctx context.Context, token mqtt.Token) error {
	timer := time.NewTimer(m.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", m.timeout)
	}
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	m.client.Disconnect(disconnectQuiesce)
	return nil
}
