package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/Ahmedmecatronique/AquaWing/internal/domain"
)

const (
	connectTimeout        = 5 * time.Second
	defaultPublishTimeout = 2 * time.Second
	disconnectQuiesceMs   = 250
)

var ErrNotConnected = errors.New("mqtt not connected")

type Config struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
}

// Sink mirrors telemetry samples to an MQTT topic. Delivery is best effort:
// a lost broker connection drops samples until paho reconnects.
type Sink struct {
	client         paho.Client
	topic          string
	qos            byte
	publishTimeout time.Duration
}

var _ domain.TelemetrySink = (*Sink)(nil)

func NewSink(client paho.Client, topic string, qos byte) *Sink {
	return &Sink{client: client, topic: topic, qos: qos, publishTimeout: defaultPublishTimeout}
}

// Connect dials the broker with auto-reconnect enabled and waits for the
// first connection.
func Connect(ctx context.Context, cfg Config) (*Sink, error) {
	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(paho.Client) {
		slog.Info("MQTT connection established", "broker", broker, "client_id", cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		slog.Warn("MQTT connection lost, reconnecting", "broker", broker, "error", err)
	}

	client := paho.NewClient(opts)
	token := client.Connect()

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := waitToken(connectCtx, token); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", broker, err)
	}

	return NewSink(client, cfg.Topic, cfg.QoS), nil
}

func (s *Sink) PublishTelemetry(ctx context.Context, payload []byte) error {
	if !s.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := s.client.Publish(s.topic, s.qos, false, payload)

	publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err := waitToken(publishCtx, token); err != nil {
		return fmt.Errorf("publish to %s: %w", s.topic, err)
	}
	return nil
}

func (s *Sink) Close() {
	s.client.Disconnect(disconnectQuiesceMs)
	slog.Info("MQTT disconnected")
}

func waitToken(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
