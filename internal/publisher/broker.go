package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/vzahanych/barcode-scanner/internal/config"
	"github.com/vzahanych/barcode-scanner/internal/logger"
)

const publishTimeout = 2 * time.Second

// Broker is the part of an MQTT client the publisher needs
type Broker interface {
	Connect(ctx context.Context) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	IsConnected() bool
	Disconnect()
}

// PahoBroker is a Broker backed by the Eclipse Paho client. It reconnects on
// its own after the first attempt, successful or not.
type PahoBroker struct {
	client         mqtt.Client
	connectTimeout time.Duration
}

// NewPahoBroker builds a client for cfg without connecting it
func NewPahoBroker(cfg config.MQTTConfig, log *logger.Logger) *PahoBroker {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("MQTT connection established", "broker", cfg.Broker, "client_id", cfg.ClientID)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("MQTT connection lost, reconnecting", "broker", cfg.Broker, "error", err)
	})

	return &PahoBroker{
		client:         mqtt.NewClient(opts),
		connectTimeout: cfg.ConnectTimeout,
	}
}

// Connect waits up to the configured timeout for the first connection
func (b *PahoBroker) Connect(ctx context.Context) error {
	token := b.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect failed: %w", err)
		}
		return nil
	case <-time.After(b.connectTimeout):
		return errors.New("mqtt connect timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *PahoBroker) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := b.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s failed: %w", topic, err)
	}
	return nil
}

func (b *PahoBroker) IsConnected() bool {
	return b.client.IsConnected()
}

// Disconnect allows 250ms for in-flight messages
func (b *PahoBroker) Disconnect() {
	if b.client.IsConnected() {
		b.client.Disconnect(250)
	}
}
