// Package publisher forwards scan outcomes from the event bus to an MQTT
// broker, one message per finished session.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/vzahanych/barcode-scanner/internal/config"
	"github.com/vzahanych/barcode-scanner/internal/logger"
	"github.com/vzahanych/barcode-scanner/internal/service"
)

// Message is the JSON payload published for a session outcome
type Message struct {
	SessionID string    `json:"session_id"`
	Barcode   string    `json:"barcode,omitempty"`
	Format    string    `json:"format,omitempty"`
	Strategy  string    `json:"strategy,omitempty"`
	Error     string    `json:"error,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// Stats counts publisher activity
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Failures  uint64            `json:"failures"`
}

// Publisher is a service that publishes scan.detected and scan.error events
// under <topic_prefix>/detected and <topic_prefix>/error
type Publisher struct {
	*service.ServiceBase
	cfg    config.MQTTConfig
	broker Broker

	cancel context.CancelFunc

	mu        sync.Mutex
	published map[string]uint64
	failures  uint64
}

// NewPublisher creates a publisher. broker may be nil when cfg is disabled.
func NewPublisher(cfg config.MQTTConfig, broker Broker, log *logger.Logger) *Publisher {
	return &Publisher{
		ServiceBase: service.NewServiceBase("mqtt-publisher", log),
		cfg:         cfg,
		broker:      broker,
		published:   make(map[string]uint64),
	}
}

// Start connects to the broker and subscribes to scan outcomes. An unreachable
// broker is logged and retried in the background; it does not fail startup.
func (p *Publisher) Start(ctx context.Context) error {
	if !p.cfg.Enabled || p.broker == nil {
		p.LogInfo("MQTT publisher is disabled")
		return nil
	}
	bus := p.GetEventBus()
	if bus == nil {
		return fmt.Errorf("mqtt publisher requires an event bus")
	}

	p.GetStatus().SetStatus(service.StatusStarting)
	if err := p.broker.Connect(ctx); err != nil {
		p.LogWarn("MQTT broker not reachable yet", "broker", p.cfg.Broker, "error", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	bus.SubscribeWithHandler(runCtx, service.EventTypeScanDetected, p.handle)
	bus.SubscribeWithHandler(runCtx, service.EventTypeScanError, p.handle)

	p.GetStatus().SetStatus(service.StatusRunning)
	p.LogInfo("MQTT publisher started", "broker", p.cfg.Broker, "topic_prefix", p.cfg.TopicPrefix)
	return nil
}

// Stop unsubscribes and disconnects
func (p *Publisher) Stop(ctx context.Context) error {
	if p.cancel == nil {
		return nil
	}
	p.GetStatus().SetStatus(service.StatusStopping)
	p.cancel()
	p.cancel = nil
	p.broker.Disconnect()
	p.GetStatus().SetStatus(service.StatusStopped)
	p.LogInfo("MQTT publisher stopped")
	return nil
}

func (p *Publisher) handle(_ context.Context, ev service.Event) error {
	topic, msg := p.messageFor(ev)
	payload, err := json.Marshal(msg)
	if err != nil {
		p.recordFailure()
		return err
	}

	if err := p.broker.Publish(topic, byte(p.cfg.QoS), p.cfg.Retain, payload); err != nil {
		p.recordFailure()
		p.LogError("Failed to publish scan outcome", err, "topic", topic, "session", msg.SessionID)
		return err
	}

	p.mu.Lock()
	p.published[topic]++
	p.mu.Unlock()
	p.LogDebug("Scan outcome published", "topic", topic, "session", msg.SessionID, "size", len(payload))
	return nil
}

func (p *Publisher) messageFor(ev service.Event) (string, Message) {
	msg := Message{
		SessionID: str(ev.Data, "session_id"),
		At:        ev.Timestamp,
	}
	if msg.At.IsZero() {
		msg.At = time.Now()
	}

	if ev.Type == service.EventTypeScanError {
		msg.Error = str(ev.Data, "kind")
		msg.Message = str(ev.Data, "message")
		return p.cfg.TopicPrefix + "/error", msg
	}
	msg.Barcode = str(ev.Data, "barcode")
	msg.Format = str(ev.Data, "format")
	msg.Strategy = str(ev.Data, "strategy")
	return p.cfg.TopicPrefix + "/detected", msg
}

func str(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}

func (p *Publisher) recordFailure() {
	p.mu.Lock()
	p.failures++
	p.mu.Unlock()
}

// Stats returns a copy of the publisher counters
func (p *Publisher) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	published := make(map[string]uint64, len(p.published))
	for k, v := range p.published {
		published[k] = v
	}
	return Stats{
		Connected: p.broker != nil && p.broker.IsConnected(),
		Published: published,
		Failures:  p.failures,
	}
}
