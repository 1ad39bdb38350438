package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/sweeney/beacon/internal/blink"
	"github.com/sweeney/beacon/internal/delivery"
)

// DefaultBufferSize is how many outgoing messages are held while offline.
const DefaultBufferSize = 256

const publishTimeout = 5 * time.Second

// client is the subset of paho.Client the publisher uses.
type client interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Disconnect(quiesce uint)
}

// Config configures a RealPublisher.
type Config struct {
	Broker         string
	ClientID       string
	BufferSize     int
	ConnectTimeout time.Duration
	Logger         zerolog.Logger
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client client
	log    zerolog.Logger

	mu        sync.Mutex
	buf       *ring[outgoing]
	onCommand CommandHandler
}

// NewRealPublisher creates a publisher for the given broker. An unreachable
// broker is not an error: the client keeps retrying in the background.
func NewRealPublisher(cfg Config) (*RealPublisher, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "beacon"
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	p := &RealPublisher{
		log: cfg.Logger,
		buf: newRing[outgoing](cfg.BufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetOrderMatters(false).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn().Err(err).Msg("mqtt connection lost")
		})

	c := paho.NewClient(opts)
	p.client = c

	token := c.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		p.log.Warn().Str("broker", cfg.Broker).Msg("mqtt broker not reachable yet, buffering")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func newPublisher(c client, log zerolog.Logger, size int) *RealPublisher {
	return &RealPublisher{client: c, log: log, buf: newRing[outgoing](size)}
}

// PublishLevel sends a level change. QoS 0, not retained, not awaited.
func (p *RealPublisher) PublishLevel(c blink.LevelChange) error {
	payload, err := FormatLevelPayload(c)
	if err != nil {
		return fmt.Errorf("format level payload: %w", err)
	}
	return p.publish(TopicLevel, 0, false, payload, false)
}

// PublishDelivery sends a delivery outcome. QoS 1, not awaited; the client
// retries it.
func (p *RealPublisher) PublishDelivery(o delivery.Outcome) error {
	payload, err := FormatDeliveryPayload(o)
	if err != nil {
		return fmt.Errorf("format delivery payload: %w", err)
	}
	return p.publish(TopicDelivery, 1, false, payload, false)
}

// PublishSystem sends a system lifecycle event and waits for the broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(TopicSystem, 1, event.Retained, payload, true)
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte, wait bool) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		if p.buf.add(outgoing{topic: topic, payload: payload, qos: qos, retained: retained}) {
			p.log.Warn().Int("capacity", p.buf.limit()).Msg("mqtt buffer full, dropping oldest")
		}
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(topic, qos, retained, payload)
	if !wait {
		return nil
	}
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// SubscribeCommands routes phrases published on TopicCommand to fn. The
// subscription is renewed on every reconnect.
func (p *RealPublisher) SubscribeCommands(fn CommandHandler) error {
	p.mu.Lock()
	p.onCommand = fn
	open := p.client.IsConnectionOpen()
	p.mu.Unlock()

	if !open {
		return nil
	}
	return p.subscribe(fn)
}

func (p *RealPublisher) subscribe(fn CommandHandler) error {
	token := p.client.Subscribe(TopicCommand, 1, func(_ paho.Client, m paho.Message) {
		fn(string(m.Payload()))
	})
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe %s: timeout", TopicCommand)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicCommand, err)
	}
	return nil
}

func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	pending, dropped := p.buf.take()
	handler := p.onCommand
	p.mu.Unlock()

	p.log.Info().Int("replayed", len(pending)).Int("dropped", dropped).Msg("mqtt connected")

	if handler != nil {
		if err := p.subscribe(handler); err != nil {
			p.log.Warn().Err(err).Msg("mqtt resubscribe failed")
		}
	}
	for _, m := range pending {
		p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.size()
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
