package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/teleop/internal/telemetry"
)

// DefaultBufferSize is how many messages are kept while the broker is unreachable.
const DefaultBufferSize = 256

// Config configures a broker connection.
type Config struct {
	Broker     string
	ClientID   string
	Program    string // reported in the OFFLINE will message
	BufferSize int
}

// RealPublisher publishes to an actual MQTT broker.
// Messages published while disconnected are buffered and replayed on reconnect.
type RealPublisher struct {
	client  paho.Client
	program string

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool
	connects  int
}

// NewRealPublisher creates a publisher for the given broker. The broker does not
// need to be reachable yet; connection is retried in the background.
func NewRealPublisher(cfg Config) (*RealPublisher, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "teleop"
	}

	p := &RealPublisher{
		program: cfg.Program,
		buf:     newRingBuffer(cfg.BufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventOffline, Program: cfg.Program})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.onLost(err) })

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("MQTT broker %s not reachable yet, buffering until connected", cfg.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	p.connected = true
	p.connects++
	reconnect := p.connects > 1
	pending := p.buf.drainAll()
	p.mu.Unlock()

	log.Printf("MQTT connected")
	if reconnect {
		if err := p.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: EventReconnected, Program: p.program}); err != nil {
			log.Printf("MQTT reconnect event failed: %v", err)
		}
	}
	if len(pending) > 0 {
		log.Printf("MQTT replaying %d buffered messages", len(pending))
	}
	for _, m := range pending {
		p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

func (p *RealPublisher) onLost(err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	log.Printf("MQTT connection lost: %v", err)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// PublishTelemetry sends a telemetry frame to the MQTT broker.
func (p *RealPublisher) PublishTelemetry(frame telemetry.Frame) error {
	payload, err := FormatTelemetryPayload(frame)
	if err != nil {
		return fmt.Errorf("format telemetry payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(TopicTelemetry, 0, false, payload)
}

// PublishSystem sends a lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) so lifecycle transitions are not lost
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	if !p.connected {
		p.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return errors.New("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

// Subscriber receives telemetry frames published by a running program.
type Subscriber struct {
	client paho.Client
	frames chan telemetry.Frame
}

// NewSubscriber connects to the broker and subscribes to TopicTelemetry.
// The subscription is renewed on every reconnect.
func NewSubscriber(broker, clientID string) (*Subscriber, error) {
	s := newSubscriber()

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(c paho.Client) {
			c.Subscribe(TopicTelemetry, 0, func(_ paho.Client, msg paho.Message) {
				s.deliver(msg.Payload())
			})
		})

	s.client = paho.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, errors.New("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return s, nil
}

func newSubscriber() *Subscriber {
	return &Subscriber{frames: make(chan telemetry.Frame, 16)}
}

// deliver decodes a payload and hands it to the reader, dropping it if the
// reader is behind.
func (s *Subscriber) deliver(payload []byte) {
	frame, err := ParseTelemetryPayload(payload)
	if err != nil {
		log.Printf("MQTT telemetry dropped: %v", err)
		return
	}
	select {
	case s.frames <- frame:
	default:
	}
}

// Frames returns the channel of received frames.
func (s *Subscriber) Frames() <-chan telemetry.Frame {
	return s.frames
}

// Close disconnects from the broker.
func (s *Subscriber) Close() error {
	if s.client != nil {
		s.client.Disconnect(250)
	}
	return nil
}
