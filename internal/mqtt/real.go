package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultBufferSize is the number of lifecycle messages kept while the
// broker is unreachable.
const DefaultBufferSize = 64

// Options configures a RealPublisher.
type Options struct {
	Broker string
	Topic  string

	// ClientID defaults to NewClientID().
	ClientID string

	// BufferSize defaults to DefaultBufferSize.
	BufferSize int

	// ConnectTimeout bounds the initial connection attempt. When it
	// expires the publisher keeps retrying in the background.
	ConnectTimeout time.Duration

	Logger zerolog.Logger

	// OnConnectionChange, if set, is called on connect and on connection loss.
	OnConnectionChange func(connected bool)
}

// NewClientID returns a client id unique to this process.
func NewClientID() string {
	return "mouse-debouncer-" + uuid.NewString()[:8]
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while disconnected are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topic  string
	log    zerolog.Logger
	notify func(bool)

	mu      sync.Mutex
	backlog *backlog
}

// NewRealPublisher creates a publisher for the given broker. The broker
// holds an OFFLINE will for the topic, retained, so subscribers see the
// daemon disappear if it dies without publishing SHUTDOWN.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	if opts.ClientID == "" {
		opts.ClientID = NewClientID()
	}
	if opts.BufferSize == 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 10 * time.Second
	}

	p := &RealPublisher{
		topic:   opts.Topic,
		log:     opts.Logger,
		notify:  opts.OnConnectionChange,
		backlog: newBacklog(opts.BufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventOffline})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	mopts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(opts.Topic, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(mopts)
	token := p.client.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		p.log.Warn().Str("broker", opts.Broker).Msg("mqtt broker not reachable yet, buffering until connected")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.log.Info().Msg("mqtt connected")
	if p.notify != nil {
		p.notify(true)
	}

	p.mu.Lock()
	pending := p.backlog.take()
	p.mu.Unlock()

	for _, m := range pending {
		if err := p.send(m); err != nil {
			p.log.Warn().Err(err).Msg("mqtt replay failed")
		}
	}
	if len(pending) > 0 {
		p.log.Info().Int("messages", len(pending)).Msg("mqtt replayed buffered messages")
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.log.Warn().Err(err).Msg("mqtt connection lost")
	if p.notify != nil {
		p.notify(false)
	}
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) - lifecycle events should be delivered
	m := outbound{topic: p.topic, payload: payload, qos: 1, retained: event.Retained}
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		dropped := p.backlog.add(m)
		p.mu.Unlock()
		if dropped {
			p.log.Warn().Int("limit", p.backlog.limit).Msg("mqtt backlog full, dropping oldest")
		}
		return nil
	}
	return p.send(m)
}

func (p *RealPublisher) send(m outbound) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backlog.size()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
