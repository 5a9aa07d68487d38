package mqtt

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// DefaultBufferSize is the number of messages held while disconnected.
const DefaultBufferSize = 100

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Username   string
	Password   string
	Topics     Topics
	BufferSize int
}

// RealPublisher publishes to an MQTT broker. Messages published before the
// first connection, or while reconnecting, are buffered and replayed on
// connect.
type RealPublisher struct {
	client paho.Client
	topics Topics

	mu            sync.Mutex
	buf           *ringBuffer
	connectedOnce bool
}

// NewRealPublisher creates a publisher for o.Broker. It does not connect;
// call Connect.
func NewRealPublisher(o Options) *RealPublisher {
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.Topics == (Topics{}) {
		o.Topics = TopicsFor(DefaultTopicPrefix)
	}
	p := &RealPublisher{
		topics: o.Topics,
		buf:    newRingBuffer(o.BufferSize),
	}

	// Two daemons sharing a client ID would kick each other off the broker.
	clientID := o.ClientID + "-" + uuid.NewString()[:8]

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     EventShutdown,
		Reason:    "MQTT_DISCONNECT",
	})

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(clientID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetConnectTimeout(10*time.Second).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(time.Minute).
		SetWill(o.Topics.System, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	return p
}

// Connect blocks until the first connection succeeds, retrying with
// exponential backoff, or until ctx is done. Later reconnects are handled
// by the client.
func (p *RealPublisher) Connect(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		token := p.client.Connect()
		token.Wait()
		return token.Error()
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		log.Printf("mqtt: connect failed: %v (retry in %v)", err, next.Round(time.Second))
	})
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	return nil
}

func (p *RealPublisher) onConnect(paho.Client) {
	p.mu.Lock()
	reconnect := p.connectedOnce
	p.connectedOnce = true
	pending := p.buf.drainAll()
	p.mu.Unlock()

	log.Printf("mqtt: connected")
	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventReconnected})
		if err := p.send(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: true}); err != nil {
			log.Printf("mqtt: %v", err)
		}
	}
	for _, m := range pending {
		if err := p.send(m); err != nil {
			log.Printf("mqtt: replay: %v", err)
		}
	}
}

// PublishState sends a state snapshot. QoS 0, retained so new subscribers
// see the latest state.
func (p *RealPublisher) PublishState(event StateEvent) error {
	payload, err := FormatStatePayload(event)
	if err != nil {
		return fmt.Errorf("format state payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.topics.State, payload: payload, qos: 0, retained: true})
}

// PublishSystem sends a lifecycle event with QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(m bufferedMsg) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.buf.push(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.send(m)
}

func (p *RealPublisher) send(m bufferedMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker, waiting up to a second for in-flight
// messages.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
