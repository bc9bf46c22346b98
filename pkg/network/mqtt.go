package network

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/insteon-mqtt/insteon-go/pkg/log"
)

// mqttConnectTimeout bounds one broker connect attempt. The manager's
// backoff schedule owns the retry cadence.
const mqttConnectTimeout = 10 * time.Second

// mqttKeepAlive is the broker keep-alive interval.
const mqttKeepAlive = 30 * time.Second

// MQTTOptions configures the broker connection.
type MQTTOptions struct {
	// Broker is the broker URL, e.g. "tcp://localhost:1883".
	Broker string

	// ClientID identifies this client to the broker. Defaults to
	// "insteon-bridge" plus a random suffix.
	ClientID string

	// Username and Password are optional broker credentials.
	Username string
	Password string

	// KeepAlive is the broker keep-alive interval. Zero selects the
	// default.
	KeepAlive time.Duration
}

// mqttPublish is one queued outbound publish.
type mqttPublish struct {
	topic   string
	payload []byte
	qos     byte
	retain  bool
	after   time.Time
}

// subscription is a topic filter re-subscribed on every reconnect.
type subscription struct {
	topic string
	qos   byte
}

// MQTTLink connects the reactor to an MQTT broker. Inbound messages
// are posted to the manager's event channel so the message callback
// always runs on the pump loop, never on a paho goroutine.
type MQTTLink struct {
	id     string
	opts   MQTTOptions
	logger log.Logger

	client mqtt.Client
	events chan<- Event
	subs   []subscription
	writeQ []mqttPublish

	onMessage func(topic string, payload []byte)
}

// NewMQTTLink creates an unconnected broker link. A nil logger
// disables logging.
func NewMQTTLink(opts MQTTOptions, logger log.Logger) *MQTTLink {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	id := uuid.NewString()
	if opts.ClientID == "" {
		opts.ClientID = "insteon-bridge-" + id[:8]
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = mqttKeepAlive
	}
	return &MQTTLink{
		id:     id,
		opts:   opts,
		logger: logger,
	}
}

// ID returns the link instance identifier.
func (l *MQTTLink) ID() string { return l.id }

// Name returns the broker URL.
func (l *MQTTLink) Name() string { return l.opts.Broker }

// SetOnMessage sets the inbound message callback, invoked from the
// pump loop.
func (l *MQTTLink) SetOnMessage(fn func(topic string, payload []byte)) {
	l.onMessage = fn
}

// Subscribe registers a topic filter. Active immediately when
// connected, and re-applied after every reconnect.
func (l *MQTTLink) Subscribe(topic string, qos byte) error {
	l.subs = append(l.subs, subscription{topic: topic, qos: qos})
	if l.client == nil || !l.client.IsConnected() {
		return nil
	}
	return l.subscribe(subscription{topic: topic, qos: qos})
}

// Connect dials the broker and applies the registered subscriptions.
// Paho's own auto-reconnect stays off: the manager schedules reconnect
// attempts so link state is consistent across transports.
func (l *MQTTLink) Connect(events chan<- Event) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(l.opts.Broker)
	opts.SetClientID(l.opts.ClientID)
	if l.opts.Username != "" {
		opts.SetUsername(l.opts.Username)
		opts.SetPassword(l.opts.Password)
	}
	opts.SetKeepAlive(l.opts.KeepAlive)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		events <- Event{Link: l, Err: err}
	})

	l.events = events

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return fmt.Errorf("connect to broker %s: timed out", l.opts.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker %s: %w", l.opts.Broker, err)
	}
	l.client = client

	for _, sub := range l.subs {
		if err := l.subscribe(sub); err != nil {
			client.Disconnect(0)
			l.client = nil
			return err
		}
	}
	return nil
}

func (l *MQTTLink) subscribe(sub subscription) error {
	token := l.client.Subscribe(sub.topic, sub.qos, func(_ mqtt.Client, msg mqtt.Message) {
		l.events <- Event{Link: l, Topic: msg.Topic(), Data: msg.Payload()}
	})
	if !token.WaitTimeout(mqttConnectTimeout) {
		return fmt.Errorf("subscribe %s: timed out", sub.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", sub.topic, err)
	}
	return nil
}

// Close disconnects from the broker. Queued publishes are kept for the
// next connect.
func (l *MQTTLink) Close() error {
	if l.client == nil {
		return nil
	}
	l.client.Disconnect(250)
	l.client = nil
	return nil
}

// Publish queues a message for the pump loop's flush.
func (l *MQTTLink) Publish(topic string, payload []byte, qos byte, retain bool) {
	l.writeQ = append(l.writeQ, mqttPublish{
		topic:   topic,
		payload: payload,
		qos:     qos,
		retain:  retain,
	})
	if len(l.writeQ) > maxWriteQueue {
		l.writeQ = l.writeQ[1:]
	}
}

// NextWrite returns the scheduled time of the head publish.
func (l *MQTTLink) NextWrite() (time.Time, bool) {
	if len(l.writeQ) == 0 {
		return time.Time{}, false
	}
	return l.writeQ[0].after, true
}

// Flush hands every due publish to the paho client. Delivery
// completion is left to the client's own goroutines; a dead connection
// surfaces through the connection-lost handler instead.
func (l *MQTTLink) Flush(now time.Time) error {
	for len(l.writeQ) > 0 {
		head := l.writeQ[0]
		if now.Before(head.after) {
			return nil
		}
		l.client.Publish(head.topic, head.qos, head.retain, head.payload)
		l.writeQ = l.writeQ[1:]
	}
	return nil
}

// Deliver passes an inbound message to the callback and captures it at
// the transport layer.
func (l *MQTTLink) Deliver(ev Event) {
	l.logger.Log(log.Event{
		Timestamp: time.Now(),
		Link:      l.opts.Broker,
		Direction: log.DirectionIn,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size: len(ev.Data),
			Data: ev.Data,
		},
	})
	if l.onMessage != nil {
		l.onMessage(ev.Topic, ev.Data)
	}
}

// Compile-time interface satisfaction check.
var _ Link = (*MQTTLink)(nil)
