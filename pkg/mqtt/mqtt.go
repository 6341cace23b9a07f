// Package mqtt publishes the received data and the link statistics to a mqtt broker.
package mqtt

import (
	"encoding/json"
	"sync"
	"time"

	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/womat/debug"
)

const (
	// quiesce is the specified number of milliseconds to wait for existing work to be completed.
	quiesce = 250
	// connectTimeout limits the wait for the broker connection.
	connectTimeout = 5 * time.Second
)

// Handler contains the handler of the mqtt broker.
type Handler struct {
	handler mqttlib.Client
	// C is the channel to service the mqtt message
	// sending a message to channel C will send the message.
	C chan Message

	// quit stops the service
	quit chan struct{}
	once sync.Once
}

// Message contains the properties of the mqtt message.
type Message struct {
	Topic    string
	Payload  []byte
	Qos      byte
	Retained bool
}

// NewMessage creates a retained message with the json encoding of v as payload.
func NewMessage(topic string, v interface{}) (Message, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Message{}, err
	}

	return Message{
		Qos:      0,
		Retained: true,
		Topic:    topic,
		Payload:  b,
	}, nil
}

// New generate a new mqtt broker client.
func New() *Handler {
	return &Handler{
		C:    make(chan Message),
		quit: make(chan struct{}),
	}
}

// Connect connects to the mqtt broker.
// If no broker is defined, no mqtt message are send.
func (m *Handler) Connect(broker, clientID string) error {
	if broker == "" {
		return nil
	}

	opts := mqttlib.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true)
	m.handler = mqttlib.NewClient(opts)
	return m.ReConnect()
}

// ReConnect reconnects to the defined mqtt broker.
func (m *Handler) ReConnect() error {
	t := m.handler.Connect()
	<-t.Done()
	return t.Error()
}

// Publish encodes v and hands it to the service.
// The call doesn't wait for the service to pick up the message.
func (m *Handler) Publish(topic string, v interface{}) {
	if topic == "" {
		return
	}

	msg, err := NewMessage(topic, v)
	if err != nil {
		debug.ErrorLog.Printf("mqtt marshal %v: %v", topic, err)
		return
	}

	go func() {
		debug.TraceLog.Printf("prepare mqtt message %v %s", msg.Topic, msg.Payload)
		select {
		case m.C <- msg:
		case <-m.quit:
		}
	}()
}

// Disconnect will end the connection to the broker.
func (m *Handler) Disconnect() error {
	if m.handler == nil {
		return nil
	}

	m.handler.Disconnect(quiesce)
	return nil
}

// Close stops the service and disconnects from the broker.
func (m *Handler) Close() error {
	m.once.Do(func() { close(m.quit) })
	return m.Disconnect()
}

// Service listen to a message on the channel C and send the message to mqtt.
// If no handler or topic is defined, the message will be ignored.
// Service returns when the handler is closed.
func (m *Handler) Service() {
	for {
		var d Message
		select {
		case <-m.quit:
			return
		case d = <-m.C:
		}

		if m.handler == nil || d.Topic == "" {
			continue
		}

		go func(msg Message) {
			if !m.handler.IsConnected() {
				debug.DebugLog.Printf("mqtt broker isn't connected, reconnect it")

				if err := m.ReConnect(); err != nil {
					debug.ErrorLog.Printf("can't reconnect to mqtt broker %v", err)
					return
				}
			}

			debug.DebugLog.Printf("publishing %v bytes to topic %v", len(msg.Payload), msg.Topic)
			t := m.handler.Publish(msg.Topic, msg.Qos, msg.Retained, msg.Payload)

			// the asynchronous nature of this library makes it easy to forget to check for errors.
			// Consider using a go routine to log these
			go func() {
				<-t.Done()
				if err := t.Error(); err != nil {
					debug.ErrorLog.Printf("publishing topic %v: %v", msg.Topic, err)
				}
			}()
		}(d)
	}
}
