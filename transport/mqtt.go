// Package transport carries uplink packets over MQTT and receives remote commands.
package transport

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"github.com/gr-butler/airnode/payload"
)

var ErrNotConnected = errors.New("transport not connected")
var ErrBusy = errors.New("transport busy")

// Event is a link state change reported by the transport.
type Event int

const (
	JoinOK Event = iota
	JoinError
	SendStart
	SendDone
	SendError
)

func (e Event) String() string {
	switch e {
	case JoinOK:
		return "JOIN_OK"
	case JoinError:
		return "JOIN_ERROR"
	case SendStart:
		return "SEND_START"
	case SendDone:
		return "SEND_DONE"
	case SendError:
		return "SEND_ERROR"
	}
	return "UNKNOWN"
}

// Client is the part of mqtt.Client the transport uses.
type Client interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// CommandHandler runs a remote command line and returns the reply.
type CommandHandler func(line string) string

const publishTimeout = 10 * time.Second

// MQTT publishes packets to <topic>/up/<port>. Events are delivered on
// paho's goroutines.
type MQTT struct {
	client Client
	topic  string
	port   int
	events func(Event)
	busy   int32
}

func NewMQTT(client Client, topic string, port int, events func(Event)) *MQTT {
	if events == nil {
		events = func(Event) {}
	}
	return &MQTT{
		client: client,
		topic:  topic,
		port:   port,
		events: events,
	}
}

// ClientID is unique per process so two nodes never kick each other off the broker.
func ClientID(topic string) string {
	return fmt.Sprintf("%s-%s", topic, strings.Split(uuid.New().String(), "-")[0])
}

// Options builds client options that report connection changes as events.
func Options(broker, clientID string, events func(Event)) *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Infof("Connected to broker [%v]", broker)
			events(JoinOK)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Errorf("Lost connection to broker [%v] [%v]", broker, err)
			events(JoinError)
		})
}

func (m *MQTT) UplinkTopic() string {
	return fmt.Sprintf("%s/up/%d", m.topic, m.port)
}

func (m *MQTT) Ready() bool {
	return m.client.IsConnectionOpen() && atomic.LoadInt32(&m.busy) == 0
}

// Send starts the publish and returns without waiting for the broker.
// Completion is reported as SendDone or SendError.
func (m *MQTT) Send(p payload.Packet) error {
	if !m.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	if !atomic.CompareAndSwapInt32(&m.busy, 0, 1) {
		return ErrBusy
	}
	m.events(SendStart)
	token := m.client.Publish(m.UplinkTopic(), 1, false, p.Bytes())
	go m.await(token)
	return nil
}

func (m *MQTT) await(token mqtt.Token) {
	defer atomic.StoreInt32(&m.busy, 0)
	if !token.WaitTimeout(publishTimeout) {
		logger.Errorf("Publish to [%v] timed out", m.UplinkTopic())
		m.events(SendError)
		return
	}
	if err := token.Error(); err != nil {
		logger.Errorf("Publish to [%v] failed [%v]", m.UplinkTopic(), err)
		m.events(SendError)
		return
	}
	m.events(SendDone)
}

// Commands subscribes to <topic>/cmd. Each message is one command line and
// the handler's reply is published to <topic>/reply.
func (m *MQTT) Commands(handler CommandHandler) error {
	cmdTopic := m.topic + "/cmd"
	replyTopic := m.topic + "/reply"
	token := m.client.Subscribe(cmdTopic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		line := strings.TrimSpace(string(msg.Payload()))
		logger.Infof("Remote command [%v]", line)
		reply := handler(line)
		m.client.Publish(replyTopic, 0, false, reply)
	})
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe %s: timed out", cmdTopic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", cmdTopic, err)
	}
	logger.Infof("Listening for commands on [%v]", cmdTopic)
	return nil
}
