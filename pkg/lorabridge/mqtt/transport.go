package mqtt

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/exepirit/lorabridge/internal/log"
	"github.com/exepirit/lorabridge/pkg/lorabridge"
)

// DefaultTimeout bounds every wait on the broker.
const DefaultTimeout = 5 * time.Second

var _ lorabridge.Publisher = &Publisher{}

// Publisher is an MQTT-based outbound transport for the gateway.
type Publisher struct {
	// BrokerURL is the URL of the MQTT broker to connect to.
	BrokerURL string
	// Username is the username for MQTT authentication.
	Username string
	// Password is the password for MQTT authentication.
	Password string
	// AppName is a unique identifier for the application, used in the MQTT client ID.
	AppName string
	// Timeout bounds connects and publishes. Defaults to DefaultTimeout.
	Timeout time.Duration
	Logger  log.Logger

	mu           sync.Mutex
	client       mqtt.Client
	controlTopic string
}

// Connect establishes an MQTT connection to the broker.
// It generates a random client ID and, once connected, subscribes to the
// control topic if one was set with SubscribeControl.
func (mt *Publisher) Connect() error {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	if mt.client != nil && mt.client.IsConnected() {
		return nil
	}
	if mt.BrokerURL == "" {
		return ErrNoBroker
	}

	randomId := make([]byte, 4)
	_, _ = rand.Read(randomId)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(mt.BrokerURL)
	opts.SetUsername(mt.Username)
	opts.SetPassword(mt.Password)
	opts.SetClientID(fmt.Sprintf("%s-%x", mt.AppName, randomId))
	opts.SetOrderMatters(false)
	opts.SetConnectTimeout(mt.timeout())
	// the gateway reconnects on its own poll cycle
	opts.SetAutoReconnect(false)
	opts.SetOnConnectHandler(mt.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		mt.logger().Warn("MQTT connection lost", "error", err)
	})

	mt.client = mqtt.NewClient(opts)

	token := mt.client.Connect()
	if err := wait(token, mt.timeout()); err != nil {
		return fmt.Errorf("failed to connect MQTT: %w", err)
	}
	mt.logger().Info("MQTT connected", "broker", mt.BrokerURL)
	return nil
}

// Reconnect is Connect; the client is rebuilt when the session was lost.
func (mt *Publisher) Reconnect() error {
	return mt.Connect()
}

// IsConnected reports whether the broker session is up.
func (mt *Publisher) IsConnected() bool {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.client != nil && mt.client.IsConnected()
}

// Publish sends payload to topic at QoS 0 and waits for the client to hand it off.
func (mt *Publisher) Publish(topic string, payload []byte) error {
	mt.mu.Lock()
	client := mt.client
	mt.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}

	token := client.Publish(topic, 0, false, payload)
	if err := wait(token, mt.timeout()); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// SubscribeControl logs every message arriving on topic. The subscription is
// renewed on every connect.
func (mt *Publisher) SubscribeControl(topic string) error {
	mt.mu.Lock()
	mt.controlTopic = topic
	client := mt.client
	mt.mu.Unlock()

	if client == nil || !client.IsConnected() {
		return nil
	}
	return mt.subscribe(client, topic)
}

// Disconnect closes the MQTT connection.
func (mt *Publisher) Disconnect() {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.client != nil && mt.client.IsConnected() {
		mt.client.Disconnect(1000)
	}
}

// Close is Disconnect, for io.Closer.
func (mt *Publisher) Close() error {
	mt.Disconnect()
	return nil
}

func (mt *Publisher) onConnect(client mqtt.Client) {
	mt.mu.Lock()
	topic := mt.controlTopic
	mt.mu.Unlock()
	if topic == "" {
		return
	}
	if err := mt.subscribe(client, topic); err != nil {
		mt.logger().Warn("Control subscription failed", "topic", topic, "error", err)
	}
}

func (mt *Publisher) subscribe(client mqtt.Client, topic string) error {
	token := client.Subscribe(topic, 0, mt.handleControl)
	if err := wait(token, mt.timeout()); err != nil {
		return fmt.Errorf("failed to subscribe to topic: %w", err)
	}
	return nil
}

func (mt *Publisher) handleControl(_ mqtt.Client, message mqtt.Message) {
	mt.logger().Info("Control message", "topic", message.Topic(), "payload", string(message.Payload()))
}

func (mt *Publisher) timeout() time.Duration {
	if mt.Timeout <= 0 {
		return DefaultTimeout
	}
	return mt.Timeout
}

func (mt *Publisher) logger() log.Logger {
	return log.OrNOOP(mt.Logger)
}

func wait(token mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return ErrTimeout
	}
	return token.Error()
}
