// Package cli holds the flag and URL handling shared by the binaries.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/exepirit/lorabridge/internal/log"
	"github.com/exepirit/lorabridge/pkg/lorabridge"
	"github.com/exepirit/lorabridge/pkg/lorabridge/gateway"
	"github.com/exepirit/lorabridge/pkg/lorabridge/mqtt"
	"github.com/exepirit/lorabridge/pkg/lorabridge/nats"
	"github.com/exepirit/lorabridge/pkg/lorabridge/serial"
)

// Environment variables holding MQTT credentials.
const (
	EnvMQTTUsername = "LORABRIDGE_MQTT_USERNAME"
	EnvMQTTPassword = "LORABRIDGE_MQTT_PASSWORD"
)

var ErrUnsupportedScheme = errors.New("unsupported URL scheme")

// NewLogger builds the text logger the binaries log with.
func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// SerialBus is a parsed serial:/dev/ttyUSB0?baud=115200 bus URL.
type SerialBus struct {
	Port string
	Baud int
}

// ParseBus parses a bus URL. Only the serial scheme is supported.
func ParseBus(raw string) (SerialBus, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return SerialBus{}, fmt.Errorf("bus URL is not valid: %w", err)
	}
	if u.Scheme != "serial" {
		return SerialBus{}, fmt.Errorf("%w %q", ErrUnsupportedScheme, u.Scheme)
	}
	bus := SerialBus{Port: u.Opaque, Baud: serial.DefaultBaudRate}
	if bus.Port == "" {
		bus.Port = u.Path
	}
	if bus.Port == "" {
		return SerialBus{}, errors.New("bus URL has no port")
	}
	if b := u.Query().Get("baud"); b != "" {
		bus.Baud, err = strconv.Atoi(b)
		if err != nil || bus.Baud <= 0 {
			return SerialBus{}, fmt.Errorf("bad baud rate %q", b)
		}
	}
	return bus, nil
}

// Open opens the serial port of the bus.
func (b SerialBus) Open() (*serial.Link, error) {
	return serial.Open(b.Port, b.Baud)
}

// Broker is a publisher that also watches the control topic.
type Broker interface {
	lorabridge.Publisher
	SubscribeControl(topic string) error
	Close() error
}

// NewBroker creates the publisher for a broker URL: tcp, ssl, ws or wss for
// MQTT, nats or tls for NATS. MQTT credentials come from the URL user info or
// the environment.
func NewBroker(raw, appName string, logger log.Logger) (Broker, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("broker URL is not valid: %w", err)
	}
	switch u.Scheme {
	case "tcp", "ssl", "ws", "wss", "mqtt":
		p := &mqtt.Publisher{
			AppName:  appName,
			Username: os.Getenv(EnvMQTTUsername),
			Password: os.Getenv(EnvMQTTPassword),
			Logger:   logger,
		}
		if u.User != nil {
			p.Username = u.User.Username()
			p.Password, _ = u.User.Password()
			u.User = nil
		}
		if u.Scheme == "mqtt" {
			u.Scheme = "tcp"
		}
		p.BrokerURL = u.String()
		return p, nil
	case "nats", "tls":
		return &nats.Publisher{URL: raw, Name: appName, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// NewBrokers creates one publisher per comma-separated broker URL, subscribed
// to the control topic, behind a single fan-out publisher.
func NewBrokers(list, appName string, logger log.Logger) (*gateway.FanOutPublisher, error) {
	fan := &gateway.FanOutPublisher{}
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		b, err := NewBroker(raw, appName, logger)
		if err != nil {
			return nil, err
		}
		if err := b.SubscribeControl(gateway.ControlTopic); err != nil {
			return nil, err
		}
		fan.Add(b)
	}
	if len(fan.Publishers) == 0 {
		return nil, errors.New("no broker configured")
	}
	return fan, nil
}
