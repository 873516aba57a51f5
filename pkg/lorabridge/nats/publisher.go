// Package nats publishes gateway documents to a NATS server. Topics map onto
// subjects by replacing "/" with ".".
package nats

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/exepirit/lorabridge/internal/log"
	"github.com/exepirit/lorabridge/pkg/lorabridge"
)

// DefaultTimeout bounds connects and flushes.
const DefaultTimeout = 5 * time.Second

var _ lorabridge.Publisher = &Publisher{}

// Publisher is a NATS-based outbound transport for the gateway.
type Publisher struct {
	// URL of the server, e.g. nats://127.0.0.1:4222.
	URL string
	// Name is the client name shown in server monitoring.
	Name    string
	Timeout time.Duration
	Logger  log.Logger

	mu      sync.Mutex
	nc      *nats.Conn
	control string
}

// Subject maps a slash-separated topic onto a NATS subject.
func Subject(topic string) string {
	return strings.ReplaceAll(strings.Trim(topic, "/"), "/", ".")
}

// Connect dials the server. The client keeps reconnecting on its own once
// the first connection succeeded.
func (p *Publisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.nc != nil && !p.nc.IsClosed() {
		return nil
	}

	logger := log.OrNOOP(p.Logger)
	nc, err := nats.Connect(p.URL,
		nats.Name(p.Name),
		nats.Timeout(p.timeout()),
		nats.PingInterval(5*time.Second),
		nats.MaxPingsOutstanding(3),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "server", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("nats connect %s: %w", p.URL, err)
	}
	p.nc = nc

	if p.control != "" {
		if err := p.subscribe(p.control); err != nil {
			logger.Warn("Control subscription failed", "topic", p.control, "error", err)
		}
	}
	logger.Info("NATS connected", "server", nc.ConnectedUrl())
	return nil
}

// Reconnect is Connect.
func (p *Publisher) Reconnect() error {
	return p.Connect()
}

// IsConnected reports whether the connection is currently up.
func (p *Publisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nc != nil && p.nc.IsConnected()
}

// Publish sends payload to the subject of topic and flushes it to the server.
func (p *Publisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	nc := p.nc
	p.mu.Unlock()
	if nc == nil || !nc.IsConnected() {
		return lorabridge.ErrNotConnected
	}

	subject := Subject(topic)
	if err := nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	if err := nc.FlushTimeout(p.timeout()); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	return nil
}

// SubscribeControl logs every message arriving on topic.
func (p *Publisher) SubscribeControl(topic string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.control = topic
	if p.nc == nil || p.nc.IsClosed() {
		return nil
	}
	return p.subscribe(topic)
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nc == nil || p.nc.IsClosed() {
		return nil
	}
	return p.nc.Drain()
}

func (p *Publisher) subscribe(topic string) error {
	logger := log.OrNOOP(p.Logger)
	_, err := p.nc.Subscribe(Subject(topic), func(msg *nats.Msg) {
		logger.Info("Control message", "subject", msg.Subject, "payload", string(msg.Data))
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}
