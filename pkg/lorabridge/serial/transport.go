// Package serial carries the bus hand-off protocol over a serial port, for
// setups where the master and the gateway are joined by a USB-UART bridge
// instead of a native SPI bus.
package serial

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/exepirit/lorabridge/pkg/lorabridge/handoff"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the rate the bridge firmware opens its UART with.
	DefaultBaudRate = 115200
	// DefaultReplyTimeout bounds the wait for the reply to one transfer.
	DefaultReplyTimeout = 100 * time.Millisecond
)

// ErrNoReply is returned when the other end does not answer a transfer in time.
var ErrNoReply = errors.New("no reply on serial bus")

// Open opens the specified serial port with the given baud rate. A zero rate
// selects DefaultBaudRate.
func Open(port string, baud int) (*Link, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return &Link{Port: p, ReplyTimeout: DefaultReplyTimeout}, nil
}

var _ handoff.Exchanger = &Link{}

// Link is one end of the bus carried over a serial port. A Link serves one
// side only: the initiator calls Exchange, the responder drives Read and Write
// through handoff.Serve.
type Link struct {
	Port serial.Port
	// ReplyTimeout bounds the wait for each reply byte on the initiator side.
	ReplyTimeout time.Duration

	lock    sync.Mutex
	timeout time.Duration
}

// Exchange writes one byte and waits for the reply. It is the initiator side.
func (l *Link) Exchange(tx byte) (byte, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if err := l.setTimeout(l.ReplyTimeout); err != nil {
		return 0, err
	}
	// a late reply to an earlier transfer must not be read as the answer to this one
	if tx == handoff.Start {
		if err := l.resetInput(); err != nil {
			return 0, err
		}
	}
	if _, err := l.Port.Write([]byte{tx}); err != nil {
		return 0, err
	}
	buf := make([]byte, 1)
	n, err := l.Port.Read(buf)
	switch {
	case err != nil:
		return 0, err
	case n < 1:
		if err := l.resetInput(); err != nil {
			return 0, err
		}
		return 0, ErrNoReply
	}
	return buf[0], nil
}

// Read blocks until at least one byte arrives. It lets a Link drive handoff.Serve
// on the responder side.
func (l *Link) Read(p []byte) (int, error) {
	l.lock.Lock()
	err := l.setTimeout(serial.NoTimeout)
	l.lock.Unlock()
	if err != nil {
		return 0, err
	}
	return l.Port.Read(p)
}

func (l *Link) Write(p []byte) (int, error) {
	return l.Port.Write(p)
}

func (l *Link) Close() error {
	return l.Port.Close()
}

func (l *Link) resetInput() error {
	if err := l.Port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("reset input buffer: %w", err)
	}
	return nil
}

// setTimeout must be called with l.lock held.
func (l *Link) setTimeout(d time.Duration) error {
	if d <= 0 {
		d = serial.NoTimeout
	}
	if d == l.timeout {
		return nil
	}
	if err := l.Port.SetReadTimeout(d); err != nil {
		return fmt.Errorf("set read timeout: %w", err)
	}
	l.timeout = d
	return nil
}
