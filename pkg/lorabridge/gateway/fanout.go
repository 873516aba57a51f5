package gateway

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/exepirit/lorabridge/pkg/lorabridge"
)

var _ lorabridge.Publisher = &FanOutPublisher{}

// FanOutPublisher republishes every message to several brokers at once.
type FanOutPublisher struct {
	Publishers []lorabridge.Publisher
}

// Add attaches one more publisher.
func (pub *FanOutPublisher) Add(p lorabridge.Publisher) {
	pub.Publishers = append(pub.Publishers, p)
}

// Publish sends to every connected publisher concurrently. It fails with
// lorabridge.ErrNotConnected when none is connected.
func (pub *FanOutPublisher) Publish(topic string, payload []byte) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
		sent int
	)
	for i, p := range pub.Publishers {
		i, p := i, p
		if !p.IsConnected() {
			continue
		}
		sent++
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Publish(topic, payload); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("publisher %d: %w", i, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if sent == 0 {
		return lorabridge.ErrNotConnected
	}
	return errors.Join(errs...)
}

// IsConnected reports whether at least one publisher is connected.
func (pub *FanOutPublisher) IsConnected() bool {
	for _, p := range pub.Publishers {
		if p.IsConnected() {
			return true
		}
	}
	return false
}

// Reconnect retries every disconnected publisher.
func (pub *FanOutPublisher) Reconnect() error {
	var errs []error
	for i, p := range pub.Publishers {
		if p.IsConnected() {
			continue
		}
		if err := p.Reconnect(); err != nil {
			errs = append(errs, fmt.Errorf("publisher %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher that can be closed.
func (pub *FanOutPublisher) Close() error {
	var errs []error
	for _, p := range pub.Publishers {
		if c, ok := p.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
