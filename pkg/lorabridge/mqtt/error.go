package mqtt

import (
	"errors"

	"github.com/exepirit/lorabridge/pkg/lorabridge"
)

var (
	// ErrNotConnected is returned when attempting to perform an operation on a client that is not connected to the broker.
	ErrNotConnected = lorabridge.ErrNotConnected
	// ErrNoBroker is returned by Connect when BrokerURL is empty.
	ErrNoBroker = errors.New("broker URL is not set")
	// ErrTimeout is returned when the broker did not answer in time.
	ErrTimeout = errors.New("timed out waiting for broker")
)
