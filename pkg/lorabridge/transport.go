package lorabridge

import (
	"context"
	"time"
)

// Datagram is a single message received from the mesh.
type Datagram struct {
	From    NodeID
	Payload []byte
}

// Mesh is the routed radio network as seen by one node. Route discovery and
// reliable delivery happen behind it.
type Mesh interface {
	// SendReliable delivers payload to dest and waits for the mesh acknowledgement.
	SendReliable(ctx context.Context, dest NodeID, payload []byte) error
	// Receive waits at most timeout for an inbound message. It returns ErrNoMessage
	// when nothing arrived in time.
	Receive(ctx context.Context, timeout time.Duration) (Datagram, error)
	// NextHop returns the neighbour used to reach dest, or NoHop when no route is known.
	NextHop(dest NodeID) NodeID
	// LastSignalQuality returns the RSSI of the most recent reception, in dBm.
	LastSignalQuality() int16
}

// Radio is the physical radio module behind a Mesh.
type Radio interface {
	// Init configures the module. A failure leaves the node unable to do anything useful.
	Init(settings RadioSettings) error
}

// Publisher is the outbound pub/sub transport used by the gateway.
type Publisher interface {
	// Publish sends payload to topic.
	Publish(topic string, payload []byte) error
	// IsConnected reports whether the broker session is up.
	IsConnected() bool
	// Reconnect tries to establish the broker session once.
	Reconnect() error
}
