// Package meshsim is an in-memory stand-in for the routed LoRa mesh. Routes and
// per-link signal quality are set by hand; delivery to a routed destination is
// immediate and reliable.
package meshsim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/exepirit/lorabridge/pkg/lorabridge"
)

var (
	// ErrNoRoute is returned by SendReliable when the sender has no route to the destination.
	ErrNoRoute = errors.New("no route to destination")
	// ErrInboxFull is returned when the destination cannot take more messages.
	ErrInboxFull = errors.New("destination inbox full")
)

const inboxSize = 16

type link struct {
	a, b lorabridge.NodeID
}

func linkOf(a, b lorabridge.NodeID) link {
	if a > b {
		a, b = b, a
	}
	return link{a, b}
}

// Network is a set of simulated nodes sharing one radio channel.
type Network struct {
	mu      sync.Mutex
	nodes   map[lorabridge.NodeID]*Endpoint
	routes  map[lorabridge.NodeID]map[lorabridge.NodeID]lorabridge.NodeID
	quality map[link]int16
}

// NewNetwork creates an empty network.
func NewNetwork() *Network {
	return &Network{
		nodes:   make(map[lorabridge.NodeID]*Endpoint),
		routes:  make(map[lorabridge.NodeID]map[lorabridge.NodeID]lorabridge.NodeID),
		quality: make(map[link]int16),
	}
}

// Join attaches a node and returns its view of the mesh.
func (n *Network) Join(id lorabridge.NodeID) *Endpoint {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ep, ok := n.nodes[id]; ok {
		return ep
	}
	ep := &Endpoint{id: id, net: n, inbox: make(chan lorabridge.Datagram, inboxSize)}
	n.nodes[id] = ep
	return ep
}

// SetRoute makes from reach dest through hop. NoHop removes the route.
func (n *Network) SetRoute(from, dest, hop lorabridge.NodeID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	table, ok := n.routes[from]
	if !ok {
		table = make(map[lorabridge.NodeID]lorabridge.NodeID)
		n.routes[from] = table
	}
	if hop == lorabridge.NoHop {
		delete(table, dest)
		return
	}
	table[dest] = hop
}

// Link sets symmetric routes a↔b over a direct hop with the given quality.
func (n *Network) Link(a, b lorabridge.NodeID, quality int16) {
	n.SetRoute(a, b, b)
	n.SetRoute(b, a, a)
	n.SetQuality(a, b, quality)
}

// SetQuality sets the RSSI observed on the direct link between a and b.
func (n *Network) SetQuality(a, b lorabridge.NodeID, quality int16) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.quality[linkOf(a, b)] = quality
}

func (n *Network) nextHop(from, dest lorabridge.NodeID) lorabridge.NodeID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.routes[from][dest]
}

func (n *Network) linkQuality(a, b lorabridge.NodeID) int16 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.quality[linkOf(a, b)]
}

func (n *Network) endpoint(id lorabridge.NodeID) (*Endpoint, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ep, ok := n.nodes[id]
	return ep, ok
}

var (
	_ lorabridge.Mesh  = &Endpoint{}
	_ lorabridge.Radio = &Endpoint{}
)

// Endpoint is one node's attachment to the network.
type Endpoint struct {
	id    lorabridge.NodeID
	net   *Network
	inbox chan lorabridge.Datagram

	lastQuality atomic.Int32
	failInit    atomic.Bool
	dropSends   atomic.Bool
	settings    atomic.Pointer[lorabridge.RadioSettings]
}

// ID returns the identity of the node.
func (e *Endpoint) ID() lorabridge.NodeID {
	return e.id
}

// FailInit makes the next Init call fail, as with a missing radio module.
func (e *Endpoint) FailInit(fail bool) {
	e.failInit.Store(fail)
}

// DropSends makes every SendReliable fail as if no acknowledgement came back.
func (e *Endpoint) DropSends(drop bool) {
	e.dropSends.Store(drop)
}

// Settings returns the settings of the last successful Init.
func (e *Endpoint) Settings() (lorabridge.RadioSettings, bool) {
	if s := e.settings.Load(); s != nil {
		return *s, true
	}
	return lorabridge.RadioSettings{}, false
}

func (e *Endpoint) Init(settings lorabridge.RadioSettings) error {
	if e.failInit.Load() {
		return errors.New("radio module not responding")
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	e.settings.Store(&settings)
	return nil
}

func (e *Endpoint) SendReliable(ctx context.Context, dest lorabridge.NodeID, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.dropSends.Load() {
		return fmt.Errorf("send to %d: no acknowledgement", dest)
	}
	hop := e.net.nextHop(e.id, dest)
	if hop == lorabridge.NoHop {
		return fmt.Errorf("send to %d: %w", dest, ErrNoRoute)
	}
	target, ok := e.net.endpoint(dest)
	if !ok {
		return fmt.Errorf("send to %d: %w", dest, ErrNoRoute)
	}
	select {
	case target.inbox <- lorabridge.Datagram{From: e.id, Payload: bytes.Clone(payload)}:
	default:
		return fmt.Errorf("send to %d: %w", dest, ErrInboxFull)
	}
	// the acknowledgement comes back over the first hop
	e.lastQuality.Store(int32(e.net.linkQuality(e.id, hop)))
	return nil
}

func (e *Endpoint) Receive(ctx context.Context, timeout time.Duration) (lorabridge.Datagram, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return lorabridge.Datagram{}, ctx.Err()
	case <-timer.C:
		return lorabridge.Datagram{}, lorabridge.ErrNoMessage
	case d := <-e.inbox:
		if hop := e.net.nextHop(e.id, d.From); hop != lorabridge.NoHop {
			e.lastQuality.Store(int32(e.net.linkQuality(e.id, hop)))
		}
		return d, nil
	}
}

func (e *Endpoint) NextHop(dest lorabridge.NodeID) lorabridge.NodeID {
	return e.net.nextHop(e.id, dest)
}

func (e *Endpoint) LastSignalQuality() int16 {
	return int16(e.lastQuality.Load())
}
