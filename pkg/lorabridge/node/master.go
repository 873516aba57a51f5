package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/exepirit/lorabridge/pkg/lorabridge"
	"github.com/exepirit/lorabridge/pkg/lorabridge/handoff"
	"github.com/exepirit/lorabridge/pkg/lorabridge/message"
	"github.com/exepirit/lorabridge/pkg/lorabridge/schedule"
)

// DefaultPeerRoutingInterval is how often the master pushes its routing table to each peer.
const DefaultPeerRoutingInterval = 3 * time.Second

// MasterConfig configures the mesh root.
type MasterConfig struct {
	Config
	// PeerRoutingInterval is the per-peer routing push period. Defaults to DefaultPeerRoutingInterval.
	PeerRoutingInterval time.Duration
}

// Master is the mesh root. It mirrors the routing state, pushes routing
// summaries to its peers and stages the latest payload in the hand-off buffer
// for the gateway.
type Master struct {
	base
	buffer   *handoff.Buffer
	interval time.Duration

	// pending is the latest sensor document not yet staged.
	pending []byte
	// holding is the generation of a staged sensor document the gateway has
	// not fetched yet; routing bundles must not overwrite it.
	holding uint64
}

// NewMaster prepares the master loop. cfg.Self is forced to lorabridge.MasterID.
func NewMaster(mesh lorabridge.Mesh, radio lorabridge.Radio, buffer *handoff.Buffer, cfg MasterConfig) (*Master, error) {
	cfg.Self = lorabridge.MasterID
	b, err := newBase(mesh, radio, cfg.Config)
	if err != nil {
		return nil, err
	}
	if cfg.PeerRoutingInterval <= 0 {
		cfg.PeerRoutingInterval = DefaultPeerRoutingInterval
	}
	m := &Master{base: b, buffer: buffer, interval: cfg.PeerRoutingInterval}

	peers := cfg.NodeCount - 1
	for peer := lorabridge.MasterID + 1; int(peer) <= cfg.NodeCount; peer++ {
		peer := peer
		duty := &schedule.Duty{
			Name:     fmt.Sprintf("routing->%d", peer),
			Interval: m.interval,
			Run:      func(ctx context.Context) { m.pushRouting(ctx, peer) },
		}
		m.sched.Add(duty)
		// spread the peers over one interval
		m.sched.Stagger(duty, m.interval*time.Duration(int(peer)-1)/time.Duration(peers+1))
	}
	return m, nil
}

// Run drives the loop until ctx is cancelled. It returns an error wrapping
// lorabridge.ErrRadioInit when the radio cannot be brought up.
func (m *Master) Run(ctx context.Context) error {
	m.logger.Info("Master node ready", "node", m.cfg.Self, "nodes", m.cfg.NodeCount)
	return m.run(ctx, m.Step)
}

// Step runs one iteration: listen, due duties, hand-off refresh.
func (m *Master) Step(ctx context.Context) {
	if d, ok := m.receive(ctx); ok {
		m.dispatch(d)
	}
	m.sched.RunDue(ctx)
	m.refreshHandoff()
}

func (m *Master) dispatch(d lorabridge.Datagram) {
	env, err := message.Decode(d)
	if err != nil {
		m.logger.Warn("Discarding malformed payload", "from", d.From, "error", err)
		return
	}
	switch env.Payload.(type) {
	case message.RoutingReport:
		m.logger.Info("Routing from node", "from", env.From, "payload", string(env.Raw))
	case message.SensorReading, message.RoutingBundle:
		m.logger.Info("Sensor data from node", "from", env.From, "payload", string(env.Raw))
		m.pending = env.Raw
	}
	m.recordInbound(env.From)
}

func (m *Master) pushRouting(ctx context.Context, peer lorabridge.NodeID) {
	report, err := m.routingReport()
	if err != nil {
		m.logger.Error("Cannot render routing table", "error", err)
		return
	}
	if m.send(ctx, peer, report) {
		m.logger.Info("Sent routing to node", "to", peer)
	}
}

// refreshHandoff stages new content for the gateway unless a transfer is in
// flight or a sensor document is still waiting to be fetched.
func (m *Master) refreshHandoff() {
	if m.buffer.Serving() {
		return
	}

	if m.pending != nil {
		gen, err := m.buffer.Stage(m.pending)
		switch {
		case errors.Is(err, handoff.ErrServing):
			return
		case err != nil:
			m.logger.Warn("Cannot stage sensor data", "error", err)
		default:
			m.holding = gen
		}
		m.pending = nil
		return
	}

	if m.holding != 0 && m.buffer.Delivered() < m.holding {
		return
	}
	m.holding = 0

	m.table.Refresh(m.mesh)
	bundle, err := message.Encode(message.RoutingBundle{
		Node:         m.cfg.Self,
		RoutingTable: m.table.Report(),
		Timestamp:    m.cfg.Clock.Millis(),
	})
	if err != nil {
		m.logger.Error("Cannot render routing bundle", "error", err)
		return
	}
	if _, err := m.buffer.Stage(bundle); err != nil && !errors.Is(err, handoff.ErrServing) {
		m.logger.Warn("Cannot stage routing bundle", "error", err)
	}
}
