// Package node runs the cooperative main loops of the master and sensor nodes.
//
// Each loop iteration listens for inbound traffic for a bounded time, fires the
// periodic duties that are due and, on the master, refreshes the hand-off buffer.
// Nothing in an iteration sleeps except the bounded listen.
package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/exepirit/lorabridge/internal/log"
	"github.com/exepirit/lorabridge/pkg/lorabridge"
	"github.com/exepirit/lorabridge/pkg/lorabridge/routing"
	"github.com/exepirit/lorabridge/pkg/lorabridge/schedule"
)

// DefaultListenTimeout bounds the inbound wait of one iteration.
const DefaultListenTimeout = time.Second

// Config holds what both node roles share.
type Config struct {
	// Self is the identity of the node.
	Self lorabridge.NodeID
	// NodeCount is the number of nodes in the mesh, master included.
	NodeCount int
	// ListenTimeout bounds the inbound wait of one iteration. Defaults to DefaultListenTimeout.
	ListenTimeout time.Duration
	// Radio configures the radio module. The zero value selects lorabridge.DefaultRadioSettings.
	Radio lorabridge.RadioSettings
	// Clock drives the duties and timestamps. Defaults to an uptime clock.
	Clock lorabridge.Clock
	// Logger is the only observability surface of a node.
	Logger log.Logger
}

// base is the state every role loop owns.
type base struct {
	mesh   lorabridge.Mesh
	radio  lorabridge.Radio
	cfg    Config
	table  *routing.Table
	sched  *schedule.Scheduler
	logger log.Logger
}

func newBase(mesh lorabridge.Mesh, radio lorabridge.Radio, cfg Config) (base, error) {
	if cfg.ListenTimeout <= 0 {
		cfg.ListenTimeout = DefaultListenTimeout
	}
	if cfg.Radio == (lorabridge.RadioSettings{}) {
		cfg.Radio = lorabridge.DefaultRadioSettings
	}
	if cfg.Clock == nil {
		cfg.Clock = lorabridge.NewUptimeClock()
	}
	table, err := routing.NewTable(cfg.Self, cfg.NodeCount)
	if err != nil {
		return base{}, err
	}
	return base{
		mesh:   mesh,
		radio:  radio,
		cfg:    cfg,
		table:  table,
		sched:  &schedule.Scheduler{Clock: cfg.Clock},
		logger: log.OrNOOP(cfg.Logger),
	}, nil
}

// initRadio brings the radio up. A failure is fatal: the node cannot do its job.
func (b *base) initRadio() error {
	if b.radio == nil {
		return nil
	}
	if err := b.radio.Init(b.cfg.Radio); err != nil {
		b.logger.Error("LoRa init failed, node halted", "node", b.cfg.Self, "error", err)
		return fmt.Errorf("%w: %w", lorabridge.ErrRadioInit, err)
	}
	return nil
}

// receive waits for one inbound datagram. Failures are logged and reported as absence.
func (b *base) receive(ctx context.Context) (lorabridge.Datagram, bool) {
	d, err := b.mesh.Receive(ctx, b.cfg.ListenTimeout)
	switch {
	case err == nil:
		return d, true
	case errors.Is(err, lorabridge.ErrNoMessage), ctx.Err() != nil:
	default:
		b.logger.Warn("Receive from mesh failed", "error", err)
	}
	return lorabridge.Datagram{}, false
}

// send delivers payload and, on success, records the quality of the hop used.
func (b *base) send(ctx context.Context, dest lorabridge.NodeID, payload []byte) bool {
	if err := b.mesh.SendReliable(ctx, dest, payload); err != nil {
		b.logger.Warn("Send failed", "to", dest, "error", err)
		return false
	}
	b.table.RecordDelivery(b.mesh, dest, b.mesh.LastSignalQuality())
	return true
}

// recordInbound records the quality of the hop a message from sender arrived over.
func (b *base) recordInbound(sender lorabridge.NodeID) {
	b.table.RecordDelivery(b.mesh, sender, b.mesh.LastSignalQuality())
}

// routingReport refreshes the table and renders it.
func (b *base) routingReport() ([]byte, error) {
	b.table.Refresh(b.mesh)
	return b.table.MarshalJSON()
}

// Table exposes the routing mirror, for diagnostics.
func (b *base) Table() *routing.Table {
	return b.table
}

func (b *base) run(ctx context.Context, step func(context.Context)) error {
	if err := b.initRadio(); err != nil {
		return err
	}
	for ctx.Err() == nil {
		step(ctx)
	}
	return ctx.Err()
}
