// Package routing mirrors the mesh's per-destination routing state on a node.
package routing

import (
	"encoding/json"
	"fmt"

	"github.com/exepirit/lorabridge/pkg/lorabridge"
	"github.com/exepirit/lorabridge/pkg/lorabridge/message"
)

// HopOracle answers next-hop queries. lorabridge.Mesh satisfies it.
type HopOracle interface {
	NextHop(dest lorabridge.NodeID) lorabridge.NodeID
}

// RouteEntry is the locally known route to one destination. SignalQuality is
// only meaningful while NextHop is set.
type RouteEntry struct {
	NextHop       lorabridge.NodeID
	SignalQuality int16
}

// Reachable reports whether the entry points at a neighbour.
func (e RouteEntry) Reachable() bool {
	return e.NextHop != lorabridge.NoHop && e.NextHop != lorabridge.SelfHop
}

// Table holds one RouteEntry per node identity. It belongs to the loop of the
// node that owns it and is not safe for concurrent use.
type Table struct {
	self    lorabridge.NodeID
	entries []RouteEntry // entries[i] describes identity i+1
}

// NewTable creates an empty table for a mesh of count nodes seen from self.
func NewTable(self lorabridge.NodeID, count int) (*Table, error) {
	if count < 1 || count > lorabridge.MaxNodeCount {
		return nil, fmt.Errorf("node count %d: %w", count, lorabridge.ErrIdentityOutOfRange)
	}
	if !lorabridge.ValidIdentity(self, count) {
		return nil, fmt.Errorf("self %d: %w", self, lorabridge.ErrIdentityOutOfRange)
	}
	return &Table{self: self, entries: make([]RouteEntry, count)}, nil
}

// Self returns the identity of the owning node.
func (t *Table) Self() lorabridge.NodeID {
	return t.self
}

// Len returns the number of destinations.
func (t *Table) Len() int {
	return len(t.entries)
}

// Entry returns the route to id.
func (t *Table) Entry(id lorabridge.NodeID) (RouteEntry, error) {
	i, err := t.index(id)
	if err != nil {
		return RouteEntry{}, err
	}
	return t.entries[i], nil
}

// Refresh copies the oracle's next hop for every destination. Destinations
// without a route lose their recorded signal quality.
func (t *Table) Refresh(oracle HopOracle) {
	for i := range t.entries {
		id := lorabridge.NodeID(i + 1)
		if id == t.self {
			t.entries[i].NextHop = lorabridge.SelfHop
			continue
		}
		t.entries[i].NextHop = oracle.NextHop(id)
		if !t.entries[i].Reachable() {
			t.entries[i].SignalQuality = 0
		}
	}
}

// RecordDelivery stores quality against the hop currently used to reach dest.
// Signal quality belongs to the physical neighbour, so the entry updated is the
// hop's, not dest's. It reports whether an entry was updated.
func (t *Table) RecordDelivery(oracle HopOracle, dest lorabridge.NodeID, quality int16) bool {
	hop := oracle.NextHop(dest)
	if hop == lorabridge.NoHop || hop == lorabridge.SelfHop {
		return false
	}
	i, err := t.index(hop)
	if err != nil {
		return false
	}
	t.entries[i].SignalQuality = quality
	return true
}

// Report renders the table in destination order.
func (t *Table) Report() message.RoutingReport {
	report := make(message.RoutingReport, len(t.entries))
	for i, e := range t.entries {
		report[i] = message.Hop{N: e.NextHop, R: e.SignalQuality}
	}
	return report
}

// MarshalJSON renders the table as [{"n":hop,"r":quality},...].
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Report())
}

func (t *Table) index(id lorabridge.NodeID) (int, error) {
	if id < 1 || int(id) > len(t.entries) {
		return 0, fmt.Errorf("identity %d of %d: %w", id, len(t.entries), lorabridge.ErrIdentityOutOfRange)
	}
	return int(id) - 1, nil
}
