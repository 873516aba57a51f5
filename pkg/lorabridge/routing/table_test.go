package routing

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/exepirit/lorabridge/pkg/lorabridge"
	"github.com/exepirit/lorabridge/pkg/lorabridge/message"
)

// hops is a static next-hop oracle.
type hops map[lorabridge.NodeID]lorabridge.NodeID

func (h hops) NextHop(dest lorabridge.NodeID) lorabridge.NodeID {
	return h[dest]
}

func mustTable(t *testing.T, self lorabridge.NodeID, count int) *Table {
	t.Helper()
	table, err := NewTable(self, count)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return table
}

func TestNewTableValidatesRange(t *testing.T) {
	tests := []struct {
		name  string
		self  lorabridge.NodeID
		count int
	}{
		{"zero count", 1, 0},
		{"self zero", 0, 4},
		{"self beyond count", 5, 4},
		{"too many nodes", 1, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTable(tt.self, tt.count); !errors.Is(err, lorabridge.ErrIdentityOutOfRange) {
				t.Errorf("NewTable(%d, %d) error = %v", tt.self, tt.count, err)
			}
		})
	}
}

func TestEntryValidatesRange(t *testing.T) {
	table := mustTable(t, 1, 4)
	for _, id := range []lorabridge.NodeID{0, 5, 255} {
		if _, err := table.Entry(id); !errors.Is(err, lorabridge.ErrIdentityOutOfRange) {
			t.Errorf("Entry(%d) error = %v, want ErrIdentityOutOfRange", id, err)
		}
	}
}

func TestRefreshZeroesLostRoutes(t *testing.T) {
	table := mustTable(t, 2, 4)
	oracle := hops{1: 1, 3: 3, 4: 3}
	table.Refresh(oracle)
	table.RecordDelivery(oracle, 1, -60)
	table.RecordDelivery(oracle, 3, -70)

	// node 3 and everything behind it drop off
	oracle = hops{1: 1}
	table.Refresh(oracle)

	for id := lorabridge.NodeID(1); id <= 4; id++ {
		e, _ := table.Entry(id)
		if oracle.NextHop(id) == lorabridge.NoHop && id != table.Self() && e.SignalQuality != 0 {
			t.Errorf("entry %d unreachable but quality = %d", id, e.SignalQuality)
		}
	}
	if e, _ := table.Entry(1); e.SignalQuality != -60 {
		t.Errorf("reachable entry 1 quality = %d, want -60", e.SignalQuality)
	}
	if e, _ := table.Entry(2); e.NextHop != lorabridge.SelfHop {
		t.Errorf("self entry hop = %d, want SelfHop", e.NextHop)
	}
}

func TestRecordDeliveryUpdatesHopNotDestination(t *testing.T) {
	table := mustTable(t, 1, 4)
	oracle := hops{3: 3, 4: 3}
	table.Refresh(oracle)

	if !table.RecordDelivery(oracle, 4, -42) {
		t.Fatal("RecordDelivery via hop 3 reported no update")
	}
	if e, _ := table.Entry(3); e.SignalQuality != -42 {
		t.Errorf("hop entry 3 quality = %d, want -42", e.SignalQuality)
	}
	if e, _ := table.Entry(4); e.SignalQuality != 0 {
		t.Errorf("destination entry 4 quality = %d, want 0", e.SignalQuality)
	}

	if table.RecordDelivery(oracle, 2, -10) {
		t.Error("RecordDelivery to unreachable node reported an update")
	}
}

func TestMasterTableSerialization(t *testing.T) {
	table := mustTable(t, 1, 4)

	// node 4 was first heard directly, then moved behind node 3
	oracle := hops{3: 3, 4: 4}
	table.Refresh(oracle)
	table.RecordDelivery(oracle, 4, -42)

	oracle = hops{3: 3, 4: 3}
	table.Refresh(oracle)
	table.RecordDelivery(oracle, 3, -42)

	got, err := table.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	want := `[{"n":255,"r":0},{"n":0,"r":0},{"n":3,"r":-42},{"n":3,"r":-42}]`
	if string(got) != want {
		t.Errorf("MarshalJSON = %s\nwant          %s", got, want)
	}
}

func TestReportRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		count  int
		oracle func(count int) hops
	}{
		{"single node", 1, func(int) hops { return hops{} }},
		{"all unreachable", 16, func(int) hops { return hops{} }},
		{"all direct", 254, func(count int) hops {
			h := hops{}
			for id := 1; id <= count; id++ {
				h[lorabridge.NodeID(id)] = lorabridge.NodeID(id)
			}
			return h
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := mustTable(t, 1, tt.count)
			oracle := tt.oracle(tt.count)
			table.Refresh(oracle)
			for id := 2; id <= tt.count; id++ {
				table.RecordDelivery(oracle, lorabridge.NodeID(id), int16(-id))
			}

			raw, err := table.MarshalJSON()
			if err != nil {
				t.Fatalf("MarshalJSON: %v", err)
			}
			parsed, err := message.Parse(raw)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if diff := cmp.Diff(table.Report(), parsed); diff != "" {
				t.Errorf("round trip mismatch for %d entries (-want +got):\n%s", tt.count, diff)
			}
		})
	}
}

func TestRouteEntryReachable(t *testing.T) {
	tests := []struct {
		hop  lorabridge.NodeID
		want bool
	}{
		{lorabridge.NoHop, false},
		{lorabridge.SelfHop, false},
		{3, true},
	}
	for _, tt := range tests {
		if got := (RouteEntry{NextHop: tt.hop}).Reachable(); got != tt.want {
			t.Errorf("Reachable() with hop %d = %v, want %v", tt.hop, got, tt.want)
		}
	}
}
