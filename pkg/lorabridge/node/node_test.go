package node

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/exepirit/lorabridge/pkg/lorabridge"
	"github.com/exepirit/lorabridge/pkg/lorabridge/handoff"
	"github.com/exepirit/lorabridge/pkg/lorabridge/meshsim"
	"github.com/exepirit/lorabridge/pkg/lorabridge/sensor"
)

const listen = time.Millisecond

type fixture struct {
	net    *meshsim.Network
	clock  *meshsim.Clock
	master *meshsim.Endpoint
	leaf   *meshsim.Endpoint
}

// newFixture joins a master and one sensor over a direct link of quality -40.
func newFixture() *fixture {
	net := meshsim.NewNetwork()
	f := &fixture{net: net, clock: &meshsim.Clock{}, master: net.Join(1), leaf: net.Join(2)}
	net.Link(1, 2, -40)
	return f
}

func (f *fixture) newMaster(t *testing.T, buf *handoff.Buffer) *Master {
	t.Helper()
	m, err := NewMaster(f.master, f.master, buf, MasterConfig{
		Config: Config{NodeCount: 2, ListenTimeout: listen, Clock: f.clock},
	})
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	return m
}

func (f *fixture) newSensor(t *testing.T, raw int) *Sensor {
	t.Helper()
	s, err := NewSensor(f.leaf, f.leaf, sensor.NewHygrometer(meshsim.NewADC(raw)), SensorConfig{
		Config: Config{Self: 2, NodeCount: 2, ListenTimeout: listen, Clock: f.clock},
	})
	if err != nil {
		t.Fatalf("NewSensor: %v", err)
	}
	return s
}

func receive(t *testing.T, ep *meshsim.Endpoint) lorabridge.Datagram {
	t.Helper()
	d, err := ep.Receive(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("node %d: Receive: %v", ep.ID(), err)
	}
	return d
}

func poll(t *testing.T, buf *handoff.Buffer) string {
	t.Helper()
	in := &handoff.Initiator{Link: handoff.Loopback{Responder: handoff.NewResponder(buf)}}
	content, err := in.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	return string(content)
}

const reading = `{"node":2,"sensor_type":"hygrometer","sensor_data":75,"raw_value":256,"timestamp":30001,"battery":100}`

func TestSensorReportsReadingBeforeRouting(t *testing.T) {
	f := newFixture()
	s := f.newSensor(t, 256)

	s.Step(context.Background())
	if _, err := f.master.Receive(context.Background(), listen); !errors.Is(err, lorabridge.ErrNoMessage) {
		t.Fatalf("report sent before any interval elapsed: %v", err)
	}

	f.clock.Advance(30_001 * time.Millisecond)
	s.Step(context.Background())

	if got := string(receive(t, f.master).Payload); got != reading {
		t.Errorf("first report = %s, want %s", got, reading)
	}
	want := `[{"n":1,"r":-40},{"n":255,"r":0}]`
	if got := string(receive(t, f.master).Payload); got != want {
		t.Errorf("second report = %s, want %s", got, want)
	}
}

func TestSensorRecordsInboundQuality(t *testing.T) {
	f := newFixture()
	s := f.newSensor(t, 0)

	f.net.SetQuality(1, 2, -65)
	if err := f.master.SendReliable(context.Background(), 2, []byte(`[]`)); err != nil {
		t.Fatal(err)
	}
	s.Step(context.Background())

	entry, err := s.Table().Entry(1)
	if err != nil {
		t.Fatal(err)
	}
	if entry.SignalQuality != -65 {
		t.Errorf("quality = %d, want -65", entry.SignalQuality)
	}
}

func TestSensorFailedSendRecordsNothing(t *testing.T) {
	f := newFixture()
	s := f.newSensor(t, 0)
	f.leaf.DropSends(true)

	f.clock.Advance(30_001 * time.Millisecond)
	s.Step(context.Background())

	entry, _ := s.Table().Entry(1)
	if entry.SignalQuality != 0 {
		t.Errorf("quality = %d after failed sends", entry.SignalQuality)
	}
}

func TestMasterHoldsSensorDataUntilDelivered(t *testing.T) {
	f := newFixture()
	buf := &handoff.Buffer{}
	m := f.newMaster(t, buf)

	if err := f.leaf.SendReliable(context.Background(), 1, []byte(reading)); err != nil {
		t.Fatal(err)
	}
	m.Step(context.Background())
	if got := string(buf.Content()); got != reading {
		t.Fatalf("staged %s, want sensor data", got)
	}

	// not fetched yet: routing must not overwrite it
	m.Step(context.Background())
	if got := string(buf.Content()); got != reading {
		t.Fatalf("sensor data overwritten by %s", got)
	}

	if got := poll(t, buf); got != reading {
		t.Fatalf("polled %s", got)
	}

	f.clock.Set(500)
	m.Step(context.Background())
	want := `{"node":1,"routing_table":[{"n":255,"r":0},{"n":2,"r":-40}],"timestamp":500}`
	if got := string(buf.Content()); got != want {
		t.Errorf("staged %s, want %s", got, want)
	}
}

func TestMasterDoesNotStageWhileServing(t *testing.T) {
	f := newFixture()
	buf := &handoff.Buffer{}
	m := f.newMaster(t, buf)

	m.Step(context.Background())
	bundle := string(buf.Content())
	if !strings.HasPrefix(bundle, `{"node":1,"routing_table":`) {
		t.Fatalf("staged %s, want routing bundle", bundle)
	}

	r := handoff.NewResponder(buf)
	if r.Exchange(handoff.Start) != handoff.Ack {
		t.Fatal("transfer not acknowledged")
	}

	if err := f.leaf.SendReliable(context.Background(), 1, []byte(reading)); err != nil {
		t.Fatal(err)
	}
	m.Step(context.Background())
	if got := string(buf.Content()); got != bundle {
		t.Fatalf("content changed mid-transfer to %s", got)
	}

	for r.Exchange(handoff.Filler) != handoff.Terminator {
	}
	m.Step(context.Background())
	if got := string(buf.Content()); got != reading {
		t.Errorf("staged %s after transfer, want sensor data", got)
	}
}

func TestMasterDiscardsMalformedPayload(t *testing.T) {
	f := newFixture()
	buf := &handoff.Buffer{}
	m := f.newMaster(t, buf)

	if err := f.leaf.SendReliable(context.Background(), 1, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	m.Step(context.Background())

	if entry, _ := m.Table().Entry(2); entry.SignalQuality != 0 {
		t.Errorf("quality recorded for malformed payload: %d", entry.SignalQuality)
	}
	if got := string(buf.Content()); !strings.HasPrefix(got, `{"node":1,"routing_table":`) {
		t.Errorf("staged %s", got)
	}
}

func TestMasterRoutingReportIsNotForwarded(t *testing.T) {
	f := newFixture()
	buf := &handoff.Buffer{}
	m := f.newMaster(t, buf)

	if err := f.leaf.SendReliable(context.Background(), 1, []byte(`[{"n":1,"r":-40},{"n":255,"r":0}]`)); err != nil {
		t.Fatal(err)
	}
	m.Step(context.Background())

	if entry, _ := m.Table().Entry(2); entry.SignalQuality != -40 {
		t.Errorf("quality = %d, want -40", entry.SignalQuality)
	}
	if got := string(buf.Content()); !strings.HasPrefix(got, `{"node":1,"routing_table":`) {
		t.Errorf("staged %s, want routing bundle", got)
	}
}

func TestMasterPushesRoutingToPeers(t *testing.T) {
	f := newFixture()
	m := f.newMaster(t, &handoff.Buffer{})

	m.Step(context.Background())
	if _, err := f.leaf.Receive(context.Background(), listen); !errors.Is(err, lorabridge.ErrNoMessage) {
		t.Fatalf("routing pushed too early: %v", err)
	}

	// the single peer is staggered half an interval early
	f.clock.Set(1501)
	m.Step(context.Background())
	want := `[{"n":255,"r":0},{"n":2,"r":0}]`
	if got := string(receive(t, f.leaf).Payload); got != want {
		t.Errorf("pushed %s, want %s", got, want)
	}
	if entry, _ := m.Table().Entry(2); entry.SignalQuality != -40 {
		t.Errorf("quality = %d after push, want -40", entry.SignalQuality)
	}
}

func TestMasterForcesIdentity(t *testing.T) {
	f := newFixture()
	m, err := NewMaster(f.master, nil, &handoff.Buffer{}, MasterConfig{
		Config: Config{Self: 7, NodeCount: 2, Clock: f.clock},
	})
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	if m.Table().Self() != lorabridge.MasterID {
		t.Errorf("Self = %d", m.Table().Self())
	}
}

func TestRunHaltsOnRadioFailure(t *testing.T) {
	f := newFixture()
	f.leaf.FailInit(true)
	s := f.newSensor(t, 0)

	err := s.Run(context.Background())
	if !errors.Is(err, lorabridge.ErrRadioInit) {
		t.Fatalf("Run = %v, want ErrRadioInit", err)
	}
}

func TestRunInitialisesRadioAndStops(t *testing.T) {
	f := newFixture()
	m := f.newMaster(t, &handoff.Buffer{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v", err)
	}
	if s, ok := f.master.Settings(); !ok || s != lorabridge.DefaultRadioSettings {
		t.Errorf("radio settings = %+v, %v", s, ok)
	}
}

func TestNewSensorRejectsBadIdentity(t *testing.T) {
	f := newFixture()
	_, err := NewSensor(f.leaf, nil, sensor.NewHygrometer(meshsim.NewADC(0)), SensorConfig{
		Config: Config{Self: 3, NodeCount: 2},
	})
	if !errors.Is(err, lorabridge.ErrIdentityOutOfRange) {
		t.Fatalf("got %v", err)
	}
}
