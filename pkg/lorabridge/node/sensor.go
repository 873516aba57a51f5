package node

import (
	"context"
	"time"

	"github.com/exepirit/lorabridge/pkg/lorabridge"
	"github.com/exepirit/lorabridge/pkg/lorabridge/message"
	"github.com/exepirit/lorabridge/pkg/lorabridge/schedule"
	"github.com/exepirit/lorabridge/pkg/lorabridge/sensor"
)

const (
	DefaultSensorInterval  = 30 * time.Second
	DefaultRoutingInterval = 10 * time.Second
)

// SensorConfig configures a leaf node.
type SensorConfig struct {
	Config
	// Master is the destination of every report. Defaults to lorabridge.MasterID.
	Master lorabridge.NodeID
	// SensorInterval defaults to DefaultSensorInterval.
	SensorInterval time.Duration
	// RoutingInterval defaults to DefaultRoutingInterval.
	RoutingInterval time.Duration
}

// Sensor is a leaf node: it samples its transducer and reports readings and
// its routing table to the master.
type Sensor struct {
	base
	transducer sensor.Transducer
	master     lorabridge.NodeID
}

// NewSensor prepares a sensor loop.
func NewSensor(mesh lorabridge.Mesh, radio lorabridge.Radio, transducer sensor.Transducer, cfg SensorConfig) (*Sensor, error) {
	b, err := newBase(mesh, radio, cfg.Config)
	if err != nil {
		return nil, err
	}
	if cfg.Master == lorabridge.NoHop {
		cfg.Master = lorabridge.MasterID
	}
	if cfg.SensorInterval <= 0 {
		cfg.SensorInterval = DefaultSensorInterval
	}
	if cfg.RoutingInterval <= 0 {
		cfg.RoutingInterval = DefaultRoutingInterval
	}

	s := &Sensor{base: b, transducer: transducer, master: cfg.Master}
	// sensor data goes first when both are due in the same iteration
	s.sched.Add(&schedule.Duty{Name: "sensor", Interval: cfg.SensorInterval, Run: s.reportReading})
	s.sched.Add(&schedule.Duty{Name: "routing", Interval: cfg.RoutingInterval, Run: s.reportRouting})
	return s, nil
}

// Run drives the loop until ctx is cancelled. It returns an error wrapping
// lorabridge.ErrRadioInit when the radio cannot be brought up.
func (s *Sensor) Run(ctx context.Context) error {
	s.logger.Info("Sensor node ready", "node", s.cfg.Self, "master", s.master)
	return s.run(ctx, s.Step)
}

// Step runs one iteration: listen, then the due reports.
func (s *Sensor) Step(ctx context.Context) {
	if d, ok := s.receive(ctx); ok {
		s.logger.Info("Received from node", "from", d.From, "payload", string(d.Payload))
		s.recordInbound(d.From)
	}
	s.sched.RunDue(ctx)
}

func (s *Sensor) reportReading(ctx context.Context) {
	reading, err := s.transducer.Read(s.cfg.Self, s.cfg.Clock.Millis())
	if err != nil {
		s.logger.Warn("Sensor read failed", "error", err)
		return
	}
	payload, err := message.Encode(reading)
	if err != nil {
		s.logger.Error("Cannot render sensor reading", "error", err)
		return
	}
	if s.send(ctx, s.master, payload) {
		s.logger.Info("Sent sensor data", "to", s.master, "payload", string(payload))
	}
}

func (s *Sensor) reportRouting(ctx context.Context) {
	report, err := s.routingReport()
	if err != nil {
		s.logger.Error("Cannot render routing table", "error", err)
		return
	}
	if s.send(ctx, s.master, report) {
		s.logger.Info("Sent routing table", "to", s.master)
	}
}
