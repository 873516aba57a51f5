// Command meshsim runs a master, its sensor nodes and a gateway in one process
// over a simulated mesh. With -serve the gateway is left out and the master's
// bus is exposed on a serial port instead, for testing a real gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/exepirit/lorabridge/internal/cli"
	"github.com/exepirit/lorabridge/internal/log"
	"github.com/exepirit/lorabridge/pkg/lorabridge"
	"github.com/exepirit/lorabridge/pkg/lorabridge/gateway"
	"github.com/exepirit/lorabridge/pkg/lorabridge/handoff"
	"github.com/exepirit/lorabridge/pkg/lorabridge/identity"
	"github.com/exepirit/lorabridge/pkg/lorabridge/meshsim"
	"github.com/exepirit/lorabridge/pkg/lorabridge/node"
	"github.com/exepirit/lorabridge/pkg/lorabridge/sensor"
)

type options struct {
	nodes           int
	brokers         string
	serve           string
	stateDir        string
	sensorInterval  time.Duration
	routingInterval time.Duration
	peerInterval    time.Duration
	pollInterval    time.Duration
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var opts options
	flag.IntVar(&opts.nodes, "nodes", 4, "Number of nodes in the mesh, master included")
	flag.StringVar(&opts.brokers, "broker", "", "Comma-separated broker URLs; empty logs documents instead")
	flag.StringVar(&opts.serve, "serve", "", "Serve the master's bus on this serial URL instead of running a gateway")
	flag.StringVar(&opts.stateDir, "state", "", "Directory holding node identity files; empty keeps them in memory")
	flag.DurationVar(&opts.sensorInterval, "sensor-interval", node.DefaultSensorInterval, "Sensor report interval")
	flag.DurationVar(&opts.routingInterval, "routing-interval", node.DefaultRoutingInterval, "Sensor routing report interval")
	flag.DurationVar(&opts.peerInterval, "peer-interval", node.DefaultPeerRoutingInterval, "Master per-peer routing interval")
	flag.DurationVar(&opts.pollInterval, "poll-interval", gateway.DefaultPollInterval, "Gateway poll interval")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger, err := cli.NewLogger(os.Stderr, *logLevel)
	if err != nil {
		slog.Error("Invalid flags", "error", err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	if err := run(ctx, opts, logger); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Simulation stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *slog.Logger) error {
	if opts.nodes < 2 || opts.nodes > lorabridge.MaxNodeCount {
		return fmt.Errorf("nodes %d: %w", opts.nodes, lorabridge.ErrIdentityOutOfRange)
	}

	ids := make([]lorabridge.NodeID, opts.nodes)
	for i := range ids {
		ids[i] = lorabridge.NodeID(i + 1)
	}
	network := meshsim.NewNetwork()
	network.Chain(ids, func(i int) int16 { return int16(-40 - 12*i) })

	buf := &handoff.Buffer{}
	var runners []func(context.Context) error

	masterID, err := identity.ResolveMaster(store(opts.stateDir, 1))
	if err != nil {
		return err
	}
	masterEP := network.Join(masterID)
	master, err := node.NewMaster(masterEP, masterEP, buf, node.MasterConfig{
		Config:              node.Config{NodeCount: opts.nodes, Logger: logger.With("node", masterID)},
		PeerRoutingInterval: opts.peerInterval,
	})
	if err != nil {
		return err
	}
	runners = append(runners, master.Run)

	seen := map[lorabridge.NodeID]bool{masterID: true}
	for _, slot := range ids[1:] {
		id, err := identity.ResolveSensor(store(opts.stateDir, slot), opts.nodes, slot)
		if err != nil {
			return err
		}
		if seen[id] {
			return fmt.Errorf("identity %d stored for two nodes", id)
		}
		seen[id] = true

		ep := network.Join(id)
		adc := meshsim.NewADC((200 + 150*int(id)) % 1024)
		adc.Drift = 7
		s, err := node.NewSensor(ep, ep, sensor.NewHygrometer(adc), node.SensorConfig{
			Config:          node.Config{Self: id, NodeCount: opts.nodes, Logger: logger.With("node", id)},
			SensorInterval:  opts.sensorInterval,
			RoutingInterval: opts.routingInterval,
		})
		if err != nil {
			return err
		}
		runners = append(runners, s.Run)
	}

	responder := handoff.NewResponder(buf)
	if opts.serve != "" {
		bus, err := cli.ParseBus(opts.serve)
		if err != nil {
			return err
		}
		link, err := bus.Open()
		if err != nil {
			return err
		}
		logger.Info("Serving bus", "port", bus.Port, "baud", bus.Baud)
		runners = append(runners, func(ctx context.Context) error {
			// unblocks the pending read
			go func() {
				<-ctx.Done()
				_ = link.Close()
			}()
			return handoff.Serve(ctx, link, responder)
		})
	} else {
		publisher, err := newPublisher(opts.brokers, logger)
		if err != nil {
			return err
		}
		gw := gateway.New(
			&handoff.Initiator{Link: handoff.Loopback{Responder: responder}, Logger: logger},
			publisher,
			gateway.StaticLink(-55),
			gateway.Config{PollInterval: opts.pollInterval, Logger: logger.With("component", "gateway")},
		)
		runners = append(runners, gw.Run)
	}

	return runAll(ctx, runners)
}

// runAll runs every runner until ctx is done or one of them fails.
func runAll(ctx context.Context, runners []func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for _, r := range runners {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r(ctx); err != nil && ctx.Err() == nil {
				once.Do(func() { firstErr = err })
				cancel()
			}
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func store(dir string, slot lorabridge.NodeID) identity.Store {
	if dir == "" {
		return &identity.MemStore{}
	}
	return &identity.FileStore{Path: filepath.Join(dir, fmt.Sprintf("node-%d.id", slot))}
}

func newPublisher(brokers string, logger *slog.Logger) (lorabridge.Publisher, error) {
	if brokers == "" {
		return logPublisher{logger: logger}, nil
	}
	fan, err := cli.NewBrokers(brokers, "lorabridge-meshsim", logger)
	if err != nil {
		return nil, err
	}
	if err := fan.Reconnect(); err != nil {
		logger.Warn("Broker connection failed", "error", err)
	}
	return fan, nil
}

// logPublisher prints documents instead of sending them anywhere.
type logPublisher struct {
	logger log.Logger
}

func (p logPublisher) Publish(topic string, payload []byte) error {
	p.logger.Info("Document", "topic", topic, "payload", string(payload))
	return nil
}

func (logPublisher) IsConnected() bool { return true }

func (logPublisher) Reconnect() error { return nil }
