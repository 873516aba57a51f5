// Package gateway moves staged mesh payloads from the bus to a pub/sub broker.
package gateway

import (
	"context"
	"errors"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/exepirit/lorabridge/internal/log"
	"github.com/exepirit/lorabridge/pkg/lorabridge"
	"github.com/exepirit/lorabridge/pkg/lorabridge/handoff"
)

const (
	DefaultID           = "master_gateway_1"
	DefaultPollInterval = 2 * time.Second

	RoutingTopic = "lora_mesh/routing_data"
	SensorTopic  = "lora_mesh/sensor_data"
	ControlTopic = "lora_mesh/control"
)

// Poller fetches the content staged on the bus. *handoff.Initiator satisfies it.
type Poller interface {
	Poll(ctx context.Context) ([]byte, error)
}

var _ Poller = &handoff.Initiator{}

// Config configures a Gateway. Zero fields take the defaults above.
type Config struct {
	ID           string
	PollInterval time.Duration
	RoutingTopic string
	SensorTopic  string
	// Clock stamps routing documents. Defaults to the gateway uptime.
	Clock  lorabridge.Clock
	Logger log.Logger
}

// Gateway polls the master over the bus and republishes what it gets.
type Gateway struct {
	Poller    Poller
	Publisher lorabridge.Publisher
	// Link reports the gateway's own uplink quality. May be nil.
	Link LinkQuality

	cfg    Config
	logger log.Logger
}

// New assembles a gateway.
func New(poller Poller, publisher lorabridge.Publisher, link LinkQuality, cfg Config) *Gateway {
	if cfg.ID == "" {
		cfg.ID = DefaultID
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RoutingTopic == "" {
		cfg.RoutingTopic = RoutingTopic
	}
	if cfg.SensorTopic == "" {
		cfg.SensorTopic = SensorTopic
	}
	if cfg.Clock == nil {
		cfg.Clock = lorabridge.NewUptimeClock()
	}
	return &Gateway{
		Poller:    poller,
		Publisher: publisher,
		Link:      link,
		cfg:       cfg,
		logger:    log.OrNOOP(cfg.Logger),
	}
}

// Run polls every PollInterval until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	g.logger.Info("Gateway started", "id", g.cfg.ID, "interval", g.cfg.PollInterval)

	ticker := time.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.Cycle(ctx)
		}
	}
}

// Cycle runs one poll: reconnect the publisher if needed, fetch the staged
// content and process it.
func (g *Gateway) Cycle(ctx context.Context) {
	if !g.Publisher.IsConnected() {
		g.logger.Info("Publisher disconnected, reconnecting")
		if err := g.Publisher.Reconnect(); err != nil {
			g.logger.Warn("Reconnect failed", "error", err)
		}
	}

	raw, err := g.Poller.Poll(ctx)
	switch {
	case errors.Is(err, handoff.ErrTruncated):
		g.logger.Warn("Discarding truncated transfer", "bytes", len(raw))
		return
	case err != nil:
		if ctx.Err() == nil {
			g.logger.Warn("Bus poll failed", "error", err)
		}
		return
	}
	g.Process(raw)
}

// Process classifies one payload and publishes it. Routing documents are
// enriched with the gateway metadata; sensor documents go out verbatim.
func (g *Gateway) Process(raw []byte) {
	if len(raw) == 0 {
		return
	}
	g.logger.Debug("Received from bus", "payload", string(raw))

	doc := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, doc); err != nil {
		g.logger.Warn("JSON parse error", "error", err, "payload", string(raw))
		return
	}

	switch {
	case doc.Fields["routing_table"] != nil:
		doc.Fields["gateway_id"] = structpb.NewStringValue(g.cfg.ID)
		doc.Fields["timestamp"] = structpb.NewNumberValue(float64(g.cfg.Clock.Millis()))
		doc.Fields["wifi_rssi"] = structpb.NewNumberValue(float64(g.rssi()))
		out, err := protojson.Marshal(doc)
		if err != nil {
			g.logger.Error("Cannot render routing document", "error", err)
			return
		}
		g.publish(g.cfg.RoutingTopic, out)
	case doc.Fields["sensor_data"] != nil:
		g.publish(g.cfg.SensorTopic, raw)
	default:
		g.logger.Warn("Unknown document, discarding", "payload", string(raw))
	}
}

func (g *Gateway) publish(topic string, payload []byte) {
	if err := g.Publisher.Publish(topic, payload); err != nil {
		g.logger.Warn("Publish failed", "topic", topic, "error", err)
		return
	}
	g.logger.Info("Published", "topic", topic, "bytes", len(payload))
}

func (g *Gateway) rssi() int {
	if g.Link == nil {
		return 0
	}
	return g.Link.RSSI()
}
