package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/exepirit/lorabridge/internal/cli"
	"github.com/exepirit/lorabridge/pkg/lorabridge/gateway"
	"github.com/exepirit/lorabridge/pkg/lorabridge/handoff"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// parse CLI flags
	busURL := flag.String("bus", "serial:/dev/ttyUSB0", "Bus URL of the master (supported schema: serial)")
	brokers := flag.String("broker", "tcp://localhost:1883", "Comma-separated broker URLs (supported schema: tcp, ssl, ws, wss, mqtt, nats, tls)")
	id := flag.String("id", gateway.DefaultID, "Gateway identifier added to routing documents")
	interval := flag.Duration("interval", gateway.DefaultPollInterval, "Bus poll interval")
	iface := flag.String("wifi-iface", "wlan0", "Wireless interface reported as wifi_rssi")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger, err := cli.NewLogger(os.Stderr, *logLevel)
	if err != nil {
		slog.Error("Invalid flags", "error", err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	bus, err := cli.ParseBus(*busURL)
	if err != nil {
		slog.Error("Invalid bus", "error", err)
		os.Exit(2)
	}
	publisher, err := cli.NewBrokers(*brokers, *id, logger)
	if err != nil {
		slog.Error("Invalid broker", "error", err)
		os.Exit(2)
	}
	defer publisher.Close()

	slog.Info("Opening bus...", "port", bus.Port, "baud", bus.Baud)
	link, err := bus.Open()
	if err != nil {
		slog.Error("Failed to open bus", "error", err)
		os.Exit(1)
	}
	defer link.Close()

	if err := publisher.Reconnect(); err != nil {
		// not fatal: every poll cycle retries
		slog.Warn("Broker connection failed", "error", err)
	}

	gw := gateway.New(
		&handoff.Initiator{Link: link, ByteDelay: handoff.DefaultByteDelay, Logger: logger},
		publisher,
		gateway.ProcWireless{Interface: *iface},
		gateway.Config{ID: *id, PollInterval: *interval, Logger: logger},
	)
	if err := gw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Gateway stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("Gateway stopped")
}
