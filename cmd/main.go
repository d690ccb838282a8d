package main

import (
	"chat-relay/abuse"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/server"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the relay and blocks until SIGINT or SIGTERM.
// Deferred cleanup runs before the process exits.
func run() error {
	// 1. Configuration & Logger
	config, err := loadConfig()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	censorChar, err := internal.CharacterRune(config.CensorChar)
	if err != nil {
		return err
	}
	moderator, err := moderation.NewModerator(config.Words(), censorChar, log)
	if err != nil {
		return fmt.Errorf("moderator init failed: %w", err)
	}

	// 2. Shared state
	metrics := observability.NewMetrics()
	bus := runtime.NewEventBus(config.BusCapacity, metrics)
	defer bus.Close()
	bans := abuse.NewBanRegistry()
	sessions := runtime.NewRegistry()

	// 3. Listener
	listener, err := net.Listen("tcp", config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", config.ListenAddr, err)
	}

	// 4. Workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(server.NewListener(log, listener, bus, bans, sessions, moderator, metrics, config.Settings()))
	sup.Add(workers.NewHeartbeatWorker(log, bus, bans, config.HeartbeatInterval))
	if config.LogEvents {
		sup.Add(workers.NewEventLogger(log, bus, os.Stdout, config.LogColours))
	}
	if config.DebugAddr != "" {
		sup.Add(internal.NewDebugServer(log, config.DebugAddr, metrics, bans, sessions))
	}

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting chat relay", "address", listener.Addr().String(),
		"bus_capacity", bus.Capacity(), "ban", config.BanDuration)
	sup.Run(ctx)

	log.Info("Program stopped cleanly")
	return nil
}
