// Shiksha - offline data and caching layer for the Virtual Shiksha portal.
//
// Keeps portal data on the device, queues writes made while offline and
// serves the portal through a caching proxy that keeps working without a
// connection.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/virtual-shiksha/shiksha/internal/cli"
	"github.com/virtual-shiksha/shiksha/internal/config"
	"github.com/virtual-shiksha/shiksha/internal/db"
	"github.com/virtual-shiksha/shiksha/internal/otel"
	"github.com/virtual-shiksha/shiksha/internal/telemetry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Tracing is optional; a bad exporter setting only disables it.
	shutdownTracing, err := otel.Setup(ctx, "shiksha")
	if err != nil {
		fmt.Fprintf(os.Stderr, "tracing disabled: %v\n", err)
	}
	defer func() {
		_ = shutdownTracing(context.Background())
	}()

	// Load config and open database for persistent tracking ID
	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}

	paths := config.GetPaths(cfg)
	database, err := db.New(db.DefaultConfig(paths.Database))
	if err != nil {
		os.Exit(1)
	}
	defer func() {
		_ = database.Close()
	}()

	telemetryClient := telemetry.New(database)
	defer telemetryClient.Close()

	if err := cli.Execute(ctx, telemetryClient); err != nil {
		os.Exit(1)
	}
}
