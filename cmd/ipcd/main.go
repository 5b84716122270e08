//go:build unix

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/ipckit/internal/infrastructure/config"
	"github.com/GriffinCanCode/ipckit/internal/infrastructure/server"
)

func main() {
	fifoPath := flag.String("fifo", "", "Well-known channel path (overrides IPC_FIFO_PATH)")
	opsPort := flag.String("ops-port", "", "Operational HTTP port (overrides OPS_PORT)")
	noOps := flag.Bool("no-ops", false, "Disable the operational HTTP endpoint")
	dev := flag.Bool("dev", false, "Development logging (colored, debug level)")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *fifoPath != "" {
		cfg.Fifo.Path = *fifoPath
	}
	if *opsPort != "" {
		cfg.Ops.Port = *opsPort
	}
	if *noOps {
		cfg.Ops.Enabled = false
	}
	if *dev {
		cfg.Logging.Development = true
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create daemon: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Daemon exited: %v", err)
	}
}
