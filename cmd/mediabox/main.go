package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alxayo/mediabox/internal/logger"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		// the flag package prints its own parse errors and usage; other
		// validation errors from parseFlags are not printed
		os.Exit(2)
	}
	if cfg.showVersion {
		fmt.Println(version)
		return
	}

	logger.Init()
	if err := logger.SetLevel(cfg.logLevel); err != nil {
		fmt.Printf("Warning: invalid log level %q, using default\n", cfg.logLevel)
	}
	log := logger.WithComponent(logger.Logger(), "cli")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, cfg); err != nil {
		log.Error("command failed", "command", cfg.command, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, cfg *cliConfig) error {
	switch cfg.command {
	case "demux":
		return runDemux(ctx, log, cfg)
	case "mux":
		return runMux(ctx, log, cfg)
	case "convert":
		return runConvertCommand(ctx, log, cfg)
	default:
		return fmt.Errorf("unknown command %q", cfg.command)
	}
}
