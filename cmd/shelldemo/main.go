// Command shelldemo drives the window shell against a served site without a
// browser: it boots a page session from an HTML document, follows
// navigations through the fragment protocol and reports what was mounted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/saintjustus/windowshell/internal/infrastructure/config"
	"github.com/saintjustus/windowshell/internal/infrastructure/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := NewRunner(RunnerOpts{Config: cfg, Logger: logger})
	app := &cli.Command{
		Name:     "shelldemo",
		Usage:    "Boot and navigate the portfolio window shell headlessly",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		logger.Error("command failed", zap.Error(err))
		_ = logger.Sync()
		stop()
		os.Exit(1)
	}
}
