// cmd/turumi/main.go
// Command line client for the roommate matching API

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/turumi/turumi-match/internal/cli"
	"github.com/turumi/turumi-match/internal/config"
	"github.com/turumi/turumi-match/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env is fine; the environment is used as-is.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		return 2
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, log, os.Stdout)
	if err != nil {
		log.Error("failed to initialise client", zap.Error(err))
		return 1
	}
	defer app.Close()

	if err := cli.Execute(ctx, cli.NewRootCommand(app), log); err != nil {
		return 1
	}
	return 0
}
