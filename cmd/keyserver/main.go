package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/f3rmion/keyserver/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := parseConfig(args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	logger.Init(level)

	key, err := loadOrGenerateKey(cfg.KeyPath)
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}
	id := nodeIDOf(key)

	node, err := NewNode(cfg, id)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	defer node.Close()

	logger.Info("starting key server",
		"node", id.String(),
		"http", cfg.HTTPAddress,
		"data", cfg.DataPath,
		"peers", len(cfg.Peers),
		"min_responses", cfg.MinResponses,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return node.Run(ctx)
}
