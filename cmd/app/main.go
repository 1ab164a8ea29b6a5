package main

import (
	"context"
	"flag"
	"log"
	"os"

	"GapSight/internal/di"
	"GapSight/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "config file path; empty uses defaults and GAPSIGHT_* variables")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.LoadWithEnv(ctx, *configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s upstream=%s cache=%s snapshots=%t", cfg.Environment, cfg.Upstream.BaseURL, cfg.Cache.Backend, cfg.Snapshots.Enabled)

	app, cleanup, err := di.InitializeApp(ctx, cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Blocks until SIGINT/SIGTERM.
	err = app.Run(ctx)
	cleanup()
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
