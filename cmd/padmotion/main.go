package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"padmotion/internal/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./dev.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(cfg)
	if err != nil {
		log.Fatalf("runtime init failed: %v", err)
	}
	defer rt.close()

	log.Printf("padmotion starting")
	log.Printf("source kind=%s poll=%s", cfg.Source.Kind, cfg.Source.Poll)

	if err := rt.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("runtime stopped: %v", err)
	}
	log.Printf("padmotion stopping")
}
