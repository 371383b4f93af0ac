package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kafitramarna/replika/internal/api"
	"github.com/kafitramarna/replika/internal/config"
	"github.com/kafitramarna/replika/internal/connector"
	"github.com/kafitramarna/replika/internal/logger"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to configuration file")
	dsn        = flag.String("dsn", "", "Source DSN (overrides the source section of the config file)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *dsn != "" {
		src, err := config.ParseDSN(*dsn)
		if err != nil {
			log.Fatalf("Failed to parse DSN: %v", err)
		}
		cfg.Source = *src
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("starting replika",
		"source", cfg.Source.Address(),
		"user", cfg.Source.User,
		"database", cfg.Source.Database)

	conn := connector.New(cfg)
	if err := conn.Connect(); err != nil {
		logger.Error("initial connect failed", "error", err)
		os.Exit(1)
	}

	server := api.NewServer(&cfg.API, conn)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("API server stopped", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown failed", "error", err)
	}
	if err := conn.Disconnect(); err != nil {
		logger.Error("disconnect failed", "error", err)
	}
	logger.Info("shutdown complete")
}
