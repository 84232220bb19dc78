package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bingx-market-analyzer/internal/config"
	"bingx-market-analyzer/internal/infrastructure/coordinator"
	"bingx-market-analyzer/internal/infrastructure/exchange"
	"bingx-market-analyzer/internal/infrastructure/logger"
	"bingx-market-analyzer/internal/infrastructure/storage"
	"bingx-market-analyzer/internal/usecase"
	"bingx-market-analyzer/internal/web"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Exchange (BingX)
	client := exchange.NewBingXClient(
		cfg.Exchange.APIKey,
		cfg.Exchange.APISecret,
		cfg.Exchange.RestEndpoint,
		cfg.Exchange.Sandbox,
		cfg.RequestTimeout(),
		log,
	)

	// 5. Init Coordinator and Hub
	coord := coordinator.New(log)
	hub := web.NewHub(log)

	// 6. Init Orchestrator
	orchestrator := usecase.NewAnalysisOrchestrator(
		client, coord, store, store, store, hub, cfg.Analysis, log,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout())
	defer cancel()
	if err := orchestrator.Start(startCtx); err != nil {
		log.Fatal("Failed to start orchestrator", zap.Error(err))
	}

	// 7. Init Web Server
	server := web.NewServer(cfg.Server.Port, orchestrator, store, hub, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 8. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	orchestrator.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
