package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gamechanger/internal/bgg"
	"github.com/gamechanger/internal/config"
	"github.com/gamechanger/internal/event"
	"github.com/gamechanger/internal/handler"
	"github.com/gamechanger/internal/kafka"
	"github.com/gamechanger/internal/postgres"
	"github.com/gamechanger/internal/redis"
	"github.com/gamechanger/internal/service"
	gsync "github.com/gamechanger/internal/sync"
	"github.com/gamechanger/internal/websocket"
	"github.com/gamechanger/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load event definitions
	events, err := event.Load(cfg.Events.File)
	if err != nil {
		logger.Error("failed to load event definitions", "file", cfg.Events.File, "error", err)
		os.Exit(1)
	}
	logger.Info("event definitions loaded", "file", cfg.Events.File, "events", len(events.Names()))

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	postgresRepo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer postgresRepo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := postgresRepo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize Redis standings cache
	var standingsCache *redis.StandingsCache
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		standingsCache, err = redis.NewStandingsCache(&cfg.Redis, cfg.Standings.CacheTTL, logger)
		if err != nil {
			logger.Warn("failed to connect to Redis, continuing without cache", "error", err)
			standingsCache = nil
		} else {
			defer standingsCache.Close()
			logger.Info("connected to Redis")
		}
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize services
	standingsService := service.NewStandingsService(
		postgresRepo,
		events,
		standingsCache,
		logger,
	)

	// Set the WebSocket hub on the service for broadcasting
	standingsService.SetHub(wsHub)

	// Initialize the BGG client
	bggClient := bgg.NewClient(&cfg.BGG, logger)

	// Initialize the sync change reporter: always log, optionally publish
	var reporter gsync.Reporter = gsync.NewLogReporter(logger)
	var kafkaProducer *kafka.Producer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka producer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		kafkaProducer, err = kafka.NewProducer(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka producer, continuing without Kafka", "error", err)
		} else {
			reporter = gsync.MultiReporter{gsync.NewLogReporter(logger), kafkaProducer}
		}
	}

	// Initialize sync worker
	syncWorker := worker.NewSyncWorker(
		bggClient,
		postgresRepo,
		reporter,
		standingsService,
		cfg,
		logger,
	)
	syncWorker.SetHub(wsHub)

	// Start sync worker
	if cfg.Sync.Enabled {
		if err := syncWorker.Start(ctx); err != nil {
			logger.Error("failed to start sync worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(standingsService, bggClient, syncWorker, postgresRepo, wsHub, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka producer
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			logger.Error("failed to close Kafka producer", "error", err)
		}
	}

	// Stop sync worker
	if err := syncWorker.Stop(); err != nil {
		logger.Error("failed to stop sync worker", "error", err)
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
