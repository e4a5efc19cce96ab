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

	"github.com/quizroom/internal/config"
	"github.com/quizroom/internal/handler"
	"github.com/quizroom/internal/kafka"
	"github.com/quizroom/internal/postgres"
	"github.com/quizroom/internal/questions"
	"github.com/quizroom/internal/redis"
	"github.com/quizroom/internal/session"
	"github.com/quizroom/internal/worker"
	"github.com/quizroom/internal/ws"
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

	// Load the question set
	var src *questions.Source
	if cfg.Quiz.QuestionsFile != "" {
		src, err = questions.LoadFile(cfg.Quiz.QuestionsFile)
	} else {
		src, err = questions.Default()
	}
	if err != nil {
		logger.Error("failed to load questions", "error", err)
		os.Exit(1)
	}
	logger.Info("loaded question set", "total", src.Total())

	// Initialize session store
	store := session.New(src, cfg.Quiz.ResetGrace, logger)

	// Initialize the optional Redis leaderboard mirror
	var mirror *redis.Mirror
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		mirror, err = redis.NewMirror(&cfg.Redis, logger)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer mirror.Close()
		store.AddSink(mirror)
		logger.Info("connected to Redis")
	}

	// Initialize the optional PostgreSQL score store
	var syncWorker *worker.SyncWorker
	if cfg.Postgres.Enabled {
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		repo, err := postgres.NewRepository(&cfg.Postgres, logger)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer repo.Close()

		// Run database migrations
		if err := repo.RunMigrations(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		store.AddSink(repo)
		logger.Info("connected to PostgreSQL")

		// Periodically reconcile the in-memory ledgers into PostgreSQL
		syncWorker = worker.NewSyncWorker(store, repo, &cfg.Sync, logger)
		if cfg.Sync.Enabled {
			if err := syncWorker.Start(ctx); err != nil {
				logger.Error("failed to start sync worker", "error", err)
				os.Exit(1)
			}
		}
	}

	// Initialize the optional Kafka event publisher
	var publisher *kafka.Publisher
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka publisher",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		publisher, err = kafka.NewPublisher(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka publisher, continuing without Kafka", "error", err)
			publisher = nil
		} else {
			store.AddSink(publisher)
			logger.Info("Kafka publisher started successfully")
		}
	}

	// Initialize websocket dispatcher and HTTP handler
	dispatcher := ws.NewDispatcher(store, src, logger)
	httpHandler := handler.NewHandler(store, src, dispatcher, &cfg.Quiz, logger)
	if mirror != nil {
		httpHandler.SetLeaderboardReader(mirror)
	}

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

	// Stop Kafka publisher
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("failed to stop Kafka publisher", "error", err)
		}
	}

	// Stop sync worker
	if syncWorker != nil && syncWorker.IsRunning() {
		if err := syncWorker.Stop(); err != nil {
			logger.Error("failed to stop sync worker", "error", err)
		}
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
