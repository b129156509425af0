package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/config"
	"fintrack/internal/events"
	apphttp "fintrack/internal/http"
	"fintrack/internal/identity"
	"fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/store"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Mutation event stream is optional; without it the server just
	// skips publishing.
	var publisher store.Publisher
	if cfg.AMQPURL != "" {
		client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
		logger.Info("Mutation event stream enabled", "exchange", cfg.AMQPExchange)
	}

	var (
		server     *apphttp.Server
		localStore *store.LocalStore
	)

	switch cfg.Mode {
	case config.ModeLocal:
		slot, err := storage.NewSQLiteSlot(cfg.SQLiteDBPath, cfg.SlotKey)
		if err != nil {
			logger.Error("Failed to open SQLite slot", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer slot.Close()

		opts := []store.LocalOption{store.WithDebounce(cfg.SaveDebounce)}
		if publisher != nil {
			opts = append(opts, store.WithPublisher(publisher))
		}
		localStore, err = store.NewLocalStore(ctx, slot, opts...)
		if err != nil {
			logger.Error("Failed to load transaction store", "error", err)
			os.Exit(1)
		}

		server, err = apphttp.NewLocalServer(localStore, logger)
		if err != nil {
			logger.Error("Failed to build server", "error", err)
			os.Exit(1)
		}

	case config.ModeCloud:
		pool, err := storage.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		coll := storage.NewPostgresCollection(pool)
		tokens := identity.NewTokenManager(cfg.JWTSecret, cfg.SessionTTL)
		svc := identity.NewService(coll, tokens, logger)
		registry := store.NewRegistry(coll, publisher)

		server, err = apphttp.NewCloudServer(registry, svc, logger)
		if err != nil {
			logger.Error("Failed to build server", "error", err)
			os.Exit(1)
		}
	}
	defer server.Close()

	httpServer := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        server.Handler(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16, // 64KB
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting fintrack server", "port", cfg.Port, "mode", cfg.Mode)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}

		// Make sure the last debounced write reaches the slot.
		if localStore != nil {
			localStore.Flush()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
