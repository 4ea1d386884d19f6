package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/zainabzahid711/chat-app/internal/api"
	"github.com/zainabzahid711/chat-app/internal/config"
	"github.com/zainabzahid711/chat-app/internal/handlers"
	"github.com/zainabzahid711/chat-app/internal/hub"
	"github.com/zainabzahid711/chat-app/internal/store"
	"github.com/zainabzahid711/chat-app/internal/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	instanceID := ulid.Make().String()
	ctx := context.Background()

	// Initialize record store
	var dataStore store.DataStore
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		dataStore = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		dataStore = sqliteStore
		logger.Info().Msg("using SQLite store")
	}
	defer dataStore.Close()

	// Initialize broadcast layer
	chatHub := hub.NewHub(logger)
	var broker hub.Broadcaster = chatHub
	if cfg.BroadcastBackend == config.BroadcastRedis {
		redisLayer, err := hub.NewRedisLayer(ctx, cfg.RedisURL, chatHub, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisLayer.Close()
		broker = redisLayer
		logger.Info().Msg("using Redis broadcast layer")
	}

	// Create router
	h := handlers.NewHandler(dataStore, chatHub, instanceID)
	wsHandler := ws.NewHandler(dataStore, broker, cfg.AllowedOrigins, logger)
	router := api.NewRouter(logger, h, wsHandler, cfg.AllowedOrigins)

	// Create server
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would sever long-lived WebSocket connections.
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("instance", instanceID).
			Str("broadcast", cfg.BroadcastBackend).
			Msg("starting chat server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Drop live connections first so Shutdown can drain.
	chatHub.Shutdown()

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
