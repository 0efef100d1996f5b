package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"travel-together-api/internal/auth"
	"travel-together-api/internal/config"
	"travel-together-api/internal/database"
	"travel-together-api/internal/handlers"
	"travel-together-api/internal/logging"
	"travel-together-api/internal/realtime"
	"travel-together-api/internal/routes"
	"travel-together-api/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	flags := pflag.NewFlagSet("travel-together-api", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to a YAML/JSON/TOML config file")
	flags.String("http-addr", "", "HTTP listen address")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flags.String("db-path", "", "SQLite database file")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(cfg, &logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(cfg config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auth.Configure(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.TTL)

	// Init database
	db, err := database.Open(cfg.Database.Path, logging.GormLevel(cfg.Database.LogLevel))
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	defer sqlDB.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(sqlDB, "sqlite"),
	)

	trips := store.NewTrips(db, cfg.Membership.CacheTTL)
	history := store.NewChatHistory(db)
	writer := store.NewHistoryWriter(history, cfg.History.Buffer, logger)
	gate := realtime.NewGate(trips, logger)
	hub := realtime.NewHub(realtime.Config{
		Gate:             gate,
		History:          writer,
		Metrics:          realtime.NewMetrics(registry),
		Logger:           logger,
		AuthorizeTimeout: cfg.Realtime.AuthorizeTimeout,
	})

	// the writer outlives the hub so the last routed messages still get persisted
	writerCtx, stopWriter := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		writer.Run(writerCtx)
	}()
	go func() {
		defer wg.Done()
		hub.Run(ctx)
		stopWriter()
	}()

	connCfg := realtime.ConnConfig{
		PingInterval:   cfg.Realtime.PingInterval,
		PongWait:       cfg.Realtime.PongWait,
		WriteWait:      cfg.Realtime.WriteWait,
		MaxMessageSize: cfg.Realtime.MaxMessageSize,
		SendBuffer:     cfg.Realtime.SendBuffer,
	}

	// Setup the routes (public and protected routes)
	gin.SetMode(gin.ReleaseMode)
	router := routes.SetupRoutes(routes.Deps{
		Auth:           handlers.NewAuthHandler(db, logger),
		WS:             handlers.NewWSHandler(hub, connCfg, cfg.CORS.AllowedOrigins, logger),
		Chat:           handlers.NewChatHandler(gate, history, hub, cfg.History.DefaultLimit, logger),
		Users:          handlers.NewUserHandler(db, hub, logger),
		Gatherer:       registry,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddress,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			stop()
			wg.Wait()
			return fmt.Errorf("listen on %s: %w", cfg.HTTPAddress, err)
		}
	}

	// Shutdown does not track hijacked websocket handlers; the hub closes those.
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	wg.Wait()
	logger.Info().Msg("server stopped")
	return nil
}
