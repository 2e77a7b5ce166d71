package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alexvargas/portfolio-realtime/internal/auth"
	"github.com/alexvargas/portfolio-realtime/internal/config"
	"github.com/alexvargas/portfolio-realtime/internal/connection"
	"github.com/alexvargas/portfolio-realtime/internal/database"
	"github.com/alexvargas/portfolio-realtime/internal/events"
	"github.com/alexvargas/portfolio-realtime/internal/realtime"
	"github.com/alexvargas/portfolio-realtime/internal/recorder"
	"github.com/alexvargas/portfolio-realtime/internal/sink"
	"github.com/alexvargas/portfolio-realtime/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/realtime.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting realtimed",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"realtime_url", cfg.Realtime.URL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Resolve the current user source
	var users auth.CurrentUserProvider
	switch cfg.Auth.Mode {
	case "http":
		users = auth.NewHTTPProvider(cfg.Auth.BaseURL, cfg.Auth.Token, auth.WithLogger(logger))
	default:
		var u *auth.User
		if cfg.Auth.User.ID != "" {
			u = &auth.User{ID: cfg.Auth.User.ID, Role: cfg.Auth.User.Role}
		}
		users = &auth.StaticProvider{User: u}
	}

	bus := events.NewBus(cfg.Realtime.BufferSize, logger)
	uiSink := sink.NewLogSink(logger)

	headers := map[string]string{}
	if cfg.Realtime.Token != "" {
		headers["Authorization"] = "Bearer " + cfg.Realtime.Token
	}

	rt := realtime.New(realtime.Config{
		Endpoint:  cfg.Realtime.URL,
		Protocols: cfg.Realtime.Protocols,
		Headers:   headers,
		Manager: connection.ManagerConfig{
			HeartbeatInterval:    cfg.Realtime.HeartbeatInterval,
			ReconnectBaseDelay:   cfg.Realtime.Reconnect.BaseDelay,
			ReconnectMaxDelay:    cfg.Realtime.Reconnect.MaxDelay,
			MaxReconnectAttempts: cfg.Realtime.Reconnect.MaxAttempts,
			HandshakeTimeout:     cfg.Realtime.HandshakeTimeout,
			WriteTimeout:         cfg.Realtime.WriteTimeout,
			BufferSize:           cfg.Realtime.BufferSize,
		},
		PresenceAdminOnly: cfg.Realtime.PresenceAdminOnly,
		Location:          cfg.Realtime.Location,
	}, bus, uiSink, users, logger)

	// Handle signals: INT/TERM shut down, USR1 suspends liveness
	// monitoring (backgrounded), USR2 resumes it.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGUSR1:
				logger.Info("suspending realtime layer", "signal", sig)
				rt.Suspend()
			case syscall.SIGUSR2:
				logger.Info("resuming realtime layer", "signal", sig)
				rt.Resume()
			default:
				logger.Info("received shutdown signal", "signal", sig)
				cancel()
				return
			}
		}
	}()

	// Optional analytics recorder
	var rec *recorder.Recorder
	if cfg.Recorder.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)

		pool, err := database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		logger.Info("database connected")

		rec = recorder.New(recorder.Config{
			BatchSize:     cfg.Recorder.BatchSize,
			FlushInterval: cfg.Recorder.FlushInterval,
		}, bus, pool, logger)
	}

	// Start components in parallel; the facade dials and subscribes, the
	// recorder attaches to the bus.
	var g errgroup.Group
	g.Go(func() error { return rt.Start(ctx) })
	if rec != nil {
		g.Go(func() error { return rec.Start(ctx) })
	}
	if err := g.Wait(); err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	logger.Info("realtimed running",
		"instance_id", cfg.Instance.ID,
		"recorder_enabled", cfg.Recorder.Enabled,
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if rec != nil {
		rec.Stop(shutdownCtx)
	}
	rt.Stop(shutdownCtx)

	logger.Info("realtimed stopped")
}
