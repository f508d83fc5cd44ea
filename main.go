package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"metabuild/internal/config"
	"metabuild/internal/logging"
	"metabuild/internal/opendota"
	"metabuild/internal/store"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("[Server] Exiting")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := store.Open(startCtx, cfg.Database.Driver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	if err := store.Bootstrap(startCtx, st, cfg.Cache.HotHeroes, time.Now().UTC()); err != nil {
		return err
	}
	logging.Info().Str("driver", cfg.Database.Driver).Msg("[Store] Schema ready")

	provider := opendota.NewBreakerClient(
		opendota.NewClient(
			opendota.WithBaseURL(cfg.OpenDota.BaseURL),
			opendota.WithTimeout(cfg.OpenDotaTimeout()),
		),
		opendota.DefaultBreakerSettings(),
	)

	app := NewApp(cfg, st, provider)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           app.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx := setupSignalHandler(func(ctx context.Context) {
		app.shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("[Server] Graceful shutdown incomplete")
		}
	})
	app.startup(ctx)

	logging.Info().Int("port", cfg.Server.Port).Msg("[Server] Listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}

	<-ctx.Done()
	logging.Info().Msg("[Server] Stopped")
	return nil
}
