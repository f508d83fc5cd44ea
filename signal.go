package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"metabuild/internal/logging"
)

// setupSignalHandler returns a context cancelled after shutdownFunc runs on
// SIGTERM or SIGINT. A second signal exits immediately.
func setupSignalHandler(shutdownFunc func(context.Context)) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("[Signal] Initiating graceful shutdown")

		go func() {
			sig := <-sigCh
			logging.Warn().Str("signal", sig.String()).Msg("[Signal] Second signal, forcing exit")
			os.Exit(1)
		}()

		if shutdownFunc != nil {
			shutdownFunc(ctx)
		}
		cancel()
	}()

	return ctx
}
