package collector

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"draft-analyzer/internal/logging"
)

// SetupSignalHandler creates a context that is cancelled on SIGTERM or SIGINT.
// It also calls the provided shutdown function before cancelling. A second
// signal exits the process.
func SetupSignalHandler(logger *slog.Logger, shutdownFunc func(context.Context)) context.Context {
	logger = logging.OrDiscard(logger).With("component", "signal")
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		logger.Info("initiating graceful shutdown", "signal", sig.String())

		if shutdownFunc != nil {
			shutdownFunc(ctx)
		}
		cancel()

		sig = <-sigCh
		logger.Warn("forcing exit", "signal", sig.String())
		os.Exit(1)
	}()

	return ctx
}
