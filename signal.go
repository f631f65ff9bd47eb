package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// exitFunc is replaced in tests.
var exitFunc = os.Exit

// shutdownContext returns a context that is canceled on the first SIGINT or
// SIGTERM. A second signal exits immediately. stop releases the signal
// handler; call it when the command returns.
func shutdownContext(parent context.Context, logger *slog.Logger) (ctx context.Context, stop func()) {
	return notifyShutdown(parent, logger, make(chan os.Signal, 2), true)
}

func notifyShutdown(
	parent context.Context, logger *slog.Logger, sigCh chan os.Signal, register bool,
) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	if register {
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}

	done := make(chan struct{})

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("stopping after the current item, press Ctrl-C again to force",
				slog.String("signal", sig.String()),
			)
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("second signal received, exiting",
				slog.String("signal", sig.String()),
			)
			exitFunc(1)
		case <-done:
			return
		}
	}()

	stop := func() {
		select {
		case <-done:
		default:
			close(done)
		}

		cancel()
	}

	return ctx, stop
}
