package server

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// SignalHandler manages graceful shutdown on SIGINT and SIGTERM
type SignalHandler struct {
	server          *Server
	shutdownTimeout time.Duration
	logger          *slog.Logger

	// stopFuncs run before the HTTP server shuts down
	stopFuncs []func()
}

// NewSignalHandler creates a new signal handler
func NewSignalHandler(server *Server, shutdownTimeout time.Duration, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}
}

// OnShutdown registers a function to run before the server shuts down
func (sh *SignalHandler) OnShutdown(fn func()) {
	sh.stopFuncs = append(sh.stopFuncs, fn)
}

// WaitForShutdown blocks until a shutdown signal arrives, then shuts
// everything down in order: registered stop functions first, HTTP last.
func (sh *SignalHandler) WaitForShutdown() {
	quit := make(chan os.Signal, 1)

	// SIGINT - typically sent by Ctrl+C
	// SIGTERM - standard termination signal sent by process managers
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	sh.logger.Info("Received shutdown signal", "signal", sig.String())

	for _, fn := range sh.stopFuncs {
		fn()
	}

	ctx, cancel := context.WithTimeout(context.Background(), sh.shutdownTimeout)
	defer cancel()

	if err := sh.server.Shutdown(ctx); err != nil {
		sh.logger.Error("Server forced to shutdown", "error", err)
	} else {
		sh.logger.Info("Server gracefully shut down")
	}
}
