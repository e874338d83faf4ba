package observability

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc tears down one component during shutdown.
type ShutdownFunc func(context.Context) error

type shutdownStage struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager drains the process on SIGINT or SIGTERM. The API listener
// closes first so no new authentication requests arrive, then the registered
// stages run strictly in registration order. Ordering matters here: the
// gauge scheduler and rate-limiter redis client must stop before the store
// they read from closes, and the audit sinks stay open until the listener
// has drained so every event from in-flight logins still lands.
type ShutdownManager struct {
	logger  *Logger
	server  *http.Server
	stages  []shutdownStage
	timeout time.Duration
	mu      sync.Mutex
}

// NewShutdownManager creates a shutdown manager draining the given API
// server. A zero timeout defaults to 30 seconds.
func NewShutdownManager(logger *Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		logger:  logger,
		server:  server,
		timeout: timeout,
	}
}

// RegisterShutdownFunc appends a named stage. Stages run in the order they
// were registered, after the API server has drained.
func (sm *ShutdownManager) RegisterShutdownFunc(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.stages = append(sm.stages, shutdownStage{name: name, fn: fn})
}

// WaitForShutdown blocks until a termination signal arrives, then drains.
func (sm *ShutdownManager) WaitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	sm.logger.Infof("Received signal %s, draining", sig)

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	if sm.server != nil {
		sm.logger.Info("Closing API listener")
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("API listener shutdown error")
			return fmt.Errorf("API server shutdown failed: %w", err)
		}
	}

	sm.mu.Lock()
	stages := sm.stages
	sm.mu.Unlock()

	var failed []string
	for _, stage := range stages {
		if ctx.Err() != nil {
			sm.logger.WithField("stage", stage.name).Warn("Shutdown timeout reached")
			return fmt.Errorf("shutdown timed out before stage %s", stage.name)
		}
		sm.logger.WithField("stage", stage.name).Info("Shutting down")
		if err := stage.fn(ctx); err != nil {
			sm.logger.WithField("stage", stage.name).WithError(err).Error("Stage failed")
			failed = append(failed, stage.name)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("shutdown stages failed: %v", failed)
	}

	sm.logger.Info("Shutdown complete")
	return nil
}
