// Package shutdown coordinates cancellation and teardown of a command run:
// signals cancel the shared context, and registered cleanups, such as the
// final save of the task store, run once in reverse registration order.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"tasktree/internal/utils"
)

// CleanupFunc is a function that performs cleanup on shutdown.
// It receives a context that bounds how long the cleanup may take.
type CleanupFunc func(ctx context.Context) error

type cleanupEntry struct {
	name string
	fn   CleanupFunc
}

// Manager handles graceful shutdown coordination.
type Manager struct {
	mu       sync.Mutex
	cleanups []cleanupEntry
	ran      bool
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
	stop     func()
}

// NewManager creates a new shutdown manager.
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
		stop:   func() {},
	}
}

// HandleSignals triggers Shutdown when one of sigs arrives. The handler is
// removed by Wait.
func (m *Manager) HandleSignals(sigs ...os.Signal) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-ch:
			utils.Debugf("received %s, shutting down", sig)
			m.Shutdown()
		case <-done:
		}
	}()

	var stopOnce sync.Once
	m.mu.Lock()
	m.stop = func() {
		stopOnce.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}
	m.mu.Unlock()
}

// RegisterCleanup registers a cleanup function to be called by Wait.
// Cleanup functions are called in LIFO order (last registered, first called).
func (m *Manager) RegisterCleanup(name string, fn CleanupFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanupEntry{name: name, fn: fn})
}

// Shutdown cancels the manager's context.
// Safe to call multiple times; only the first call has effect.
func (m *Manager) Shutdown() {
	m.once.Do(m.cancel)
}

// IsShutdown returns true if shutdown has been initiated.
func (m *Manager) IsShutdown() bool {
	return m.ctx.Err() != nil
}

// Context returns a context that is cancelled when shutdown is initiated.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Wait runs the registered cleanups once, in LIFO order, and returns their
// joined errors. A failing cleanup does not stop the remaining ones. Wait
// returns ctx.Err() if ctx ends before the cleanups finish. Later calls are
// no-ops.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	if m.ran {
		m.mu.Unlock()
		return nil
	}
	m.ran = true
	cleanups := make([]cleanupEntry, len(m.cleanups))
	copy(cleanups, m.cleanups)
	stop := m.stop
	m.mu.Unlock()

	stop()

	done := make(chan error, 1)
	go func() {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			c := cleanups[i]
			utils.Debugf("running cleanup %q", c.name)
			if err := c.fn(ctx); err != nil {
				utils.Warnf("cleanup %q failed: %v", c.name, err)
				errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			}
		}
		done <- errors.Join(errs...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
