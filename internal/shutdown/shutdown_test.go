package shutdown_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"tasktree/internal/shutdown"
	"tasktree/internal/utils"
)

func init() {
	utils.SetOutput(io.Discard)
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestShutdownCancelsContext verifies Shutdown cancels the shared context
func TestShutdownCancelsContext(t *testing.T) {
	mgr := shutdown.NewManager()
	if mgr.IsShutdown() {
		t.Fatal("new manager should not be shut down")
	}

	mgr.Shutdown()

	select {
	case <-mgr.Context().Done():
	default:
		t.Fatal("context should be cancelled after Shutdown")
	}
	if !mgr.IsShutdown() {
		t.Error("IsShutdown() should be true after Shutdown")
	}
}

// TestSignalTriggersShutdown verifies a handled signal cancels the context
func TestSignalTriggersShutdown(t *testing.T) {
	mgr := shutdown.NewManager()
	mgr.HandleSignals(syscall.SIGUSR1)
	defer func() { _ = mgr.Wait(waitCtx(t)) }()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("failed to send signal: %v", err)
	}

	select {
	case <-mgr.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("signal did not trigger shutdown")
	}
}

// TestCleanupRunsWithoutShutdown verifies the final save runs on a normal exit too
func TestCleanupRunsWithoutShutdown(t *testing.T) {
	mgr := shutdown.NewManager()
	var called atomic.Bool
	mgr.RegisterCleanup("save", func(ctx context.Context) error {
		called.Store(true)
		return nil
	})

	if err := mgr.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if !called.Load() {
		t.Error("cleanup should run on Wait")
	}
}

// TestShutdownOrder verifies cleanup functions run in LIFO order
func TestShutdownOrder(t *testing.T) {
	mgr := shutdown.NewManager()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		mgr.RegisterCleanup(name, func(ctx context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	mgr.Shutdown()
	if err := mgr.Wait(waitCtx(t)); err != nil {
		t.Fatal(err)
	}

	expected := []string{"third", "second", "first"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d cleanups, got %d", len(expected), len(order))
	}
	for i, name := range expected {
		if order[i] != name {
			t.Errorf("expected cleanup %d to be %q, got %q", i, name, order[i])
		}
	}
}

// TestCleanupErrorsAreJoined verifies failing cleanups do not stop the others
func TestCleanupErrorsAreJoined(t *testing.T) {
	mgr := shutdown.NewManager()
	errSave := errors.New("disk full")
	var closed atomic.Bool

	mgr.RegisterCleanup("close", func(ctx context.Context) error {
		closed.Store(true)
		return nil
	})
	mgr.RegisterCleanup("save", func(ctx context.Context) error {
		return errSave
	})

	err := mgr.Wait(waitCtx(t))
	if !errors.Is(err, errSave) {
		t.Errorf("Wait() error = %v, want %v", err, errSave)
	}
	if !closed.Load() {
		t.Error("remaining cleanups should still run")
	}
}

// TestShutdownTimeout verifies Wait gives up when cleanup takes too long
func TestShutdownTimeout(t *testing.T) {
	mgr := shutdown.NewManager()
	mgr.RegisterCleanup("slow-cleanup", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := mgr.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}

// TestShutdownConcurrentSafety verifies cleanups run once despite concurrent calls
func TestShutdownConcurrentSafety(t *testing.T) {
	mgr := shutdown.NewManager()
	var cleanupCount atomic.Int32
	mgr.RegisterCleanup("test", func(ctx context.Context) error {
		cleanupCount.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mgr.Shutdown()
			_ = mgr.Wait(context.Background())
		}()
	}
	wg.Wait()

	if cleanupCount.Load() != 1 {
		t.Errorf("expected cleanup to be called exactly once, got %d", cleanupCount.Load())
	}
}
