package shutdown

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"upscale_backend/core"
)

func TestManager_NewManager(t *testing.T) {
	manager := NewManager(zaptest.NewLogger(t))

	if manager.Context().Err() != nil {
		t.Error("context should be live before any signal")
	}
	if manager.IsShuttingDown() {
		t.Error("new manager should not be shutting down")
	}
	if manager.Signal() != nil {
		t.Error("Signal() should be nil before any signal")
	}
	if manager.timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", manager.timeout)
	}
}

func TestManager_NilLogger(t *testing.T) {
	manager := NewManager(nil)
	manager.Register("noop", 1, func(context.Context) error { return nil })
	if err := manager.Shutdown(); err != nil {
		t.Errorf("Shutdown() error: %v", err)
	}
}

func TestManager_Do(t *testing.T) {
	manager := NewManager(zaptest.NewLogger(t))

	ran := false
	err := manager.Do("op", func(ctx context.Context) error {
		ran = true
		if manager.ActiveOperations() != 1 {
			t.Errorf("ActiveOperations() = %d inside Do, want 1", manager.ActiveOperations())
		}
		return nil
	})
	if err != nil || !ran {
		t.Errorf("Do() = %v, ran = %v", err, ran)
	}
	if manager.ActiveOperations() != 0 {
		t.Errorf("ActiveOperations() = %d after Do, want 0", manager.ActiveOperations())
	}

	errBoom := errors.New("boom")
	if err := manager.Do("failing", func(context.Context) error { return errBoom }); !errors.Is(err, errBoom) {
		t.Errorf("Do() error = %v, want boom", err)
	}
}

func TestManager_SignalCancelsWork(t *testing.T) {
	manager := NewManager(zaptest.NewLogger(t))

	started := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		result <- manager.Do("upscale", func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	<-started
	manager.handleSignal(syscall.SIGTERM)

	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Do() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("operation was not cancelled by the signal")
	}

	if manager.Signal() != syscall.SIGTERM {
		t.Errorf("Signal() = %v, want SIGTERM", manager.Signal())
	}
	if err := manager.Do("late", func(context.Context) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("Do() after signal = %v, want context.Canceled", err)
	}
}

func TestManager_SecondSignalForcesExit(t *testing.T) {
	var code int
	manager := NewManager(zaptest.NewLogger(t), WithExitFunc(func(c int) { code = c }))

	manager.handleSignal(os.Interrupt)
	if code != 0 {
		t.Fatalf("exit called after first signal with %d", code)
	}
	manager.handleSignal(syscall.SIGTERM)
	if code != core.ExitCodeSIGTERM {
		t.Errorf("exit code = %d, want %d", code, core.ExitCodeSIGTERM)
	}
}

func TestManager_ExitCode(t *testing.T) {
	tests := []struct {
		name   string
		signal os.Signal
		err    error
		want   int
	}{
		{"success", nil, nil, core.ExitCodeSuccess},
		{"failure", nil, errors.New("tile floor"), core.ExitCodeError},
		{"config", nil, core.ErrMissingInput("-source"), core.ExitCodeConfig},
		{"interrupted", os.Interrupt, context.Canceled, core.ExitCodeSIGINT},
		{"terminated", syscall.SIGTERM, nil, core.ExitCodeSIGTERM},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := NewManager(zaptest.NewLogger(t))
			if tt.signal != nil {
				manager.handleSignal(tt.signal)
			}
			if got := manager.ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestManager_ShutdownRunsHandlers(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	manager := NewManager(zap.New(obs))

	var order []string
	manager.Register("logger", PriorityLogger, func(context.Context) error {
		order = append(order, "logger")
		return nil
	})
	manager.Register("history", PriorityHistory, func(context.Context) error {
		order = append(order, "history")
		return nil
	})
	manager.Start()

	if err := manager.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if len(order) != 2 || order[0] != "history" || order[1] != "logger" {
		t.Errorf("handler order = %v, want [history logger]", order)
	}
	if !manager.IsShuttingDown() {
		t.Error("IsShuttingDown() = false after Shutdown")
	}
	if manager.Context().Err() == nil {
		t.Error("context should be cancelled by Shutdown")
	}
	if logs.FilterMessage("Registered shutdown handler").Len() != 2 {
		t.Errorf("expected 2 registration logs, got %d", logs.FilterMessage("Registered shutdown handler").Len())
	}

	// Idempotent
	if err := manager.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error: %v", err)
	}
	if len(order) != 2 {
		t.Errorf("handlers ran again: %v", order)
	}
	if err := manager.Do("late", func(context.Context) error { return nil }); !errors.Is(err, ErrTrackerClosed) {
		t.Errorf("Do() after Shutdown = %v, want ErrTrackerClosed", err)
	}
}

func TestManager_ShutdownReportsErrors(t *testing.T) {
	manager := NewManager(zaptest.NewLogger(t))
	errClose := errors.New("close failed")
	manager.Register("history", PriorityHistory, func(context.Context) error { return errClose })

	err := manager.Shutdown()
	if !errors.Is(err, errClose) {
		t.Errorf("Shutdown() error = %v, want close failed", err)
	}
}

func TestManager_ShutdownWaitsForOperations(t *testing.T) {
	manager := NewManager(zaptest.NewLogger(t), WithTimeout(time.Second))

	release := make(chan struct{})
	started := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		manager.Do("slow", func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
		close(finished)
	}()
	<-started

	var cleanupSawActive int
	manager.Register("devices", PriorityDevices, func(context.Context) error {
		cleanupSawActive = manager.ActiveOperations()
		return nil
	})

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	if err := manager.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	<-finished
	if cleanupSawActive != 0 {
		t.Errorf("cleanup ran with %d active operations", cleanupSawActive)
	}
}

func TestManager_ShutdownTimeoutStillCleansUp(t *testing.T) {
	manager := NewManager(zaptest.NewLogger(t), WithTimeout(20*time.Millisecond))

	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{})
	go manager.Do("stuck", func(context.Context) error {
		close(started)
		<-block
		return nil
	})
	<-started

	cleaned := false
	manager.Register("history", PriorityHistory, func(ctx context.Context) error {
		cleaned = ctx.Err() == nil
		return nil
	})

	if err := manager.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if !cleaned {
		t.Error("cleanup should run with a live context after the drain timeout")
	}
}
