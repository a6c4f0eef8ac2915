package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"upscale_backend/core"
)

// Manager ties signal handling, in-flight tracking, and ordered cleanup
// together for one process.
//
// Usage:
//
//	manager := shutdown.NewManager(logger, shutdown.WithTimeout(30*time.Second))
//	manager.Register("history", shutdown.PriorityHistory, func(ctx context.Context) error {
//	    return history.Close()
//	})
//	manager.Start()
//
//	err := manager.Do("upscale", func(ctx context.Context) error {
//	    return run(ctx)
//	})
//	manager.Shutdown()
//	os.Exit(manager.ExitCode(err))
type Manager struct {
	logger  *zap.Logger
	timeout time.Duration
	exit    func(int)

	mu       sync.Mutex
	started  bool
	shutdown bool

	ctx    context.Context
	cancel context.CancelFunc

	tracker  *OperationTracker
	registry *Registry
	signals  *SignalCounter
	sigChan  chan os.Signal
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout bounds how long Shutdown waits for in-flight work and cleanup.
// Default is 30 seconds.
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = timeout
	}
}

// WithExitFunc replaces os.Exit for the forced exit on a repeated signal.
func WithExitFunc(exit func(int)) ManagerOption {
	return func(m *Manager) {
		m.exit = exit
	}
}

// NewManager returns a Manager whose context is live until the first signal
// or Shutdown. A nil logger disables logging.
func NewManager(logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		logger:   logger,
		timeout:  30 * time.Second,
		exit:     os.Exit,
		ctx:      ctx,
		cancel:   cancel,
		tracker:  NewOperationTracker(),
		registry: NewRegistry(),
		sigChan:  make(chan os.Signal, 2),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.signals = NewSignalCounter(2, func(sig os.Signal) {
		m.logger.Warn("Received second signal, forcing exit", zap.String("signal", sig.String()))
		_ = m.logger.Sync()
		m.exit(core.ExitCodeForSignal(sig))
	})
	return m
}

// Context is cancelled on the first signal and when Shutdown starts.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Register adds a cleanup function. Lower priorities run first.
func (m *Manager) Register(name string, priority int, fn core.ShutdownFunc) {
	m.registry.Register(name, priority, fn)
	m.logger.Debug("Registered shutdown handler",
		zap.String("name", name),
		zap.Int("priority", priority),
	)
}

// Start listens for SIGINT and SIGTERM. Repeated calls are no-ops.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.shutdown {
		return
	}
	m.started = true

	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range m.sigChan {
			m.handleSignal(sig)
		}
	}()
}

func (m *Manager) handleSignal(sig os.Signal) {
	if m.signals.Record(sig) == 1 {
		m.logger.Info("Received shutdown signal, cancelling work",
			zap.String("signal", sig.String()),
		)
		m.cancel()
	}
}

// Signal returns the first signal received, or nil.
func (m *Manager) Signal() os.Signal {
	return m.signals.First()
}

// ExitCode maps the outcome of the run to a process exit code. An
// interrupted run exits with the signal's code whatever err is.
func (m *Manager) ExitCode(err error) int {
	if sig := m.Signal(); sig != nil {
		return core.ExitCodeForSignal(sig)
	}
	return core.ExitCodeForError(err)
}

// Do runs fn as a tracked operation under the manager's context. It returns
// ErrTrackerClosed without calling fn once shutdown has begun, and the
// context error when a signal already arrived.
func (m *Manager) Do(name string, fn func(ctx context.Context) error) error {
	if !m.tracker.Start() {
		m.logger.Debug("Operation rejected, shutting down", zap.String("operation", name))
		return ErrTrackerClosed
	}
	defer m.tracker.Done()

	if err := m.ctx.Err(); err != nil {
		return err
	}
	return fn(m.ctx)
}

// Shutdown stops new operations, waits for running ones, then runs the
// cleanup handlers, all within the configured timeout. Only the first call
// does anything.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	started := m.started
	m.mu.Unlock()

	start := time.Now()
	m.cancel()
	m.tracker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if n := m.tracker.Active(); n > 0 {
		m.logger.Info("Waiting for in-flight operations", zap.Int("active", n))
	}
	if err := m.tracker.Wait(ctx); err != nil {
		m.logger.Warn("Timed out waiting for in-flight operations",
			zap.Int("remaining", m.tracker.Active()),
		)
	}

	// Cleanup always gets at least a second even if draining used the budget.
	if ctx.Err() != nil {
		cancel()
		ctx, cancel = context.WithTimeout(context.Background(), time.Second)
		defer cancel()
	}

	errs := m.registry.Run(ctx)
	for _, err := range errs {
		m.logger.Error("Cleanup failed", zap.Error(err))
	}

	if started {
		signal.Stop(m.sigChan)
		close(m.sigChan)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown had %d errors: %w", len(errs), errors.Join(errs...))
	}
	m.logger.Debug("Shutdown complete", zap.Duration("duration", time.Since(start)))
	return nil
}

// ActiveOperations returns the number of running Do calls.
func (m *Manager) ActiveOperations() int {
	return m.tracker.Active()
}

// IsShuttingDown reports whether Shutdown has been called.
func (m *Manager) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

// RegisteredHandlers lists cleanup handler names in execution order.
func (m *Manager) RegisteredHandlers() []string {
	return m.registry.Names()
}
