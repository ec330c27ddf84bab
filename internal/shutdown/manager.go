package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"framecull/internal/logger"
)

type Shutdownable interface {
	Shutdown()
}

// Manager turns the first interrupt into a cancellation of Context, so a
// running job stops at its next checkpoint and still reports its result.
// A second interrupt exits immediately.
type Manager struct {
	components  []Shutdownable
	logger      logger.Logger
	mu          sync.Mutex
	done        chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	interrupted atomic.Bool
	timeout     time.Duration
	exit        func(code int)
}

func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		components: make([]Shutdownable, 0),
		logger:     log,
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		timeout:    10 * time.Second,
		exit:       os.Exit,
	}
}

func (m *Manager) Register(component Shutdownable) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.components = append(m.components, component)
}

// Listen installs the signal handler. The returned func removes it.
func (m *Manager) Listen() (stop func()) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	quit := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigChan:
				m.handleSignal(sig)
			case <-quit:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(quit)
		})
	}
}

func (m *Manager) handleSignal(sig os.Signal) {
	if m.interrupted.Swap(true) {
		m.logger.Warning("ShutdownManager", "second signal received, exiting", map[string]interface{}{
			"signal": sig.String(),
		})
		m.exit(130)
		return
	}

	m.logger.Info("ShutdownManager", "cancellation requested", map[string]interface{}{
		"signal": sig.String(),
	})
	m.Cancel()
}

// Cancel requests cooperative cancellation without running shutdown hooks.
func (m *Manager) Cancel() {
	m.cancel()
}

// Interrupted reports whether a signal triggered the cancellation.
func (m *Manager) Interrupted() bool {
	return m.interrupted.Load()
}

func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.done:
		return
	default:
		close(m.done)
	}

	m.logger.Debug("ShutdownManager", "shutdown sequence initiated", map[string]interface{}{
		"components": len(m.components),
	})

	m.cancel()

	// Shutdown components in reverse order
	for i := len(m.components) - 1; i >= 0; i-- {
		component := m.components[i]

		done := make(chan struct{})
		go func() {
			defer close(done)
			component.Shutdown()
		}()

		select {
		case <-done:
		case <-time.After(m.timeout):
			m.logger.Warning("ShutdownManager", "component shutdown timeout", map[string]interface{}{
				"component_index": i,
			})
		}
	}

	m.logger.Debug("ShutdownManager", "shutdown sequence completed", nil)
}

func (m *Manager) Context() context.Context {
	return m.ctx
}

func (m *Manager) Done() <-chan struct{} {
	return m.done
}
