package shutdown

import (
	"context"
	"sync"

	"github.com/betkit/gopoly/pkg/logger"
)

// Handler releases one resource during shutdown.
type Handler func(ctx context.Context)

// Manager collects shutdown handlers and runs them concurrently when
// the process winds down.
type Manager struct {
	mu       sync.Mutex
	handlers []Handler
}

func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown registers a handler. Safe to call from any goroutine.
func (m *Manager) OnShutdown(h Handler) {
	if h == nil {
		return
	}
	m.mu.Lock()
	m.handlers = append(m.handlers, h)
	m.mu.Unlock()
}

// Shutdown runs every registered handler and waits for them all, or
// for ctx to expire. Pass a context with a deadline so a stuck handler
// cannot block exit forever.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	handlers := m.handlers
	m.mu.Unlock()

	if len(handlers) == 0 {
		return
	}
	logger.Infof("shutting down, %d handlers", len(handlers))

	var wg sync.WaitGroup
	wg.Add(len(handlers))
	for _, h := range handlers {
		go func(h Handler) {
			defer wg.Done()
			h(ctx)
		}(h)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Infof("shutdown complete")
	case <-ctx.Done():
		logger.Warnf("shutdown timed out: %v", ctx.Err())
	}
}
