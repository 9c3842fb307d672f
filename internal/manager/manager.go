package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/oulianov/audioghost-ai/internal/model"
)

// Manager owns the single model slot of the process.
//
// loadMu serializes every path that loads or evicts, so two jobs can never
// hold two models at once. mu guards the fields read by Status and friends
// and is never held across a load.
type Manager struct {
	loadMu sync.Mutex

	mu        sync.RWMutex
	state     State
	slot      *Slot
	err       string
	closed    bool
	loads     uint64
	evictions uint64
	hits      uint64

	loader          Loader
	variant         model.Variant
	publisher       EventPublisher
	log             zerolog.Logger
	allowEmptyToken bool
	now             func() time.Time
	startTime       time.Time
}

// Ready reports whether the manager can accept work. A failed load marks it
// not ready until the next successful load.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed && m.state != StateError
}

// Variant returns the component set this manager loads.
func (m *Manager) Variant() model.Variant { return m.variant }

// SetPublisher installs an EventPublisher; nil restores the no-op default.
func (m *Manager) SetPublisher(p EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		m.publisher = noopPublisher{}
		return
	}
	m.publisher = p
}

func (m *Manager) publish(e Event) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	p.Publish(e)
}

// Close evicts the slot and rejects further acquisitions.
func (m *Manager) Close() error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	err := m.evictLocked("shutdown")
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return err
}
