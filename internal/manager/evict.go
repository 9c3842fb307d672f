package manager

import (
	"context"
)

// Evict drops the current slot and closes its model, which releases all
// device memory it held. Evicting an empty slot is a no-op.
func (m *Manager) Evict(reason string) error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	return m.evictLocked(reason)
}

// evictLocked requires loadMu.
func (m *Manager) evictLocked(reason string) error {
	m.mu.Lock()
	s := m.slot
	m.slot = nil
	if m.state != StateError {
		m.state = StateEmpty
	}
	if s != nil {
		m.evictions++
	}
	m.mu.Unlock()
	if s == nil {
		return nil
	}
	if reason == "" {
		reason = "unspecified"
	}
	ks := s.Key.Render(m.variant)
	err := s.Model.Close()
	slotEvictionsTotal.WithLabelValues(reason).Inc()
	ev := m.log.Info().Str("event", "evict").Str("key", ks).Str("reason", reason)
	if err != nil {
		ev = ev.AnErr("close_error", err)
	}
	ev.Msg("manager")
	m.publish(Event{Name: EventEvict, Key: ks, Fields: map[string]any{"reason": reason}})
	return err
}

// ReleaseMemory asks the loaded model to drop cached device allocations
// without unloading it.
func (m *Manager) ReleaseMemory(ctx context.Context) error {
	m.mu.RLock()
	s := m.slot
	m.mu.RUnlock()
	if s == nil {
		return nil
	}
	return s.Model.ReleaseCache(ctx)
}
