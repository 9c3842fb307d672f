package manager

import (
	"context"
	"errors"
	"strings"

	"github.com/oulianov/audioghost-ai/internal/failure"
	"github.com/oulianov/audioghost-ai/internal/model"
)

// Acquire returns the model and processor for req, loading them on a miss.
//
// A hit refreshes LastUsed and returns the cached handles. A miss evicts the
// current slot first, then loads through the Loader; on failure the slot is
// left empty and a failure.ResourceLoad error is returned. A load cut short
// by ctx returns ctx.Err() and leaves the manager ready. A missing token
// is a failure.Configuration error and leaves the current slot untouched.
func (m *Manager) Acquire(ctx context.Context, req AcquireRequest) (model.Separator, *model.Processor, error) {
	if req.Precision == "" {
		req.Precision = model.DefaultPrecision(req.Device)
	}
	key := Key{ModelName: req.ModelName, Device: req.Device, Precision: req.Precision}
	ks := key.Render(m.variant)
	m.publish(Event{Name: EventAcquireStart, Key: ks})

	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, ErrClosed
	}
	if s := m.slot; s != nil && s.Key == key {
		s.LastUsed = m.now()
		m.hits++
		m.mu.Unlock()
		slotHitsTotal.Inc()
		m.log.Debug().Str("event", "acquire_hit").Str("key", ks).Msg("manager")
		m.publish(Event{Name: EventAcquireHit, Key: ks})
		return s.Model, s.Processor, nil
	}
	m.mu.Unlock()

	if strings.TrimSpace(req.ModelName) == "" {
		return nil, nil, failure.Configuration("model name is empty")
	}
	if strings.TrimSpace(req.Token) == "" && !m.allowEmptyToken {
		return nil, nil, failure.Configuration(missingTokenMsg)
	}
	if m.loader == nil {
		return nil, nil, failure.Configuration("no model loader configured")
	}

	if err := m.evictLocked("key_change"); err != nil {
		m.log.Warn().Err(err).Str("event", "evict_error").Msg("manager")
	}

	m.mu.Lock()
	m.state = StateLoading
	m.err = ""
	m.mu.Unlock()
	m.log.Info().Str("event", "load_start").Str("key", ks).Msg("manager")

	start := m.now()
	backend, info, err := m.loader.Load(ctx, LoadSpec{
		ModelName: req.ModelName,
		Device:    req.Device,
		Precision: req.Precision,
		Token:     req.Token,
		Lite:      m.variant == model.VariantLite,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// the job went away; the slot itself is fine
			m.mu.Lock()
			m.state = StateEmpty
			m.mu.Unlock()
			m.log.Info().Err(ctxErr).Str("event", "load_cancelled").Str("key", ks).Msg("manager")
			m.publish(Event{Name: EventLoadCancelled, Key: ks})
			return nil, nil, ctxErr
		}
		err = classifyLoadError(req.ModelName, err)
		m.mu.Lock()
		m.state = StateError
		m.err = err.Error()
		m.mu.Unlock()
		slotLoadErrorsTotal.Inc()
		m.log.Error().Err(err).Str("event", "load_error").Str("key", ks).Msg("manager")
		m.publish(Event{Name: EventLoadError, Key: ks, Fields: map[string]any{"error": err.Error()}})
		return nil, nil, err
	}

	var sep model.Separator
	if m.variant == model.VariantFull {
		sep = model.NewFull(backend, info)
	} else {
		sep = model.NewLite(backend, info)
	}
	now := m.now()
	slot := &Slot{
		Key:       key,
		Model:     sep,
		Processor: model.NewProcessor(sep.Info()),
		LoadedAt:  now,
		LastUsed:  now,
	}
	m.mu.Lock()
	m.slot = slot
	m.state = StateReady
	m.loads++
	m.mu.Unlock()

	took := now.Sub(start)
	slotLoadsTotal.Inc()
	slotLoadDuration.Observe(took.Seconds())
	m.log.Info().Str("event", "load_ready").Str("key", ks).Dur("took", took).
		Int("sample_rate", slot.Processor.SampleRate).Msg("manager")
	m.publish(Event{Name: EventLoadReady, Key: ks, Fields: map[string]any{"took_ms": took.Milliseconds()}})
	return slot.Model, slot.Processor, nil
}

func classifyLoadError(name string, err error) error {
	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}
	return failure.ResourceLoad(name, err)
}
