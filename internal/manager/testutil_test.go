package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/oulianov/audioghost-ai/internal/model"
	"github.com/oulianov/audioghost-ai/internal/model/modeltest"
)

// countingLoader hands out fake backends and tracks how many are alive.
type countingLoader struct {
	mu      sync.Mutex
	loads   []LoadSpec
	live    int
	peak    int
	err     error
	delay   time.Duration
	backend []*trackedBackend
}

type trackedBackend struct {
	*modeltest.Backend
	l *countingLoader
}

func (b *trackedBackend) Close() error {
	if b.Backend.Closed() {
		return nil
	}
	b.l.mu.Lock()
	b.l.live--
	b.l.mu.Unlock()
	return b.Backend.Close()
}

func (l *countingLoader) Load(ctx context.Context, spec LoadSpec) (model.Backend, model.Info, error) {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads = append(l.loads, spec)
	if l.err != nil {
		return nil, model.Info{}, l.err
	}
	l.live++
	if l.live > l.peak {
		l.peak = l.live
	}
	b := &trackedBackend{Backend: modeltest.New(), l: l}
	l.backend = append(l.backend, b)
	return b, model.Info{SampleRate: 16000}, nil
}

func (l *countingLoader) snapshot() (loads, live, peak int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.loads), l.live, l.peak
}

func newTestManager(t *testing.T, l Loader) (*Manager, *MemoryPublisher) {
	t.Helper()
	pub := NewMemoryPublisher()
	m := NewWithConfig(ManagerConfig{Loader: l, Publisher: pub, Logger: zerolog.Nop()})
	t.Cleanup(func() { _ = m.Close() })
	return m, pub
}

func req(name string) AcquireRequest {
	return AcquireRequest{ModelName: name, Device: model.DeviceCPU, Token: "hf_test"}
}

var errBoom = errors.New("boom")
