// Package modeltest provides an in-memory separation runtime for tests.
package modeltest

import (
	"context"
	"sync"

	"github.com/oulianov/audioghost-ai/internal/model"
)

// Backend is a fake runtime. Separate returns the input scaled by Gain as
// the target and the remainder as the residual.
type Backend struct {
	Gain float32
	// Err, when set, is returned by every Separate call.
	Err error
	// FailAt makes the Nth call (1-based) return FailErr.
	FailAt  int
	FailErr error

	mu       sync.Mutex
	calls    []Call
	releases int
	closed   bool
}

// Call records one Separate invocation.
type Call struct {
	Batch model.Batch
	Opts  model.SeparateOptions
}

// New returns a fake with gain 0.5.
func New() *Backend { return &Backend{Gain: 0.5} }

func (b *Backend) Separate(ctx context.Context, batch model.Batch, opts model.SeparateOptions) (model.Separation, error) {
	if err := ctx.Err(); err != nil {
		return model.Separation{}, err
	}
	b.mu.Lock()
	b.calls = append(b.calls, Call{Batch: batch, Opts: opts})
	n := len(b.calls)
	b.mu.Unlock()
	if b.Err != nil {
		return model.Separation{}, b.Err
	}
	if b.FailAt > 0 && n == b.FailAt {
		return model.Separation{}, b.FailErr
	}
	out := model.Separation{
		Target:   make([][]float32, len(batch.Audios)),
		Residual: make([][]float32, len(batch.Audios)),
	}
	for i, a := range batch.Audios {
		t := make([]float32, len(a))
		r := make([]float32, len(a))
		for j, v := range a {
			t[j] = v * b.Gain
			r[j] = v - t[j]
		}
		out.Target[i] = t
		out.Residual[i] = r
	}
	return out, nil
}

func (b *Backend) ReleaseCache(context.Context) error {
	b.mu.Lock()
	b.releases++
	b.mu.Unlock()
	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// Calls returns a copy of the recorded Separate calls.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// Releases returns how many times ReleaseCache was called.
func (b *Backend) Releases() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.releases
}

// Closed reports whether Close was called.
func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
