package jobs

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/oulianov/audioghost-ai/internal/audio"
	"github.com/oulianov/audioghost-ai/internal/manager"
	"github.com/oulianov/audioghost-ai/internal/model"
	"github.com/oulianov/audioghost-ai/internal/model/modeltest"
	"github.com/oulianov/audioghost-ai/pkg/types"
)

const testRate = 8000

type update struct {
	State   string
	Percent int
	Msg     string
}

type failRec struct {
	State, Msg, Kind string
}

// recSink records every status write.
type recSink struct {
	mu        sync.Mutex
	updates   []update
	completed []types.JobResult
	fails     []failRec
	onUpdate  func(update)
}

func (s *recSink) Update(_ context.Context, _ string, state string, percent int, msg string) error {
	u := update{State: state, Percent: percent, Msg: msg}
	s.mu.Lock()
	s.updates = append(s.updates, u)
	hook := s.onUpdate
	s.mu.Unlock()
	if hook != nil {
		hook(u)
	}
	return nil
}

func (s *recSink) Complete(_ context.Context, _ string, res types.JobResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, res)
	return nil
}

func (s *recSink) Fail(_ context.Context, _ string, state, msg, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails = append(s.fails, failRec{State: state, Msg: msg, Kind: kind})
	return nil
}

func (s *recSink) percents() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.updates))
	for i, u := range s.updates {
		out[i] = u.Percent
	}
	return out
}

func (s *recSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.updates))
	for i, u := range s.updates {
		out[i] = u.Msg
	}
	return out
}

// fakeLoader hands out modeltest backends at testRate.
type fakeLoader struct {
	mu        sync.Mutex
	loads     []manager.LoadSpec
	backends  []*modeltest.Backend
	err       error
	configure func(*modeltest.Backend)
}

func (l *fakeLoader) Load(_ context.Context, spec manager.LoadSpec) (model.Backend, model.Info, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads = append(l.loads, spec)
	if l.err != nil {
		return nil, model.Info{}, l.err
	}
	b := modeltest.New()
	if l.configure != nil {
		l.configure(b)
	}
	l.backends = append(l.backends, b)
	return b, model.Info{SampleRate: testRate}, nil
}

func (l *fakeLoader) loadCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.loads)
}

type staticToken string

func (t staticToken) Token() string { return string(t) }

type harness struct {
	sink   *recSink
	loader *fakeLoader
	mgr    *manager.Manager
	ctrl   *Controller
	outDir string
	inDir  string
}

func newHarness(t *testing.T, token string) *harness {
	t.Helper()
	h := &harness{sink: &recSink{}, loader: &fakeLoader{}, outDir: filepath.Join(t.TempDir(), "out"), inDir: t.TempDir()}
	h.mgr = manager.NewWithConfig(manager.ManagerConfig{Loader: h.loader, Logger: zerolog.Nop()})
	t.Cleanup(func() { _ = h.mgr.Close() })
	h.ctrl = NewController(ControllerConfig{
		Slots:     h.mgr,
		Tokens:    staticToken(token),
		Sink:      h.sink,
		Device:    model.DeviceCPU,
		OutputDir: h.outDir,
		Logger:    zerolog.Nop(),
	})
	return h
}

// writeTone writes a 440 Hz mono tone of the given length at testRate.
func writeTone(t *testing.T, dir string, seconds float64) string {
	t.Helper()
	n := int(seconds * testRate)
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/testRate))
	}
	path := filepath.Join(dir, "tone.wav")
	require.NoError(t, audio.WriteWAV(path, samples, testRate, 16))
	return path
}

func job(id, input string) Job {
	return Job{ID: id, InputPath: input, Description: "tone", ChunkDuration: DefaultChunkDuration}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
