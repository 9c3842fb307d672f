package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oulianov/audioghost-ai/internal/failure"
	"github.com/oulianov/audioghost-ai/internal/manager"
	"github.com/oulianov/audioghost-ai/internal/model"
	"github.com/oulianov/audioghost-ai/internal/store"
)

type serviceHarness struct {
	svc    *Service
	store  *store.Store
	loader *fakeLoader
	inDir  string
}

func newServiceHarness(t *testing.T, start bool) *serviceHarness {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	h := &serviceHarness{store: st, loader: &fakeLoader{}, inDir: t.TempDir()}
	mgr := manager.NewWithConfig(manager.ManagerConfig{Loader: h.loader, Logger: zerolog.Nop()})
	t.Cleanup(func() { _ = mgr.Close() })
	ctrl := NewController(ControllerConfig{
		Slots:     mgr,
		Tokens:    staticToken("hf_test"),
		Sink:      st,
		Device:    model.DeviceCPU,
		OutputDir: filepath.Join(t.TempDir(), "out"),
		Logger:    zerolog.Nop(),
	})
	h.svc = NewService(ServiceConfig{Store: st, Executor: ctrl, Slots: mgr, Logger: zerolog.Nop()})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.svc.Stop(ctx)
	})
	if start {
		require.NoError(t, h.svc.Start(context.Background()))
	}
	return h
}

func (h *serviceHarness) waitSettled(t *testing.T, id string) store.Record {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := h.store.Get(context.Background(), id)
		require.NoError(t, err)
		if rec.Terminal() {
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s did not settle", id)
	return store.Record{}
}

func TestService_SubmitToCompletion(t *testing.T) {
	h := newServiceHarness(t, true)
	ctx := context.Background()
	in := writeTone(t, h.inDir, 30)

	require.NoError(t, h.svc.Submit(ctx, Job{ID: "t1", InputPath: in, Description: "tone", ModelSize: "small"}))
	rec := h.waitSettled(t, "t1")
	require.Equal(t, store.StatusCompleted, rec.State, "msg=%s", rec.Message)

	st, err := h.svc.Status(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, st.Status)
	assert.Equal(t, 100, st.Progress)
	assert.Equal(t, "Complete!", st.Message)

	res, err := h.svc.Result(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Chunks)
	assert.Equal(t, "small", res.ModelSize)
	assert.FileExists(t, res.GhostPath)

	recent, err := h.svc.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "t1", recent[0].TaskID)

	assert.ErrorIs(t, h.svc.Cancel(ctx, "t1"), ErrAlreadySettled)
	assert.ErrorIs(t, h.svc.Cancel(ctx, "nope"), store.ErrNotFound)

	assert.True(t, h.svc.Ready())
	slot := h.svc.SlotStatus()
	assert.Equal(t, 0, slot.QueueLen)
	assert.Empty(t, slot.RunningJob)

	n, err := h.svc.Purge(ctx, -time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	for _, p := range res.Paths() {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), p)
	}
	_, err = h.svc.Status(ctx, "t1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_SubmitRejectsInvalid(t *testing.T) {
	h := newServiceHarness(t, true)
	err := h.svc.Submit(context.Background(), Job{ID: "bad", InputPath: "x.wav", Description: ""})
	assert.True(t, failure.IsInput(err))
	_, err = h.store.Get(context.Background(), "bad")
	assert.ErrorIs(t, err, store.ErrNotFound, "invalid jobs leave no record")
}

func TestService_SubmitBatchRejectsInvalidBeforeRecording(t *testing.T) {
	h := newServiceHarness(t, false)
	ctx := context.Background()
	batch := []Job{
		{ID: "b-0", InputPath: "mix.wav", Description: "vocals"},
		{ID: "b-1", InputPath: "mix.wav", Description: "  "},
		{ID: "b-2", InputPath: "mix.wav", Description: "bass"},
	}
	err := h.svc.SubmitBatch(ctx, batch)
	assert.True(t, failure.IsInput(err))
	assert.Equal(t, 0, h.svc.SlotStatus().QueueLen)
	for _, j := range batch {
		_, err := h.store.Get(ctx, j.ID)
		assert.ErrorIs(t, err, store.ErrNotFound, j.ID)
	}
}

func TestService_SubmitBatchQueueFull(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	svc := NewService(ServiceConfig{Store: st, Executor: newGateExec(), QueueDepth: 2, Logger: zerolog.Nop()})
	ctx := context.Background()

	batch := []Job{
		{ID: "b-0", InputPath: "mix.wav", Description: "vocals"},
		{ID: "b-1", InputPath: "mix.wav", Description: "drums"},
		{ID: "b-2", InputPath: "mix.wav", Description: "bass"},
	}
	assert.ErrorIs(t, svc.SubmitBatch(ctx, batch), ErrQueueFull)
	assert.Equal(t, 0, svc.SlotStatus().QueueLen)
	for _, j := range batch {
		rec, err := st.Get(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, store.StatusFailed, rec.State, j.ID)
	}

	require.NoError(t, svc.SubmitBatch(ctx, []Job{
		{ID: "c-0", InputPath: "mix.wav", Description: "vocals"},
		{ID: "c-1", InputPath: "mix.wav", Description: "drums"},
	}))
	assert.Equal(t, 2, svc.SlotStatus().QueueLen)
	rec, err := st.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "mix.wav", rec.InputPath)
	assert.Equal(t, "drums", rec.Description)
}

func TestService_PurgeRemovesUploadOnceUnused(t *testing.T) {
	h := newServiceHarness(t, false)
	ctx := context.Background()
	upload := filepath.Join(h.inDir, "mix.wav")
	require.NoError(t, os.WriteFile(upload, []byte("RIFF"), 0o644))

	require.NoError(t, h.store.Create(ctx, store.Record{ID: "b-0", InputPath: upload}))
	require.NoError(t, h.store.Create(ctx, store.Record{ID: "b-1", InputPath: upload}))
	_, err := h.store.Cancel(ctx, "b-0")
	require.NoError(t, err)

	n, err := h.svc.Purge(ctx, -time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.FileExists(t, upload, "b-1 still reads the upload")

	_, err = h.store.Cancel(ctx, "b-1")
	require.NoError(t, err)
	n, err = h.svc.Purge(ctx, -time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, upload)
}

func TestService_FailedJobIsRecorded(t *testing.T) {
	h := newServiceHarness(t, true)
	h.loader.err = assertErr("403 gated repo")

	require.NoError(t, h.svc.Submit(context.Background(), Job{ID: "t2", InputPath: writeTone(t, h.inDir, 5), Description: "tone"}))
	rec := h.waitSettled(t, "t2")
	assert.Equal(t, store.StatusFailed, rec.State)
	assert.Equal(t, string(failure.KindResourceLoad), rec.ErrorKind)
	assert.Equal(t, 10, rec.Percent, "failure keeps the last reported percent")
	assert.Contains(t, rec.TaskStatus().Message, "403 gated repo")
}

func TestService_CancelQueued(t *testing.T) {
	h := newServiceHarness(t, false)
	ctx := context.Background()
	require.NoError(t, h.svc.Submit(ctx, Job{ID: "q", InputPath: "in.wav", Description: "x"}))
	assert.Equal(t, 1, h.svc.SlotStatus().QueueLen)

	require.NoError(t, h.svc.Cancel(ctx, "q"))
	rec, err := h.store.Get(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCancelled, rec.State)
}

func TestService_StartFailsInterrupted(t *testing.T) {
	h := newServiceHarness(t, false)
	ctx := context.Background()
	require.NoError(t, h.store.Create(ctx, store.Record{ID: "old"}))
	require.NoError(t, h.store.Update(ctx, "old", "separating", 46, "Processing chunk 2/3..."))

	require.NoError(t, h.svc.Start(ctx))
	rec, err := h.store.Get(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, rec.State)
	assert.Equal(t, "interrupted by server restart", rec.TaskStatus().Message)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
