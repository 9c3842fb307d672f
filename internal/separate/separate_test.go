package separate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oulianov/audioghost-ai/internal/chunk"
	"github.com/oulianov/audioghost-ai/internal/failure"
	"github.com/oulianov/audioghost-ai/internal/model"
	"github.com/oulianov/audioghost-ai/internal/model/modeltest"
)

func setup(t *testing.T) (*modeltest.Backend, model.Separator, *model.Processor, chunk.Plan) {
	t.Helper()
	fake := modeltest.New()
	info := model.Info{SampleRate: 100}
	samples := make([]float32, 3000)
	for i := range samples {
		samples[i] = 0.8
	}
	p, err := chunk.NewPlan(samples, 100, 10*time.Second)
	require.NoError(t, err)
	return fake, model.NewLite(fake, info), model.NewProcessor(info), p
}

func TestRunProducesChunkSizedHalves(t *testing.T) {
	fake, sep, proc, plan := setup(t)
	res, err := Run(context.Background(), sep, proc, plan.Chunks[1], Request{Description: "dog", Device: model.DeviceCUDA})
	require.NoError(t, err)

	assert.Equal(t, 1, res.ChunkIndex)
	assert.Equal(t, 1000, res.Start)
	require.Len(t, res.Target, 1000)
	require.Len(t, res.Residual, 1000)
	assert.InDelta(t, 0.4, res.Target[0], 1e-6)
	assert.InDelta(t, 0.4, res.Residual[0], 1e-6)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Opts.InferenceOnly)
	assert.True(t, calls[0].Opts.Autocast)
	assert.False(t, calls[0].Opts.PredictSpans)
	assert.Equal(t, 1, fake.Releases())
}

func TestRunNoAutocastOnCPU(t *testing.T) {
	fake, sep, proc, plan := setup(t)
	_, err := Run(context.Background(), sep, proc, plan.Chunks[0], Request{Description: "dog", Device: model.DeviceCPU})
	require.NoError(t, err)
	assert.False(t, fake.Calls()[0].Opts.Autocast)
}

func TestRunMapsOutOfMemory(t *testing.T) {
	fake, sep, proc, plan := setup(t)
	fake.Err = fmt.Errorf("runtime: %w", model.ErrOutOfMemory)
	_, err := Run(context.Background(), sep, proc, plan.Chunks[0], Request{Description: "dog"})
	require.Error(t, err)
	assert.True(t, failure.IsDeviceMemory(err))
	assert.Equal(t, 1, fake.Releases(), "cache released on failure too")
}

func TestRunOtherErrorsAreInternal(t *testing.T) {
	fake, sep, proc, plan := setup(t)
	fake.Err = errors.New("shape mismatch")
	_, err := Run(context.Background(), sep, proc, plan.Chunks[0], Request{Description: "dog"})
	assert.Equal(t, failure.KindInternal, failure.KindOf(err))
}

func TestRunHonoursCancellation(t *testing.T) {
	fake, sep, proc, plan := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, sep, proc, plan.Chunks[0], Request{Description: "dog"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.Calls())
}

func TestLocalAnchors(t *testing.T) {
	c := chunk.Chunk{Index: 1, Start: 1000, End: 2000}
	anchors := []model.Anchor{
		{Start: 2, End: 4},
		{Sign: "+", Start: 9, End: 12},
		{Start: 15, End: 25},
		{Start: 20, End: 21},
	}
	got := LocalAnchors(anchors, c, 100)
	require.Len(t, got, 2)
	assert.Equal(t, model.Anchor{Sign: "+", Start: 0, End: 2}, got[0])
	assert.Equal(t, model.Anchor{Sign: "+", Start: 5, End: 10}, got[1])
	assert.Nil(t, LocalAnchors(nil, c, 100))
}

func TestFitPadsAndTrims(t *testing.T) {
	assert.Equal(t, []float32{1, 2, 0}, fit([]float32{1, 2}, 3))
	assert.Equal(t, []float32{1}, fit([]float32{1, 2}, 1))
}
