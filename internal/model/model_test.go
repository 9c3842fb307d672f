package model_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oulianov/audioghost-ai/internal/model"
	"github.com/oulianov/audioghost-ai/internal/model/modeltest"
)

func TestLiteModelForcesAudioOnlyOptions(t *testing.T) {
	fake := modeltest.New()
	m := model.NewLite(fake, model.Info{SampleRate: 16000, VisionDim: 8, FeatureHop: 100})

	b := model.Batch{Audios: [][]float32{make([]float32, 250)}, Descriptions: []string{"dog"}}
	_, err := m.Separate(context.Background(), b, model.SeparateOptions{PredictSpans: true, RerankingCandidates: 8})
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.False(t, calls[0].Opts.PredictSpans)
	assert.Equal(t, 1, calls[0].Opts.RerankingCandidates)
	require.NotNil(t, calls[0].Batch.Video)
	assert.Equal(t, model.ZeroVideoFeatures{Batch: 1, Dim: 8, Frames: 3}, *calls[0].Batch.Video)
}

func TestLiteComponentsExcludeVisionAndRankers(t *testing.T) {
	lite := model.NewLite(modeltest.New(), model.Info{})
	full := model.NewFull(modeltest.New(), model.Info{})

	assert.Equal(t, model.VariantLite, lite.Variant())
	assert.ElementsMatch(t, []model.Component{
		model.ComponentAudioEncoder, model.ComponentTextEncoder, model.ComponentSeparator,
	}, lite.Components())
	assert.Len(t, full.Components(), 8)
	assert.NotContains(t, lite.Components(), model.ComponentVisionEncoder)
	assert.Equal(t, model.DefaultVisionDim, lite.Info().VisionDim)
}

func TestFullModelPassesOptionsThrough(t *testing.T) {
	fake := modeltest.New()
	m := model.NewFull(fake, model.Info{})
	_, err := m.Separate(context.Background(), model.Batch{Audios: [][]float32{{0.1}}}, model.SeparateOptions{PredictSpans: true, RerankingCandidates: 4})
	require.NoError(t, err)
	assert.True(t, fake.Calls()[0].Opts.PredictSpans)
	assert.Nil(t, fake.Calls()[0].Batch.Video)
}

func TestSeparateRejectsEmptyBatch(t *testing.T) {
	_, err := model.NewLite(modeltest.New(), model.Info{}).Separate(context.Background(), model.Batch{}, model.SeparateOptions{})
	assert.ErrorIs(t, err, model.ErrEmptyBatch)
}

func TestProcessorPrepare(t *testing.T) {
	p := model.NewProcessor(model.Info{SampleRate: 44100})
	samples := []float32{0.1, 0.2}
	b, err := p.Prepare(samples, "  dog barking ", []model.Anchor{{Sign: "+", Start: 0, End: 1}})
	require.NoError(t, err)
	assert.Equal(t, 44100, b.SampleRate)
	assert.Equal(t, []string{"dog barking"}, b.Descriptions)
	require.Len(t, b.Anchors, 1)
	assert.Equal(t, "+", b.Anchors[0][0].Sign)

	_, err = p.Prepare(samples, " ", nil)
	assert.Error(t, err)
	_, err = p.Prepare(nil, "dog", nil)
	assert.ErrorIs(t, err, model.ErrEmptyBatch)
}

func TestPrecisionDefaults(t *testing.T) {
	assert.Equal(t, model.PrecisionBF16, model.DefaultPrecision(model.DeviceCUDA))
	assert.Equal(t, model.PrecisionFP32, model.DefaultPrecision(model.DeviceCPU))

	p, err := model.ParsePrecision("", model.DeviceCPU)
	require.NoError(t, err)
	assert.Equal(t, model.PrecisionFP32, p)
	p, err = model.ParsePrecision("BF16", model.DeviceCPU)
	require.NoError(t, err)
	assert.Equal(t, model.PrecisionBF16, p)
	_, err = model.ParsePrecision("fp8", model.DeviceCPU)
	assert.Error(t, err)
}

func TestParseDevice(t *testing.T) {
	d, err := model.ParseDevice("cuda")
	require.NoError(t, err)
	assert.True(t, d.Accelerated())
	d, err = model.ParseDevice("CPU")
	require.NoError(t, err)
	assert.False(t, d.Accelerated())
	_, err = model.ParseDevice("tpu")
	assert.Error(t, err)
}

func TestDetectDeviceHonoursHiddenGPUs(t *testing.T) {
	t.Setenv("CUDA_VISIBLE_DEVICES", "-1")
	assert.Equal(t, model.DeviceCPU, model.DetectDevice())
}

func TestDetectDeviceFindsNvidiaNode(t *testing.T) {
	dev := filepath.Join(t.TempDir(), "nvidia0")
	require.NoError(t, os.WriteFile(dev, nil, 0o644))
	restore := model.SetNvidiaDevicePathForTest(dev)
	defer restore()
	t.Setenv("CUDA_VISIBLE_DEVICES", "0")
	assert.Equal(t, model.DeviceCUDA, model.DetectDevice())
}
