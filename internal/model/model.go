// Package model defines the contract of the separation model runtime and the
// two model variants built on top of it.
//
// A Backend is the opaque runtime callable (a sidecar process in production,
// a fake in tests). FullModel exposes every component of the checkpoint;
// LiteModel is the audio-only variant the service runs: its vision and
// ranking components are never loaded and the video path is fed zero
// features of the expected shape.
package model

import (
	"context"
	"errors"
)

// Component names a sub-network of the separation model.
type Component string

const (
	ComponentAudioEncoder           Component = "audio_encoder"
	ComponentTextEncoder            Component = "text_encoder"
	ComponentSeparator              Component = "separator"
	ComponentVisionEncoder          Component = "vision_encoder"
	ComponentVisualRanker           Component = "visual_ranker"
	ComponentTextRanker             Component = "text_ranker"
	ComponentSpanPredictor          Component = "span_predictor"
	ComponentSpanPredictorTransform Component = "span_predictor_transform"
)

// Variant tags which component set a model carries.
type Variant string

const (
	VariantFull Variant = "full"
	VariantLite Variant = "lite"
)

// Default runtime geometry used when the runtime does not report its own.
const (
	DefaultSampleRate = 48000
	DefaultVisionDim  = 1024
	DefaultFeatureHop = 1920
)

// Anchor marks a time span (seconds, relative to the batch audio) that
// contains the described sound. Sign is "+" for a positive anchor.
type Anchor struct {
	Sign  string  `json:"sign"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// ZeroVideoFeatures stands in for the vision encoder output. The runtime
// materializes a zero tensor of shape (Batch, Dim, Frames).
type ZeroVideoFeatures struct {
	Batch  int `json:"batch"`
	Dim    int `json:"dim"`
	Frames int `json:"frames"`
}

// Batch is a prepared model input.
type Batch struct {
	Audios       [][]float32
	Descriptions []string
	// Anchors holds one anchor list per batch item. Nil means no anchors.
	Anchors    [][]Anchor
	SampleRate int
	Video      *ZeroVideoFeatures
}

// SeparateOptions are the runtime flags of one separation call.
type SeparateOptions struct {
	PredictSpans        bool `json:"predict_spans"`
	RerankingCandidates int  `json:"reranking_candidates"`
	// Autocast runs the forward pass under mixed precision.
	Autocast bool `json:"autocast"`
	// InferenceOnly disables gradient tracking.
	InferenceOnly bool `json:"inference_only"`
}

// Separation is the host-side output of one call, one row per batch item.
type Separation struct {
	Target   [][]float32
	Residual [][]float32
}

// Info describes the loaded runtime.
type Info struct {
	SampleRate int
	VisionDim  int
	// FeatureHop is the number of audio samples per encoder frame.
	FeatureHop int
}

// WithDefaults fills unset fields.
func (i Info) WithDefaults() Info {
	if i.SampleRate <= 0 {
		i.SampleRate = DefaultSampleRate
	}
	if i.VisionDim <= 0 {
		i.VisionDim = DefaultVisionDim
	}
	if i.FeatureHop <= 0 {
		i.FeatureHop = DefaultFeatureHop
	}
	return i
}

// Backend is the separation runtime. Close releases all device memory held
// by the runtime.
type Backend interface {
	Separate(ctx context.Context, b Batch, opts SeparateOptions) (Separation, error)
	ReleaseCache(ctx context.Context) error
	Close() error
}

// Separator is a loaded model variant.
type Separator interface {
	Backend
	Variant() Variant
	Components() []Component
	Info() Info
}

var (
	// ErrEmptyBatch is returned when a batch carries no audio.
	ErrEmptyBatch = errors.New("empty batch")
	// ErrOutOfMemory is wrapped by backends when the device ran out of memory.
	ErrOutOfMemory = errors.New("device out of memory")
)
