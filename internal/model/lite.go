package model

import "context"

var (
	liteComponents = []Component{
		ComponentAudioEncoder,
		ComponentTextEncoder,
		ComponentSeparator,
	}
	fullComponents = append(append([]Component(nil), liteComponents...),
		ComponentVisionEncoder,
		ComponentVisualRanker,
		ComponentTextRanker,
		ComponentSpanPredictor,
		ComponentSpanPredictorTransform,
	)
)

// FullModel passes calls through to a runtime loaded with every component.
type FullModel struct {
	backend Backend
	info    Info
}

// NewFull wraps a runtime that loaded the full component set.
func NewFull(b Backend, info Info) *FullModel {
	return &FullModel{backend: b, info: info.WithDefaults()}
}

func (m *FullModel) Separate(ctx context.Context, b Batch, opts SeparateOptions) (Separation, error) {
	if len(b.Audios) == 0 {
		return Separation{}, ErrEmptyBatch
	}
	return m.backend.Separate(ctx, b, opts)
}

func (m *FullModel) ReleaseCache(ctx context.Context) error { return m.backend.ReleaseCache(ctx) }
func (m *FullModel) Close() error                           { return m.backend.Close() }
func (m *FullModel) Variant() Variant                       { return VariantFull }
func (m *FullModel) Info() Info                             { return m.info }

func (m *FullModel) Components() []Component {
	return append([]Component(nil), fullComponents...)
}

// LiteModel is the audio-only variant. It never carries the vision encoder,
// the rankers or the span predictor, so every call runs with span prediction
// off, a single reranking candidate and zero video features.
type LiteModel struct {
	backend Backend
	info    Info
}

// NewLite wraps a runtime that loaded only the lite component set.
func NewLite(b Backend, info Info) *LiteModel {
	return &LiteModel{backend: b, info: info.WithDefaults()}
}

func (m *LiteModel) Separate(ctx context.Context, b Batch, opts SeparateOptions) (Separation, error) {
	if len(b.Audios) == 0 {
		return Separation{}, ErrEmptyBatch
	}
	opts.PredictSpans = false
	opts.RerankingCandidates = 1
	b.Video = m.zeroVideo(b)
	return m.backend.Separate(ctx, b, opts)
}

// zeroVideo sizes the placeholder features to the longest item in the batch.
func (m *LiteModel) zeroVideo(b Batch) *ZeroVideoFeatures {
	longest := 0
	for _, a := range b.Audios {
		if len(a) > longest {
			longest = len(a)
		}
	}
	frames := (longest + m.info.FeatureHop - 1) / m.info.FeatureHop
	if frames < 1 {
		frames = 1
	}
	return &ZeroVideoFeatures{Batch: len(b.Audios), Dim: m.info.VisionDim, Frames: frames}
}

func (m *LiteModel) ReleaseCache(ctx context.Context) error { return m.backend.ReleaseCache(ctx) }
func (m *LiteModel) Close() error                           { return m.backend.Close() }
func (m *LiteModel) Variant() Variant                       { return VariantLite }
func (m *LiteModel) Info() Info                             { return m.info }

func (m *LiteModel) Components() []Component {
	return append([]Component(nil), liteComponents...)
}
