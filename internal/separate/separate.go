// Package separate runs one chunk through the loaded model.
package separate

import (
	"context"
	"errors"
	"fmt"

	"github.com/oulianov/audioghost-ai/internal/chunk"
	"github.com/oulianov/audioghost-ai/internal/failure"
	"github.com/oulianov/audioghost-ai/internal/model"
)

// Request carries the per-job inputs shared by every chunk.
type Request struct {
	Description string
	// Mode is recorded for the result only; extract and remove produce the
	// same target and residual.
	Mode string
	// Anchors are positive spans in seconds relative to the whole input.
	Anchors []model.Anchor
	Device  model.Device
}

// PartialResult is the host-side output for one chunk. Target and Residual
// always have exactly the chunk's length.
type PartialResult struct {
	ChunkIndex int
	Start      int
	Target     []float32
	Residual   []float32
}

// Run separates a single chunk. The model's device cache is released after
// every call whether or not it succeeded.
func Run(ctx context.Context, sep model.Separator, proc *model.Processor, c chunk.Chunk, req Request) (PartialResult, error) {
	if err := ctx.Err(); err != nil {
		return PartialResult{}, err
	}
	batch, err := proc.Prepare(c.Samples, req.Description, LocalAnchors(req.Anchors, c, proc.SampleRate))
	if err != nil {
		return PartialResult{}, failure.New(failure.KindInternal, fmt.Sprintf("prepare chunk %d", c.Index), err)
	}
	opts := model.SeparateOptions{
		InferenceOnly: true,
		Autocast:      req.Device.Accelerated(),
	}
	defer func() { _ = sep.ReleaseCache(context.WithoutCancel(ctx)) }()
	out, err := sep.Separate(ctx, batch, opts)
	if err != nil {
		return PartialResult{}, classify(ctx, c.Index, err)
	}
	if len(out.Target) == 0 || len(out.Residual) == 0 {
		return PartialResult{}, failure.New(failure.KindInternal, fmt.Sprintf("chunk %d: runtime returned no output", c.Index), nil)
	}
	res := PartialResult{
		ChunkIndex: c.Index,
		Start:      c.Start,
		Target:     fit(out.Target[0], c.Len()),
		Residual:   fit(out.Residual[0], c.Len()),
	}
	return res, nil
}

func classify(ctx context.Context, index int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}
	if errors.Is(err, model.ErrOutOfMemory) {
		return failure.DeviceMemory(err)
	}
	return failure.New(failure.KindInternal, fmt.Sprintf("separate chunk %d", index), err)
}

// fit trims or zero-pads s to n samples. Runtimes may pad to a frame
// multiple.
func fit(s []float32, n int) []float32 {
	if len(s) == n {
		return s
	}
	out := make([]float32, n)
	copy(out, s)
	return out
}

// LocalAnchors clips anchors to the chunk window and rebases them to the
// chunk start. Anchors that do not overlap the chunk are dropped.
func LocalAnchors(anchors []model.Anchor, c chunk.Chunk, sampleRate int) []model.Anchor {
	if len(anchors) == 0 || sampleRate <= 0 {
		return nil
	}
	start := float64(c.Start) / float64(sampleRate)
	end := float64(c.End) / float64(sampleRate)
	var out []model.Anchor
	for _, a := range anchors {
		s, e := a.Start, a.End
		if e <= start || s >= end {
			continue
		}
		if s < start {
			s = start
		}
		if e > end {
			e = end
		}
		sign := a.Sign
		if sign == "" {
			sign = "+"
		}
		out = append(out, model.Anchor{Sign: sign, Start: s - start, End: e - start})
	}
	return out
}
