package jobs

import (
	"fmt"
	"strings"
	"time"

	"github.com/oulianov/audioghost-ai/internal/chunk"
	"github.com/oulianov/audioghost-ai/internal/failure"
	"github.com/oulianov/audioghost-ai/internal/model"
	"github.com/oulianov/audioghost-ai/internal/registry"
)

// Mode selects which output the caller is after. Both modes produce the
// same artifacts; the value is recorded in the result.
type Mode string

const (
	ModeExtract Mode = "extract"
	ModeRemove  Mode = "remove"
)

// Chunk duration bounds accepted on submission.
const (
	MinChunkDuration     = 5 * time.Second
	MaxChunkDuration     = 60 * time.Second
	DefaultChunkDuration = chunk.DefaultDuration
)

// Job is an immutable separation request.
type Job struct {
	ID          string
	InputPath   string
	Description string
	Mode        Mode
	// ModelSize is small, base or large; empty means base.
	ModelSize     string
	ChunkDuration time.Duration
	// Precision is empty for the device default.
	Precision model.Precision
	// Anchors are optional spans in seconds where the sound is expected.
	Anchors     []model.Anchor
	SubmittedAt time.Time
}

// Normalize applies defaults and validates the job. Invalid fields are
// reported as input errors.
func (j Job) Normalize() (Job, error) {
	if strings.TrimSpace(j.ID) == "" {
		return j, failure.New(failure.KindInput, "job id is required", nil)
	}
	if strings.TrimSpace(j.InputPath) == "" {
		return j, failure.New(failure.KindInput, "input path is required", nil)
	}
	j.Description = strings.TrimSpace(j.Description)
	if j.Description == "" {
		return j, failure.New(failure.KindInput, "description is required", nil)
	}
	switch Mode(strings.ToLower(string(j.Mode))) {
	case "", ModeExtract:
		j.Mode = ModeExtract
	case ModeRemove:
		j.Mode = ModeRemove
	default:
		return j, failure.New(failure.KindInput, fmt.Sprintf("unknown mode %q", j.Mode), nil)
	}
	size, err := registry.ParseSize(j.ModelSize)
	if err != nil {
		return j, err
	}
	j.ModelSize = size
	if j.ChunkDuration == 0 {
		j.ChunkDuration = DefaultChunkDuration
	}
	if j.ChunkDuration < MinChunkDuration || j.ChunkDuration > MaxChunkDuration {
		return j, failure.New(failure.KindInput, fmt.Sprintf("chunk duration %s outside [%s, %s]", j.ChunkDuration, MinChunkDuration, MaxChunkDuration), nil)
	}
	switch j.Precision {
	case "", model.PrecisionBF16, model.PrecisionFP32:
	default:
		return j, failure.New(failure.KindInput, fmt.Sprintf("unknown precision %q", j.Precision), nil)
	}
	for _, a := range j.Anchors {
		if a.Start < 0 || a.End <= a.Start {
			return j, failure.New(failure.KindInput, fmt.Sprintf("invalid anchor [%g, %g]", a.Start, a.End), nil)
		}
	}
	return j, nil
}

// SpanAnchors turns optional start/end times into a single positive anchor.
// Both must be set for an anchor to be produced.
func SpanAnchors(start, end *float64) ([]model.Anchor, error) {
	if start == nil || end == nil {
		return nil, nil
	}
	if *start < 0 || *end <= *start {
		return nil, failure.New(failure.KindInput, fmt.Sprintf("end_time must be greater than start_time (got %g, %g)", *start, *end), nil)
	}
	return []model.Anchor{{Sign: "+", Start: *start, End: *end}}, nil
}
