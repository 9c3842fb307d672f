// Package chunk splits a waveform into fixed-length segments for inference.
package chunk

import (
	"errors"
	"time"
)

// DefaultDuration is the segment length used when none is configured.
const DefaultDuration = 25 * time.Second

// MinDuration is the shortest trailing segment worth separating. Shorter
// tails are dropped from the output when the input is chunked.
const MinDuration = time.Second

var (
	ErrEmpty           = errors.New("chunk: empty waveform")
	ErrSampleRate      = errors.New("chunk: sample rate must be positive")
	ErrDuration        = errors.New("chunk: chunk duration must be positive")
	ErrSegmentTooSmall = errors.New("chunk: chunk duration shorter than one sample")
)

// Chunk is a contiguous window [Start, End) of the source waveform.
// Samples aliases the source slice.
type Chunk struct {
	Index   int
	Start   int
	End     int
	Samples []float32
}

// Len returns the chunk length in samples.
func (c Chunk) Len() int { return c.End - c.Start }

// Plan is the ordered set of chunks for one waveform.
type Plan struct {
	Chunks []Chunk
	// Discarded holds segments shorter than MinDuration that are skipped.
	Discarded []Chunk
	// Chunked is false when the whole waveform fits in a single chunk.
	Chunked        bool
	SampleRate     int
	SegmentSamples int
}

// Kept returns the total number of samples that will be separated.
func (p Plan) Kept() int {
	n := 0
	for _, c := range p.Chunks {
		n += c.Len()
	}
	return n
}

// Total returns kept plus discarded samples. It always equals the
// waveform length.
func (p Plan) Total() int {
	n := p.Kept()
	for _, c := range p.Discarded {
		n += c.Len()
	}
	return n
}

// NewPlan splits samples into segments of chunkDuration. A waveform no longer
// than one segment yields a single chunk regardless of its length. Otherwise
// segments are cut back to back; the trailing one may be shorter and is
// discarded when under MinDuration. Chunk indices are segment ordinals.
func NewPlan(samples []float32, sampleRate int, chunkDuration time.Duration) (Plan, error) {
	if len(samples) == 0 {
		return Plan{}, ErrEmpty
	}
	if sampleRate <= 0 {
		return Plan{}, ErrSampleRate
	}
	if chunkDuration <= 0 {
		return Plan{}, ErrDuration
	}
	seg := int(int64(chunkDuration) * int64(sampleRate) / int64(time.Second))
	if seg <= 0 {
		return Plan{}, ErrSegmentTooSmall
	}
	p := Plan{SampleRate: sampleRate, SegmentSamples: seg}
	if len(samples) <= seg {
		p.Chunks = []Chunk{{Index: 0, Start: 0, End: len(samples), Samples: samples}}
		return p, nil
	}
	p.Chunked = true
	minSamples := int(int64(MinDuration) * int64(sampleRate) / int64(time.Second))
	for i, start := 0, 0; start < len(samples); i, start = i+1, start+seg {
		end := start + seg
		if end > len(samples) {
			end = len(samples)
		}
		c := Chunk{Index: i, Start: start, End: end, Samples: samples[start:end]}
		if c.Len() < minSamples {
			p.Discarded = append(p.Discarded, c)
			continue
		}
		p.Chunks = append(p.Chunks, c)
	}
	return p, nil
}
