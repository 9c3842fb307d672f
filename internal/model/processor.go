package model

import (
	"fmt"
	"strings"
)

// Processor turns raw samples and a text prompt into a model Batch.
type Processor struct {
	SampleRate int
}

// NewProcessor returns a processor for the runtime's native rate.
func NewProcessor(info Info) *Processor {
	return &Processor{SampleRate: info.WithDefaults().SampleRate}
}

// Prepare builds a single-item batch. Samples must already be mono at
// p.SampleRate; the slice is referenced, not copied.
func (p *Processor) Prepare(samples []float32, description string, anchors []Anchor) (Batch, error) {
	if len(samples) == 0 {
		return Batch{}, ErrEmptyBatch
	}
	desc := strings.TrimSpace(description)
	if desc == "" {
		return Batch{}, fmt.Errorf("description is required")
	}
	b := Batch{
		Audios:       [][]float32{samples},
		Descriptions: []string{desc},
		SampleRate:   p.SampleRate,
	}
	if len(anchors) > 0 {
		b.Anchors = [][]Anchor{append([]Anchor(nil), anchors...)}
	}
	return b, nil
}
