// Package audio decodes input media into mono float waveforms at the model's
// native rate and writes waveforms back out as PCM WAV files.
package audio

import (
	"path/filepath"
	"strings"
	"time"
)

// Waveform is mono float PCM in [-1, 1].
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Seconds returns the waveform length in seconds.
func (w Waveform) Seconds() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Duration returns the waveform length as a time.Duration.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(len(w.Samples)) * int64(time.Second) / int64(w.SampleRate))
}

var videoExts = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".avi":  true,
	".m4v":  true,
}

// IsVideo reports whether path names a video container by extension.
func IsVideo(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}
