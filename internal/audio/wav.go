package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// errNotNative means the file is a valid WAV that still needs ffmpeg
// (compressed format or a different sample rate).
var errNotNative = errors.New("wav needs conversion")

// WriteWAV writes mono samples as integer PCM. Samples are clamped to
// [-1, 1]. Supported bit depths are 16, 24 and 32.
func WriteWAV(path string, samples []float32, sampleRate, bitDepth int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	scale := float64(int64(1)<<(bitDepth-1) - 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		v := float64(s)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		data[i] = int(math.Round(v * scale))
	}
	enc := wav.NewEncoder(f, sampleRate, bitDepth, 1, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadWAV reads a PCM WAV file and mixes it down to mono. When wantRate is
// positive and differs from the file's rate, errNotNative is returned.
func ReadWAV(path string, wantRate int) (Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return Waveform{}, err
	}
	defer f.Close()
	return readWAV(f, wantRate)
}

func readWAV(r io.ReadSeeker, wantRate int) (Waveform, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return Waveform{}, fmt.Errorf("not a valid wav file")
	}
	if d.WavAudioFormat != wavFormatPCM {
		return Waveform{}, errNotNative
	}
	rate := int(d.SampleRate)
	if wantRate > 0 && rate != wantRate {
		return Waveform{}, errNotNative
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("read pcm: %w", err)
	}
	chans := int(d.NumChans)
	if chans <= 0 {
		chans = 1
	}
	depth := int(d.BitDepth)
	if depth <= 0 {
		depth = buf.SourceBitDepth
	}
	return Waveform{Samples: mixdown(buf.Data, chans, depth), SampleRate: rate}, nil
}

// mixdown averages interleaved channels and normalizes integer PCM to
// [-1, 1]. 8-bit WAV is unsigned.
func mixdown(data []int, chans, depth int) []float32 {
	frames := len(data) / chans
	out := make([]float32, frames)
	unsigned := depth == 8
	scale := float64(int64(1) << (depth - 1))
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < chans; c++ {
			v := float64(data[i*chans+c])
			if unsigned {
				v -= 128
			}
			sum += v / scale
		}
		out[i] = float32(sum / float64(chans))
	}
	return out
}
