package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/oulianov/audioghost-ai/internal/failure"
)

type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	res := commandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		return res, err
	}
	return res, nil
}

// Decoder loads arbitrary audio or video files as mono waveforms at a fixed
// sample rate. PCM WAV already at the target rate is read directly; every
// other input goes through ffmpeg.
type Decoder struct {
	FFmpegBin  string
	SampleRate int
	// TempDir holds intermediate ffmpeg output; empty means os.TempDir.
	TempDir string
	runner  commandRunner
}

// NewDecoder returns a decoder that resamples to sampleRate.
func NewDecoder(ffmpegBin string, sampleRate int) *Decoder {
	if strings.TrimSpace(ffmpegBin) == "" {
		ffmpegBin = "ffmpeg"
	}
	return &Decoder{FFmpegBin: ffmpegBin, SampleRate: sampleRate, runner: execRunner{}}
}

// Decode reads path into a mono waveform at d.SampleRate. Unreadable or
// empty input returns a failure.Input error.
func (d *Decoder) Decode(ctx context.Context, path string) (Waveform, error) {
	if _, err := os.Stat(path); err != nil {
		return Waveform{}, failure.Input(path, "input not readable", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		w, err := ReadWAV(path, d.SampleRate)
		if err == nil {
			return checkNonEmpty(path, w)
		}
	}
	return d.decodeFFmpeg(ctx, path)
}

func (d *Decoder) decodeFFmpeg(ctx context.Context, path string) (Waveform, error) {
	tmp, err := os.MkdirTemp(d.TempDir, "ghostd-decode-*")
	if err != nil {
		return Waveform{}, fmt.Errorf("decode temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)
	out := filepath.Join(tmp, "decoded.wav")
	args := []string{
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-i", path,
		"-vn", "-ac", "1",
		"-ar", strconv.Itoa(d.SampleRate),
		"-c:a", "pcm_s16le",
		out,
	}
	runner := d.runner
	if runner == nil {
		runner = execRunner{}
	}
	res, err := runner.Run(ctx, d.FFmpegBin, args...)
	if err != nil {
		if ctx.Err() != nil {
			return Waveform{}, ctx.Err()
		}
		return Waveform{}, failure.Input(path, "ffmpeg decode failed: "+tail(res.Stderr, 512), err)
	}
	w, err := ReadWAV(out, d.SampleRate)
	if err != nil {
		return Waveform{}, failure.Input(path, "decoded audio unreadable", err)
	}
	return checkNonEmpty(path, w)
}

func checkNonEmpty(path string, w Waveform) (Waveform, error) {
	if len(w.Samples) == 0 {
		return Waveform{}, failure.Input(path, "no audio samples", nil)
	}
	return w, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}
