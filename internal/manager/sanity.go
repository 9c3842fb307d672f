package manager

import (
	"os/exec"
	"strings"
)

// SanityReport describes runtime checks for external dependencies.
type SanityReport struct {
	RuntimeFound bool   `json:"runtime_found"`
	RuntimePath  string `json:"runtime_path,omitempty"`
	FFmpegFound  bool   `json:"ffmpeg_found"`
	FFmpegPath   string `json:"ffmpeg_path,omitempty"`
	Error        string `json:"error,omitempty"`
}

// OK reports whether every required binary was found.
func (r SanityReport) OK() bool { return r.RuntimeFound && r.FFmpegFound }

// SanityCheck resolves the runtime and ffmpeg binaries on PATH. An empty
// runtimeBin is reported as found, for remote runtimes.
// It does not mutate state and is safe to call at any time.
func SanityCheck(runtimeBin, ffmpegBin string) SanityReport {
	var r SanityReport
	var errs []string
	if strings.TrimSpace(runtimeBin) == "" {
		r.RuntimeFound = true
	} else if p, err := exec.LookPath(runtimeBin); err == nil {
		r.RuntimeFound, r.RuntimePath = true, p
	} else {
		r.RuntimePath = runtimeBin
		errs = append(errs, "runtime: "+err.Error())
	}
	if strings.TrimSpace(ffmpegBin) == "" {
		ffmpegBin = "ffmpeg"
	}
	if p, err := exec.LookPath(ffmpegBin); err == nil {
		r.FFmpegFound, r.FFmpegPath = true, p
	} else {
		r.FFmpegPath = ffmpegBin
		errs = append(errs, "ffmpeg: "+err.Error())
	}
	r.Error = strings.Join(errs, "; ")
	return r
}
