// Package assemble stitches per-chunk separations back together and writes
// the job's output artifacts.
//
// Artifacts are first written under temporary names in the output
// directory and only renamed into place once every write succeeded. A failed
// job therefore never leaves a ghost track without its clean counterpart.
package assemble

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oulianov/audioghost-ai/internal/audio"
	"github.com/oulianov/audioghost-ai/internal/common/fsutil"
	"github.com/oulianov/audioghost-ai/internal/failure"
	"github.com/oulianov/audioghost-ai/internal/separate"
	"github.com/oulianov/audioghost-ai/pkg/types"
)

// DefaultBitDepth is the PCM depth of written artifacts.
const DefaultBitDepth = 16

// Request describes where and how to write a job's results.
type Request struct {
	JobID     string
	OutputDir string
	// InputPath is copied next to the results when it is a video container.
	InputPath   string
	Description string
	Mode        string
	ModelSize   string
	SampleRate  int
	BitDepth    int
	StartedAt   time.Time
}

// ArtifactPath returns the final path of one artifact kind
// (original, ghost or clean).
func ArtifactPath(outputDir, jobID, kind string) string {
	return filepath.Join(outputDir, jobID+"."+kind+".wav")
}

// VideoPath returns the path the source video is copied to.
func VideoPath(outputDir, jobID, inputPath string) string {
	return filepath.Join(outputDir, jobID+".video"+strings.ToLower(filepath.Ext(inputPath)))
}

type artifact struct {
	final string
	tmp   string
	write func(path string) error
}

// Assemble orders parts by chunk index, concatenates targets and residuals
// and writes original, ghost and clean WAV files. Any write failure removes
// every file written so far and returns a failure.PartialWrite error.
func Assemble(parts []separate.PartialResult, original audio.Waveform, req Request) (types.JobResult, error) {
	if len(parts) == 0 {
		return types.JobResult{}, failure.New(failure.KindInternal, "no separated chunks to assemble", nil)
	}
	if req.SampleRate <= 0 {
		req.SampleRate = original.SampleRate
	}
	if req.BitDepth == 0 {
		req.BitDepth = DefaultBitDepth
	}
	if err := fsutil.EnsureDir(req.OutputDir); err != nil {
		return types.JobResult{}, failure.PartialWrite(req.OutputDir, err)
	}

	ghost, clean := Concat(parts)

	res := types.JobResult{
		OriginalPath:  ArtifactPath(req.OutputDir, req.JobID, "original"),
		GhostPath:     ArtifactPath(req.OutputDir, req.JobID, "ghost"),
		CleanPath:     ArtifactPath(req.OutputDir, req.JobID, "clean"),
		Description:   req.Description,
		Mode:          req.Mode,
		AudioDuration: round2(original.Seconds()),
		ModelSize:     req.ModelSize,
		SampleRate:    req.SampleRate,
		Chunks:        len(parts),
	}
	wavWriter := func(samples []float32) func(string) error {
		return func(p string) error { return audio.WriteWAV(p, samples, req.SampleRate, req.BitDepth) }
	}
	arts := []*artifact{
		{final: res.OriginalPath, write: wavWriter(original.Samples)},
		{final: res.GhostPath, write: wavWriter(ghost)},
		{final: res.CleanPath, write: wavWriter(clean)},
	}
	if req.InputPath != "" && audio.IsVideo(req.InputPath) {
		res.VideoPath = VideoPath(req.OutputDir, req.JobID, req.InputPath)
		src := req.InputPath
		arts = append(arts, &artifact{final: res.VideoPath, write: func(p string) error { return fsutil.CopyFile(src, p) }})
	}

	for _, a := range arts {
		a.tmp = tempName(a.final)
		if err := a.write(a.tmp); err != nil {
			cleanup(arts, 0)
			return types.JobResult{}, failure.PartialWrite(a.final, err)
		}
	}
	for i, a := range arts {
		if err := os.Rename(a.tmp, a.final); err != nil {
			cleanup(arts, i)
			return types.JobResult{}, failure.PartialWrite(a.final, err)
		}
	}
	if !req.StartedAt.IsZero() {
		res.ProcessingTime = round2(time.Since(req.StartedAt).Seconds())
	}
	return res, nil
}

// cleanup removes every temp file and the first renamed finals.
func cleanup(arts []*artifact, renamed int) {
	for i, a := range arts {
		if a.tmp != "" {
			_ = os.Remove(a.tmp)
		}
		if i < renamed {
			_ = os.Remove(a.final)
		}
	}
}

func tempName(final string) string {
	return filepath.Join(filepath.Dir(final), fmt.Sprintf(".%s.%d.partial", filepath.Base(final), time.Now().UnixNano()))
}

// Concat joins target and residual tracks in chunk order and clamps the
// result to [-1, 1].
func Concat(parts []separate.PartialResult) (target, residual []float32) {
	sorted := append([]separate.PartialResult(nil), parts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ChunkIndex < sorted[j].ChunkIndex })
	n := 0
	for _, p := range sorted {
		n += len(p.Target)
	}
	target = make([]float32, 0, n)
	residual = make([]float32, 0, n)
	for _, p := range sorted {
		target = appendClamped(target, p.Target)
		residual = appendClamped(residual, p.Residual)
	}
	return target, residual
}

func appendClamped(dst, src []float32) []float32 {
	for _, s := range src {
		v := float64(s)
		if math.IsNaN(v) {
			v = 0
		} else if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		dst = append(dst, float32(v))
	}
	return dst
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
