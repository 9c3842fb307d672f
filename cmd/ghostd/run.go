package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/oulianov/audioghost-ai/internal/jobs"
	"github.com/oulianov/audioghost-ai/internal/model"
)

type runFlags struct {
	description string
	mode        string
	modelSize   string
	precision   string
	chunk       time.Duration
	start       float64
	end         float64
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:     "run <file>",
		Short:   "Separate one file in the foreground and print the result as JSON",
		Example: "  ghostd run interview.mp4 --description \"dog barking\" --mode remove",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := f.job(args[0], a)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("start") || cmd.Flags().Changed("end") {
				if job.Anchors, err = jobs.SpanAnchors(&f.start, &f.end); err != nil {
					return err
				}
			}

			p, err := newPipeline(a.cfg, nil, a.log)
			if err != nil {
				return err
			}
			defer p.Close()

			ctx := cmd.Context()
			if d := a.cfg.JobTimeout.D(); d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
			res, err := p.ctrl.Execute(ctx, job)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.description, "description", "d", "", "Text prompt naming the sound to separate (required)")
	fl.StringVar(&f.mode, "mode", "extract", "extract or remove")
	fl.StringVar(&f.modelSize, "model-size", "", "small, base or large (default from config)")
	fl.StringVar(&f.precision, "precision", "", "bf16 or fp32 (default from device)")
	fl.DurationVar(&f.chunk, "chunk-duration", 0, "Chunk length, 5s to 60s (default from config)")
	fl.Float64Var(&f.start, "start", 0, "Anchor start in seconds")
	fl.Float64Var(&f.end, "end", 0, "Anchor end in seconds")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

// job builds a normalized job for path, falling back to config defaults.
func (f runFlags) job(path string, a *app) (jobs.Job, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return jobs.Job{}, err
	}
	if _, err := os.Stat(abs); err != nil {
		return jobs.Job{}, fmt.Errorf("input: %w", err)
	}
	j := jobs.Job{
		ID:            uuid.NewString(),
		InputPath:     abs,
		Description:   f.description,
		Mode:          jobs.Mode(f.mode),
		ModelSize:     f.modelSize,
		ChunkDuration: f.chunk,
		Precision:     model.Precision(strings.ToLower(f.precision)),
		SubmittedAt:   time.Now(),
	}
	if j.ModelSize == "" {
		j.ModelSize = a.cfg.DefaultModelSize
	}
	if j.ChunkDuration == 0 {
		j.ChunkDuration = a.cfg.ChunkDuration.D()
	}
	if j.Precision == "" {
		j.Precision = model.Precision(strings.ToLower(a.cfg.Precision))
	}
	return j.Normalize()
}
