package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/oulianov/audioghost-ai/internal/assemble"
	"github.com/oulianov/audioghost-ai/internal/audio"
	"github.com/oulianov/audioghost-ai/internal/chunk"
	"github.com/oulianov/audioghost-ai/internal/failure"
	"github.com/oulianov/audioghost-ai/internal/manager"
	"github.com/oulianov/audioghost-ai/internal/model"
	"github.com/oulianov/audioghost-ai/internal/registry"
	"github.com/oulianov/audioghost-ai/internal/separate"
	"github.com/oulianov/audioghost-ai/pkg/types"
)

// SlotCache is the part of *manager.Manager the controller uses.
type SlotCache interface {
	Acquire(ctx context.Context, req manager.AcquireRequest) (model.Separator, *model.Processor, error)
	ReleaseMemory(ctx context.Context) error
	Evict(reason string) error
}

// TokenSource yields the hub credential; "" when none is stored.
type TokenSource interface {
	Token() string
}

// decodeFunc loads path as a mono waveform at rate.
type decodeFunc func(ctx context.Context, path string, rate int) (audio.Waveform, error)

// ControllerConfig wires the controller's collaborators.
type ControllerConfig struct {
	Slots   SlotCache
	Tokens  TokenSource
	Catalog *registry.Catalog
	// Sink receives status writes; nil drops them.
	Sink      Sink
	Device    model.Device
	OutputDir string
	FFmpegBin string
	// BitDepth of written artifacts; 0 means 16.
	BitDepth int
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Controller executes one job end to end: acquire the model, decode,
// chunk, separate every chunk in order and write the artifacts.
type Controller struct {
	slots     SlotCache
	tokens    TokenSource
	catalog   *registry.Catalog
	sink      Sink
	device    model.Device
	outputDir string
	bitDepth  int
	log       zerolog.Logger
	now       func() time.Time
	decode    decodeFunc
}

// NewController applies defaults to cfg.
func NewController(cfg ControllerConfig) *Controller {
	c := &Controller{
		slots:     cfg.Slots,
		tokens:    cfg.Tokens,
		catalog:   cfg.Catalog,
		sink:      cfg.Sink,
		device:    cfg.Device,
		outputDir: cfg.OutputDir,
		bitDepth:  cfg.BitDepth,
		log:       cfg.Logger,
		now:       cfg.Now,
	}
	if c.sink == nil {
		c.sink = noopSink{}
	}
	if c.catalog == nil {
		c.catalog = registry.New("", "")
	}
	if c.device == "" {
		c.device = model.DeviceCPU
	}
	if c.bitDepth == 0 {
		c.bitDepth = assemble.DefaultBitDepth
	}
	if c.now == nil {
		c.now = time.Now
	}
	bin := cfg.FFmpegBin
	c.decode = func(ctx context.Context, path string, rate int) (audio.Waveform, error) {
		return audio.NewDecoder(bin, rate).Decode(ctx, path)
	}
	return c
}

// Execute runs job to a terminal state. On success the returned result's
// files all exist. On failure the error is a *failure.Error carrying the
// job id and the stage that failed, device memory has been released and
// the status sink holds a failed or cancelled record.
func (c *Controller) Execute(ctx context.Context, job Job) (types.JobResult, error) {
	started := c.now()
	log := c.log.With().Str("job", job.ID).Logger()
	p := newProgress(ctx, job.ID, c.sink, log)

	res, err := c.run(ctx, job, p, started)
	if err == nil {
		err = p.complete(res)
	}
	if err != nil {
		return types.JobResult{}, c.settle(ctx, job, p, err, started)
	}
	took := c.now().Sub(started)
	jobsTotal.WithLabelValues(string(StateCompleted)).Inc()
	jobDuration.WithLabelValues(string(StateCompleted)).Observe(took.Seconds())
	log.Info().Str("event", "completed").Int("chunks", res.Chunks).
		Float64("audio_s", res.AudioDuration).Int64("took_ms", took.Milliseconds()).Msg("job")
	return res, nil
}

func (c *Controller) run(ctx context.Context, job Job, p *progress, started time.Time) (types.JobResult, error) {
	if err := p.enter(StateInitializing, 5, "Initializing..."); err != nil {
		return types.JobResult{}, err
	}
	job, err := job.Normalize()
	if err != nil {
		return types.JobResult{}, err
	}
	name, err := c.catalog.ModelName(job.ModelSize)
	if err != nil {
		return types.JobResult{}, err
	}
	var token string
	if c.tokens != nil {
		token = c.tokens.Token()
	}

	if err := p.enter(StateLoadingModel, 10, fmt.Sprintf("Loading %s (lite mode)...", name)); err != nil {
		return types.JobResult{}, err
	}
	sep, proc, err := c.slots.Acquire(ctx, manager.AcquireRequest{
		ModelName: name,
		Device:    c.device,
		Precision: job.Precision,
		Token:     token,
	})
	if err != nil {
		return types.JobResult{}, err
	}

	if err := p.enter(StateLoadingAudio, 30, "Loading audio..."); err != nil {
		return types.JobResult{}, err
	}
	wave, err := c.decode(ctx, job.InputPath, proc.SampleRate)
	if err != nil {
		return types.JobResult{}, err
	}
	plan, err := chunk.NewPlan(wave.Samples, wave.SampleRate, job.ChunkDuration)
	if err != nil {
		return types.JobResult{}, failure.Input(job.InputPath, "plan chunks", err)
	}

	parts, err := c.separateAll(ctx, job, p, sep, proc, plan)
	if err != nil {
		return types.JobResult{}, err
	}

	if err := p.enter(StateSaving, 80, "Saving results..."); err != nil {
		return types.JobResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return types.JobResult{}, err
	}
	return assemble.Assemble(parts, wave, assemble.Request{
		JobID:       job.ID,
		OutputDir:   c.outputDir,
		InputPath:   job.InputPath,
		Description: job.Description,
		Mode:        string(job.Mode),
		ModelSize:   job.ModelSize,
		SampleRate:  proc.SampleRate,
		BitDepth:    c.bitDepth,
		StartedAt:   started,
	})
}

// separateAll runs every kept chunk strictly in order. Progress moves from
// 30 to 80 across the kept chunks.
func (c *Controller) separateAll(ctx context.Context, job Job, p *progress, sep model.Separator, proc *model.Processor, plan chunk.Plan) ([]separate.PartialResult, error) {
	n := len(plan.Chunks)
	msg := "Running separation..."
	if plan.Chunked {
		msg = fmt.Sprintf("Processing chunk 1/%d...", n)
	}
	if err := p.enter(StateSeparating, 30, msg); err != nil {
		return nil, err
	}
	if len(plan.Discarded) > 0 {
		p.log.Debug().Int("discarded", len(plan.Discarded)).Msg("skipping chunks shorter than the minimum")
	}
	req := separate.Request{
		Description: job.Description,
		Mode:        string(job.Mode),
		Anchors:     job.Anchors,
		Device:      c.device,
	}
	parts := make([]separate.PartialResult, 0, n)
	for i, ch := range plan.Chunks {
		if plan.Chunked && i > 0 {
			p.report(30+i*50/n, fmt.Sprintf("Processing chunk %d/%d...", i+1, n))
		}
		part, err := separate.Run(ctx, sep, proc, ch, req)
		if err != nil {
			return nil, err
		}
		chunksProcessedTotal.Inc()
		parts = append(parts, part)
	}
	return parts, nil
}

// settle converts err into the job's terminal state. Device memory is
// always released; the slot is evicted when the error may have left the
// runtime in a bad state.
func (c *Controller) settle(ctx context.Context, job Job, p *progress, err error, started time.Time) error {
	werr := failure.Wrap(err, job.ID, string(p.state))
	kind := failure.KindOf(werr)
	cleanup := context.WithoutCancel(ctx)

	if rerr := c.slots.ReleaseMemory(cleanup); rerr != nil {
		p.log.Warn().Err(rerr).Msg("release memory after failure")
	}
	switch kind {
	case failure.KindDeviceMemory, failure.KindCancelled, failure.KindTimeout:
		if eerr := c.slots.Evict(string(kind)); eerr != nil {
			p.log.Warn().Err(eerr).Msg("evict after failure")
		}
	}

	final := StateFailed
	if kind == failure.KindCancelled {
		final = StateCancelled
	}
	p.fail(final, werr.Error(), string(kind))

	jobsTotal.WithLabelValues(string(final)).Inc()
	jobDuration.WithLabelValues(string(final)).Observe(c.now().Sub(started).Seconds())
	ev := p.log.Error()
	if errors.Is(err, context.Canceled) {
		ev = p.log.Warn()
	}
	ev.Str("event", string(final)).Str("kind", string(kind)).Err(werr).Msg("job")
	return werr
}
