package jobs

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/oulianov/audioghost-ai/pkg/types"
)

// Sink receives status writes for a job. *store.Store implements it.
type Sink interface {
	Update(ctx context.Context, id, state string, percent int, msg string) error
	Complete(ctx context.Context, id string, res types.JobResult) error
	Fail(ctx context.Context, id, state, msg, kind string) error
}

type noopSink struct{}

func (noopSink) Update(context.Context, string, string, int, string) error  { return nil }
func (noopSink) Complete(context.Context, string, types.JobResult) error    { return nil }
func (noopSink) Fail(context.Context, string, string, string, string) error { return nil }

// progress tracks one job's state and percent. Writes are fire-and-forget:
// sink errors are logged and never fail the job.
type progress struct {
	ctx     context.Context
	id      string
	sink    Sink
	log     zerolog.Logger
	state   State
	percent int
}

func newProgress(ctx context.Context, id string, sink Sink, log zerolog.Logger) *progress {
	// status writes must land even after the job context is cancelled
	return &progress{ctx: context.WithoutCancel(ctx), id: id, sink: sink, log: log, state: StatePending}
}

// enter moves to state and reports percent with msg.
func (p *progress) enter(to State, percent int, msg string) error {
	if err := ValidateTransition(p.state, to); err != nil {
		return err
	}
	p.state = to
	p.report(percent, msg)
	return nil
}

// report writes percent and msg without changing state. Percent never
// moves backwards.
func (p *progress) report(percent int, msg string) {
	if percent < p.percent {
		percent = p.percent
	}
	if percent > 100 {
		percent = 100
	}
	p.percent = percent
	p.log.Debug().Str("state", string(p.state)).Int("percent", percent).Msg(msg)
	if err := p.sink.Update(p.ctx, p.id, string(p.state), percent, msg); err != nil {
		p.log.Warn().Err(err).Msg("progress write failed")
	}
}

func (p *progress) complete(res types.JobResult) error {
	if err := ValidateTransition(p.state, StateCompleted); err != nil {
		return err
	}
	p.state = StateCompleted
	p.percent = 100
	if err := p.sink.Complete(p.ctx, p.id, res); err != nil {
		p.log.Warn().Err(err).Msg("completion write failed")
	}
	return nil
}

// fail settles the job in a terminal non-completed state. The percent
// stays where it was.
func (p *progress) fail(to State, msg, kind string) {
	if err := ValidateTransition(p.state, to); err != nil {
		p.log.Error().Err(err).Msg("settle")
	}
	p.state = to
	if err := p.sink.Fail(p.ctx, p.id, string(to), msg, kind); err != nil {
		p.log.Warn().Err(err).Msg("failure write failed")
	}
}
