package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/oulianov/audioghost-ai/internal/httpapi"
	"github.com/oulianov/audioghost-ai/internal/jobs"
	"github.com/oulianov/audioghost-ai/internal/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the job worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	cfg, log := a.cfg, a.log

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := newPipeline(cfg, st, log)
	if err != nil {
		return err
	}
	defer p.Close()

	svc := jobs.NewService(jobs.ServiceConfig{
		Store:      st,
		Executor:   p.ctrl,
		Slots:      p.slots,
		QueueDepth: cfg.QueueDepth,
		JobTimeout: cfg.JobTimeout.D(),
		Logger:     log.With().Str("component", "jobs").Logger(),
	})
	if err := svc.Start(ctx); err != nil {
		return err
	}

	httpapi.SetLogger(log)
	httpapi.SetRequestLogLevel(requestLogLevel(cfg.Log.Level))
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxUploadBytes(int64(cfg.MaxUploadMB) << 20)
	httpapi.SetSubmitRateLimit(cfg.SubmitRate, cfg.SubmitBurst)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.Origins, cfg.CORS.Methods, cfg.CORS.Headers)

	mux := httpapi.NewMux(httpapi.Deps{
		Jobs:             svc,
		Tokens:           p.tokens,
		Catalog:          p.catalog,
		UploadDir:        cfg.UploadDir,
		DefaultModelSize: cfg.DefaultModelSize,
		ChunkDuration:    cfg.ChunkDuration.D(),
		Precision:        strings.ToLower(cfg.Precision),
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go runJanitor(ctx, svc, cfg.ResultTTL.D(), cfg.JanitorInterval.D(), log)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("data_dir", cfg.DataDir).Msg("ghostd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = svc.Stop(context.Background())
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	if err := svc.Stop(sctx); err != nil {
		log.Warn().Err(err).Msg("worker stop")
	}
	return nil
}

// requestLogLevel maps the process level onto the per-request levels the
// HTTP layer understands.
func requestLogLevel(level string) string {
	switch level {
	case "debug":
		return "debug"
	case "warn", "warning", "error":
		return "error"
	}
	return "info"
}

type purger interface {
	Purge(ctx context.Context, ttl time.Duration) (int, error)
}

// runJanitor purges settled tasks older than ttl every interval until ctx
// is done.
func runJanitor(ctx context.Context, p purger, ttl, every time.Duration, log zerolog.Logger) {
	if ttl <= 0 || every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := p.Purge(ctx, ttl); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("purge expired tasks")
			}
		}
	}
}
