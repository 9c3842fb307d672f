package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/oulianov/audioghost-ai/internal/auth"
	"github.com/oulianov/audioghost-ai/internal/common/fsutil"
	"github.com/oulianov/audioghost-ai/internal/config"
	"github.com/oulianov/audioghost-ai/internal/jobs"
	"github.com/oulianov/audioghost-ai/internal/manager"
	"github.com/oulianov/audioghost-ai/internal/model"
	"github.com/oulianov/audioghost-ai/internal/registry"
)

// pipeline is everything needed to execute a job, minus the queue.
type pipeline struct {
	device  model.Device
	tokens  *auth.TokenStore
	catalog *registry.Catalog
	slots   *manager.Manager
	ctrl    *jobs.Controller
}

// newPipeline builds the slot cache and controller. sink may be nil.
func newPipeline(cfg config.Config, sink jobs.Sink, log zerolog.Logger) (*pipeline, error) {
	device, err := model.ParseDevice(cfg.Device)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{cfg.DataDir, cfg.UploadDir, cfg.OutputDir} {
		if err := fsutil.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	runtimeBin := cfg.Runtime.Bin
	if cfg.Runtime.URL != "" {
		runtimeBin = ""
	}
	if rep := manager.SanityCheck(runtimeBin, cfg.FFmpegBin); !rep.OK() {
		log.Warn().Str("detail", rep.Error).Msg("missing external binaries; jobs will fail until they are installed")
	}

	pub := manager.NewLogPublisher(log)
	p := &pipeline{
		device:  device,
		tokens:  auth.NewTokenStore(cfg.DataDir),
		catalog: registry.New(cfg.ModelPrefix, cfg.CheckpointsDir),
	}
	p.slots = manager.NewWithConfig(manager.ManagerConfig{
		Loader:          newLoader(cfg, pub, log),
		Publisher:       pub,
		Logger:          log,
		AllowEmptyToken: cfg.AllowEmptyToken,
	})
	p.ctrl = jobs.NewController(jobs.ControllerConfig{
		Slots:     p.slots,
		Tokens:    p.tokens,
		Catalog:   p.catalog,
		Sink:      sink,
		Device:    device,
		OutputDir: cfg.OutputDir,
		FFmpegBin: cfg.FFmpegBin,
		BitDepth:  cfg.OutputBitDepth,
		Logger:    log.With().Str("component", "controller").Logger(),
	})
	log.Info().Str("device", string(device)).Str("variant", string(p.slots.Variant())).Msg("pipeline ready")
	return p, nil
}

// newLoader attaches to runtime.url when set and spawns runtime.bin
// otherwise.
func newLoader(cfg config.Config, pub manager.EventPublisher, log zerolog.Logger) manager.Loader {
	if cfg.Runtime.URL != "" {
		return &manager.RemoteLoader{BaseURL: cfg.Runtime.URL}
	}
	return manager.NewSidecarLoader(manager.SidecarConfig{
		Bin:          cfg.Runtime.Bin,
		Host:         cfg.Runtime.Host,
		PortStart:    cfg.Runtime.PortStart,
		PortEnd:      cfg.Runtime.PortEnd,
		ExtraArgs:    cfg.Runtime.ExtraArgs,
		ReadyTimeout: cfg.Runtime.ReadyTimeout.D(),
		Publisher:    pub,
		Logger:       log,
	})
}

func (p *pipeline) Close() error { return p.slots.Close() }
