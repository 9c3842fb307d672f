package manager

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/oulianov/audioghost-ai/internal/model"
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Loader materializes runtimes on a cache miss. Required.
	Loader Loader
	// Variant selects the component set; defaults to lite.
	Variant   model.Variant
	Publisher EventPublisher
	Logger    zerolog.Logger
	// AllowEmptyToken skips the credential check, for runtimes that read
	// checkpoints from local disk.
	AllowEmptyToken bool
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:           StateEmpty,
		loader:          cfg.Loader,
		variant:         cfg.Variant,
		publisher:       cfg.Publisher,
		log:             cfg.Logger.With().Str("component", "manager").Logger(),
		allowEmptyToken: cfg.AllowEmptyToken,
		now:             cfg.Now,
	}
	// Apply defaults if unset
	if m.variant == "" {
		m.variant = model.VariantLite
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.startTime = m.now()
	return m
}

// New constructs a lite-variant Manager around loader.
func New(loader Loader, logger zerolog.Logger) *Manager {
	return NewWithConfig(ManagerConfig{Loader: loader, Logger: logger})
}
