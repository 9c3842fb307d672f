package manager

import (
	"context"
	"time"

	"github.com/oulianov/audioghost-ai/internal/model"
)

// State represents lifecycle state of the model slot.
type State string

const (
	StateEmpty   State = "empty"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// Key identifies a loaded model. Two acquisitions with equal keys share the
// same slot.
type Key struct {
	ModelName string
	Device    model.Device
	Precision model.Precision
}

// String renders the key as <model>_lite_<device>_<precision>.
func (k Key) String() string { return k.Render(model.VariantLite) }

// Render renders the key for a given variant.
func (k Key) Render(v model.Variant) string {
	return k.ModelName + "_" + string(v) + "_" + string(k.Device) + "_" + string(k.Precision)
}

// Slot is the single live model held by a Manager.
type Slot struct {
	Key       Key
	Model     model.Separator
	Processor *model.Processor
	LoadedAt  time.Time
	LastUsed  time.Time
}

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State State
	Key   *Key
	Err   string
}

// AcquireRequest names the model a job needs.
type AcquireRequest struct {
	ModelName string
	Device    model.Device
	// Precision may be empty; it then follows the device default.
	Precision model.Precision
	// Token is the hub credential passed to the runtime on load.
	Token string
}

// LoadSpec is what a Loader receives for a cache miss.
type LoadSpec struct {
	ModelName string
	Device    model.Device
	Precision model.Precision
	Token     string
	// Lite asks the runtime to skip the vision, ranking and span components.
	Lite bool
}

// Loader materializes a runtime for a LoadSpec.
type Loader interface {
	Load(ctx context.Context, spec LoadSpec) (model.Backend, model.Info, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, spec LoadSpec) (model.Backend, model.Info, error)

func (f LoaderFunc) Load(ctx context.Context, spec LoadSpec) (model.Backend, model.Info, error) {
	return f(ctx, spec)
}
