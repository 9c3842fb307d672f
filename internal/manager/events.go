package manager

// Event represents a slot lifecycle event.
// Minimal and stable: name + slot key and optional fields via key/values.
type Event struct {
	Name   string
	Key    string
	Fields map[string]any
}

// Event names emitted by the manager and the sidecar loader.
const (
	EventAcquireStart  = "acquire_start"
	EventAcquireHit    = "acquire_hit"
	EventLoadReady     = "load_ready"
	EventLoadError     = "load_error"
	EventLoadCancelled = "load_cancelled"
	EventEvict         = "evict"
	EventSpawnStart    = "spawn_start"
	EventSpawnReady    = "spawn_ready"
	EventSpawnExit     = "spawn_exit"
	EventSpawnTimeout  = "spawn_timeout"
	EventSpawnStop     = "spawn_stop"
)

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
