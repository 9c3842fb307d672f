// Package manager owns the process-wide model slot. It is structured into
// small files by concern:
//
//   - manager.go: core Manager type, readiness, Close.
//   - config.go: ManagerConfig and defaults; NewWithConfig applies defaults.
//   - types.go: State, Key, Slot, Snapshot and the Loader contract.
//   - errors.go: error types and helpers (IsClosed).
//   - acquire.go: Acquire, the hit/miss path of the slot cache.
//   - evict.go: Evict and ReleaseMemory.
//   - status_report.go: Status/Snapshot reporting helpers.
//   - metrics.go: Prometheus collectors for loads, hits and evictions.
//   - sidecar.go: SidecarLoader, one runtime subprocess per slot.
//   - runtime_client.go: HTTP protocol spoken to the runtime; RemoteLoader.
//   - pcm.go: float32 PCM wire codec.
//   - sanity.go: startup checks for external binaries.
//
// At most one model is resident at any time. Every load and eviction runs
// under a single mutex, and a cache miss closes the previous model before
// the next one is loaded.
package manager
