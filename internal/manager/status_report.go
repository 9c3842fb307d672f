package manager

import (
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/oulianov/audioghost-ai/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := Snapshot{State: m.state, Err: m.err}
	if m.slot != nil {
		k := m.slot.Key
		snap.Key = &k
	}
	return snap
}

// Status builds a detailed status response for /status. Queue fields are
// filled in by the job service.
func (m *Manager) Status() types.SlotStatus {
	m.mu.RLock()
	resp := types.SlotStatus{
		State:          string(m.state),
		Variant:        string(m.variant),
		LoadsTotal:     m.loads,
		EvictionsTotal: m.evictions,
		HitsTotal:      m.hits,
		LastError:      m.err,
	}
	if s := m.slot; s != nil {
		resp.Key = s.Key.Render(m.variant)
		resp.ModelName = s.Key.ModelName
		resp.Device = string(s.Key.Device)
		resp.Precision = string(s.Key.Precision)
		resp.SampleRate = s.Processor.SampleRate
		resp.LoadedAtUnix = s.LoadedAt.Unix()
		resp.LastUsedUnix = s.LastUsed.Unix()
		for _, c := range s.Model.Components() {
			resp.Components = append(resp.Components, string(c))
		}
	}
	now := m.now()
	resp.UptimeSeconds = int64(now.Sub(m.startTime).Seconds())
	resp.ServerTimeUnix = now.Unix()
	m.mu.RUnlock()

	if vm, err := mem.VirtualMemory(); err == nil {
		resp.HostMemTotalMB = vm.Total / (1 << 20)
		resp.HostMemAvailMB = vm.Available / (1 << 20)
	}
	return resp
}
