package hypervisor

import (
	"sort"
	"time"

	"github.com/biovisor/biovisor/internal/domain"
)

// VMStatusView is a read-only snapshot of one VM, safe to hand to any
// presentation layer.
type VMStatusView struct {
	ID              string                `json:"id"`
	State           domain.VMState        `json:"state"`
	Reservation     domain.ResourceDemand `json:"reservation"`
	Priority        int                   `json:"priority"`
	CreatedAt       time.Time             `json:"created_at"`
	Uptime          time.Duration         `json:"uptime"`
	SliceCount      uint64                `json:"slice_count"`
	ScheduledTotal  time.Duration         `json:"scheduled_total"`
	LastScheduledAt time.Time             `json:"last_scheduled_at,omitempty"`
	ErrorReason     string                `json:"error_reason,omitempty"`
}

// ChassisView is a read-only snapshot of the chassis envelope.
type ChassisView struct {
	Name             string   `json:"name"`
	MaxVMs           int      `json:"max_vms"`
	RibosomeCapacity int64    `json:"ribosome_capacity"`
	MemoryCapacity   int64    `json:"memory_capacity"`
	Features         []string `json:"features,omitempty"`
}

// SystemStatusView is a consistent aggregate snapshot: no VM is ever observed
// mid-transition.
type SystemStatusView struct {
	Chassis     ChassisView        `json:"chassis"`
	Utilization domain.Utilization `json:"utilization"`
	Tick        uint64             `json:"tick"`
	VMCount     int                `json:"vm_count"`
	VMs         []VMStatusView     `json:"vms"`
}

// GetVMStatus returns a snapshot of one VM.
func (h *Hypervisor) GetVMStatus(id string) (VMStatusView, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entry, ok := h.vms[id]
	if !ok {
		return VMStatusView{}, domain.ErrNotFound
	}
	return viewOf(entry.rec, time.Now()), nil
}

// GetSystemStatus returns the aggregate snapshot used by status consumers.
func (h *Hypervisor) GetSystemStatus() SystemStatusView {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := time.Now()
	vms := make([]VMStatusView, 0, len(h.vms))
	for _, entry := range h.vms {
		vms = append(vms, viewOf(entry.rec, now))
	}
	sort.Slice(vms, func(i, j int) bool { return vms[i].ID < vms[j].ID })

	return SystemStatusView{
		Chassis: ChassisView{
			Name:             h.profile.Name(),
			MaxVMs:           h.profile.MaxVMs(),
			RibosomeCapacity: h.profile.RibosomeCapacity(),
			MemoryCapacity:   h.profile.MemoryCapacity(),
			Features:         h.profile.Features(),
		},
		Utilization: h.rpool.Utilization(),
		Tick:        h.sched.CurrentTick(),
		VMCount:     len(h.vms),
		VMs:         vms,
	}
}

// ListVMs returns snapshots of every registered VM, ordered by id.
func (h *Hypervisor) ListVMs() []VMStatusView {
	return h.GetSystemStatus().VMs
}

func viewOf(rec *domain.VMRecord, now time.Time) VMStatusView {
	return VMStatusView{
		ID:              rec.ID,
		State:           rec.State,
		Reservation:     rec.Demand,
		Priority:        rec.Priority,
		CreatedAt:       rec.CreatedAt,
		Uptime:          rec.Uptime(now),
		SliceCount:      rec.SliceCount,
		ScheduledTotal:  rec.ScheduledTotal,
		LastScheduledAt: rec.LastScheduledAt,
		ErrorReason:     rec.ErrorReason,
	}
}
