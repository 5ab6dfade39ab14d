// Package hypervisor implements the biological hypervisor: a single scheduling
// authority that owns the chassis profile, the resource pool, the VM registry
// and the tick scheduler, and exposes the VM lifecycle API.
package hypervisor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/biovisor/biovisor/internal/domain"
	"github.com/biovisor/biovisor/internal/pool"
	"github.com/biovisor/biovisor/internal/scheduler"
	"github.com/biovisor/biovisor/internal/telemetry"
)

// WatchdogConfig controls the optional starvation watchdog. A Running VM whose
// slice has been throttled down to the scheduler floor for MissedTicks
// consecutive ticks is forced into the Error state.
type WatchdogConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MissedTicks uint64 `mapstructure:"missed_ticks"`
}

// vmEntry pairs a VM record with its pool reservation. The reservation is the
// only handle that can return the VM's resources.
type vmEntry struct {
	rec         *domain.VMRecord
	res         *pool.Reservation
	starvedRuns uint64
}

// Hypervisor is the public-facing orchestrator. All mutations of the registry
// and the pool are serialized behind its lock; the scheduling tick acquires
// the same exclusion, so a tick sees every VM either fully present or fully
// absent.
type Hypervisor struct {
	logger *zap.Logger

	profile  *domain.ChassisProfile
	rpool    *pool.Pool
	sched    *scheduler.Scheduler
	schedCfg scheduler.Config

	tickInterval time.Duration
	watchdog     WatchdogConfig
	recorder     *telemetry.Recorder
	metrics      *telemetry.Metrics

	mu        sync.RWMutex
	vms       map[string]*vmEntry
	isRunning bool
}

// Option configures the hypervisor.
type Option func(*Hypervisor)

// WithRecorder attaches a telemetry recorder fed once per tick.
func WithRecorder(r *telemetry.Recorder) Option {
	return func(h *Hypervisor) { h.recorder = r }
}

// WithMetrics attaches Prometheus metrics updated once per tick.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(h *Hypervisor) { h.metrics = m }
}

// WithWatchdog enables the starvation watchdog.
func WithWatchdog(cfg WatchdogConfig) Option {
	return func(h *Hypervisor) { h.watchdog = cfg }
}

// New creates a hypervisor for the given chassis profile.
func New(profile *domain.ChassisProfile, schedCfg scheduler.Config, tickInterval time.Duration, logger *zap.Logger, opts ...Option) *Hypervisor {
	if tickInterval <= 0 {
		tickInterval = 100 * time.Millisecond
	}

	h := &Hypervisor{
		logger:       logger.Named("hypervisor"),
		profile:      profile,
		rpool:        pool.New(profile, logger),
		sched:        scheduler.New(schedCfg, logger),
		schedCfg:     schedCfg,
		tickInterval: tickInterval,
		vms:          make(map[string]*vmEntry),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Profile returns the immutable chassis profile.
func (h *Hypervisor) Profile() *domain.ChassisProfile {
	return h.profile
}

// CreateVM registers a new VM in the Created state, reserving its declared
// demand. On any failure the registry and the pool are left exactly as they
// were.
func (h *Hypervisor) CreateVM(id string, demand domain.ResourceDemand, priority int) error {
	if id == "" {
		return &domain.InvalidArgumentError{Field: "id", Reason: "must not be empty"}
	}
	if err := demand.Validate(); err != nil {
		return err
	}
	if priority == 0 {
		priority = domain.DefaultPriority
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Duplicate ids are reported before the chassis ceiling: a re-create of
	// an existing VM is a duplicate even on a full chassis.
	if _, exists := h.vms[id]; exists {
		return domain.ErrDuplicateID
	}
	if len(h.vms) >= h.profile.MaxVMs() {
		return domain.ErrChassisLimit
	}

	res, err := h.rpool.Reserve(demand)
	if err != nil {
		return err
	}

	h.vms[id] = &vmEntry{
		rec: &domain.VMRecord{
			ID:        id,
			State:     domain.VMStateCreated,
			Demand:    demand,
			Priority:  priority,
			CreatedAt: time.Now(),
		},
		res: res,
	}

	h.logger.Info("VM created",
		zap.String("vm_id", id),
		zap.Int("priority", priority),
		zap.Int64("ribosomes", demand.Ribosomes),
		zap.Float64("energy_percent", demand.EnergyPercent),
		zap.Int64("memory_units", demand.MemoryUnits),
	)
	return nil
}

// StartVM admits a Created VM into the scheduling rotation.
func (h *Hypervisor) StartVM(id string) error {
	return h.applyEvent(id, domain.EventStart)
}

// PauseVM removes a Running VM from the rotation; its reservation is kept.
func (h *Hypervisor) PauseVM(id string) error {
	return h.applyEvent(id, domain.EventPause)
}

// ResumeVM re-admits a Paused VM into the rotation.
func (h *Hypervisor) ResumeVM(id string) error {
	return h.applyEvent(id, domain.EventResume)
}

// applyEvent runs one lifecycle transition under the lock. Invalid
// transitions change nothing.
func (h *Hypervisor) applyEvent(id string, event domain.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.vms[id]
	if !ok {
		return domain.ErrNotFound
	}

	next, err := domain.Transition(entry.rec.State, event)
	if err != nil {
		return err
	}

	prev := entry.rec.State
	entry.rec.State = next
	entry.starvedRuns = 0

	h.logger.Info("VM state changed",
		zap.String("vm_id", id),
		zap.String("event", string(event)),
		zap.String("from", string(prev)),
		zap.String("to", string(next)),
	)
	return nil
}

// DestroyVM stops a VM, releases its reservation and removes it from the
// registry. It succeeds from every state including Error, which makes it the
// universal recovery action; it is safe to call concurrently with a tick.
func (h *Hypervisor) DestroyVM(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.vms[id]
	if !ok {
		return domain.ErrNotFound
	}

	if _, err := domain.Transition(entry.rec.State, domain.EventDestroy); err != nil {
		return err
	}

	entry.rec.State = domain.VMStateStopped
	h.rpool.Release(entry.res)
	delete(h.vms, id)

	h.logger.Info("VM destroyed", zap.String("vm_id", id))
	return nil
}

// InjectFault forces a VM into the Error state. The reservation is retained
// until an explicit DestroyVM; no other VM and no pool accounting is touched.
func (h *Hypervisor) InjectFault(id, reason string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.vms[id]
	if !ok {
		return domain.ErrNotFound
	}

	next, err := domain.Transition(entry.rec.State, domain.EventFault)
	if err != nil {
		return err
	}

	entry.rec.State = next
	entry.rec.ErrorReason = reason

	h.logger.Warn("VM faulted",
		zap.String("vm_id", id),
		zap.String("reason", reason),
	)
	return nil
}

// Tick advances the scheduler by one round. It may be driven by Run's ticker
// or called directly by a test harness.
func (h *Hypervisor) Tick() {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()

	var running []*domain.VMRecord
	headroom := scheduler.Headroom{
		Ribosomes:     float64(h.profile.RibosomeCapacity()),
		EnergyPercent: domain.EnergyTotal,
		MemoryUnits:   float64(h.profile.MemoryCapacity()),
	}
	for _, entry := range h.vms {
		if entry.rec.IsRunning() {
			running = append(running, entry.rec)
			continue
		}
		// Resources parked with non-running VMs are out of reach for this
		// tick's access grants.
		headroom.Ribosomes -= float64(entry.rec.Demand.Ribosomes)
		headroom.EnergyPercent -= entry.rec.Demand.EnergyPercent
		headroom.MemoryUnits -= float64(entry.rec.Demand.MemoryUnits)
	}

	result := h.sched.Tick(now, running, headroom)

	if h.watchdog.Enabled {
		h.runWatchdog(result)
	}

	h.observe(now, result, len(running))
}

// runWatchdog escalates persistently starved VMs to Error. A VM counts as
// starved in a tick when contention pinned its slice at the scheduler floor.
func (h *Hypervisor) runWatchdog(result scheduler.TickResult) {
	for _, grant := range result.Grants {
		entry, ok := h.vms[grant.VMID]
		if !ok || !entry.rec.IsRunning() {
			continue
		}

		if !grant.Throttled || grant.Slice > h.schedCfg.MinSlice {
			entry.starvedRuns = 0
			continue
		}

		entry.starvedRuns++
		if entry.starvedRuns < h.watchdog.MissedTicks {
			continue
		}

		entry.rec.State = domain.VMStateError
		entry.rec.ErrorReason = "starved by contention beyond watchdog limit"
		h.logger.Warn("Watchdog faulted starved VM",
			zap.String("vm_id", grant.VMID),
			zap.Uint64("starved_ticks", entry.starvedRuns),
		)
	}
}

// observe publishes the tick outcome to the recorder and metrics, if any.
func (h *Hypervisor) observe(now time.Time, result scheduler.TickResult, running int) {
	if h.recorder == nil && h.metrics == nil {
		return
	}

	utilization := h.rpool.Utilization()

	if h.recorder != nil {
		h.recorder.Record(telemetry.Sample{
			Timestamp:   now,
			Tick:        result.Tick,
			Utilization: utilization,
			RunningVMs:  running,
			Throttled:   result.Throttled,
		})
	}

	if h.metrics != nil {
		states := make(map[domain.VMState]int, 4)
		for _, entry := range h.vms {
			states[entry.rec.State]++
		}
		h.metrics.ObserveTick(utilization, states, result.Throttled)
	}
}

// Run drives the scheduler with a periodic ticker until the context is
// cancelled.
func (h *Hypervisor) Run(ctx context.Context) {
	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		return
	}
	h.isRunning = true
	h.mu.Unlock()

	h.logger.Info("Starting hypervisor tick loop",
		zap.Duration("tick_interval", h.tickInterval),
		zap.String("chassis", h.profile.Name()),
	)

	ticker := time.NewTicker(h.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Hypervisor tick loop stopped")
			h.mu.Lock()
			h.isRunning = false
			h.mu.Unlock()
			return
		case <-ticker.C:
			h.Tick()
		}
	}
}
