package scheduler

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/biovisor/biovisor/internal/domain"
)

// Scheduler grants Running VMs time-sliced access to the shared resource
// envelope, one round per tick. It never changes a VM's lifecycle state:
// contention degrades slices, it is not an error.
type Scheduler struct {
	config Config
	logger *zap.Logger
	tick   uint64
}

// New creates a new Scheduler instance.
func New(config Config, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		config: config,
		logger: logger.With(zap.String("component", "scheduler")),
	}
}

// Headroom is the per-dimension capacity still usable by Running VMs during a
// tick: the pool total minus what non-running VMs hold. It is distinct from
// the free capacity used at reservation time.
type Headroom struct {
	Ribosomes     float64
	EnergyPercent float64
	MemoryUnits   float64
}

// Grant records the slice one VM received in a tick.
type Grant struct {
	VMID      string
	Slice     time.Duration
	Throttled bool
}

// TickResult describes one completed scheduling round.
type TickResult struct {
	Tick      uint64
	Queue     []string
	Grants    []Grant
	Pressure  float64
	Throttled int
}

// Tick runs one scheduling round over the Running VMs. It mutates only the
// scheduling fields of the records (last-scheduled markers and slice
// statistics), never their reservations or states.
func (s *Scheduler) Tick(now time.Time, running []*domain.VMRecord, headroom Headroom) TickResult {
	s.tick++
	result := TickResult{Tick: s.tick}
	if len(running) == 0 {
		return result
	}

	queue := buildQueue(running)
	result.Queue = make([]string, len(queue))
	for i, vm := range queue {
		result.Queue[i] = vm.ID
	}

	grants := s.grantSlices(queue)
	result.Pressure = s.pressure(queue, headroom)
	if result.Pressure > 1 {
		result.Throttled = s.throttle(queue, grants, result.Pressure)
	}

	result.Grants = make([]Grant, len(queue))
	for i, vm := range queue {
		vm.LastScheduledTick = s.tick
		vm.LastScheduledAt = now
		vm.SliceCount++
		vm.ScheduledTotal += grants[i].Slice
		result.Grants[i] = grants[i]
	}

	s.logger.Debug("Scheduling tick complete",
		zap.Uint64("tick", s.tick),
		zap.Int("active_vms", len(queue)),
		zap.Float64("pressure", result.Pressure),
		zap.Int("throttled", result.Throttled),
	)

	return result
}

// CurrentTick returns the number of completed scheduling rounds.
func (s *Scheduler) CurrentTick() uint64 {
	return s.tick
}

// buildQueue orders the active queue: least recently scheduled first, ties
// broken by effective priority descending, then by id. The ordering is fully
// deterministic for identical input sequences.
func buildQueue(running []*domain.VMRecord) []*domain.VMRecord {
	queue := make([]*domain.VMRecord, len(running))
	copy(queue, running)

	sort.SliceStable(queue, func(i, j int) bool {
		if queue[i].LastScheduledTick != queue[j].LastScheduledTick {
			return queue[i].LastScheduledTick < queue[j].LastScheduledTick
		}
		if pi, pj := effectivePriority(queue[i]), effectivePriority(queue[j]); pi != pj {
			return pi > pj
		}
		return queue[i].ID < queue[j].ID
	})

	return queue
}

// grantSlices assigns each queued VM a slice proportional to its share of the
// queue's total priority, floored at the quantum.
func (s *Scheduler) grantSlices(queue []*domain.VMRecord) []Grant {
	var prioritySum int64
	for _, vm := range queue {
		prioritySum += int64(effectivePriority(vm))
	}

	budget := time.Duration(len(queue)) * s.config.Quantum
	grants := make([]Grant, len(queue))
	for i, vm := range queue {
		share := time.Duration(float64(budget) * float64(effectivePriority(vm)) / float64(prioritySum))
		if share < s.config.Quantum {
			share = s.config.Quantum
		}
		grants[i] = Grant{VMID: vm.ID, Slice: share}
	}
	return grants
}

// pressure computes the worst-dimension oversubscription ratio of the queue's
// peak per-tick demand against the available headroom. A value above 1 means
// the tick is contended.
func (s *Scheduler) pressure(queue []*domain.VMRecord, headroom Headroom) float64 {
	burst := s.config.BurstFactor
	if burst <= 0 {
		burst = 1
	}

	var ribosomes, energy, memory float64
	for _, vm := range queue {
		ribosomes += burst * float64(vm.Demand.Ribosomes)
		energy += burst * vm.Demand.EnergyPercent
		memory += burst * float64(vm.Demand.MemoryUnits)
	}

	worst := 0.0
	for _, dim := range []struct{ demand, headroom float64 }{
		{ribosomes, headroom.Ribosomes},
		{energy, headroom.EnergyPercent},
		{memory, headroom.MemoryUnits},
	} {
		if dim.demand <= 0 {
			continue
		}
		if dim.headroom <= 0 {
			return math.Inf(1)
		}
		if ratio := dim.demand / dim.headroom; ratio > worst {
			worst = ratio
		}
	}
	return worst
}

// throttle shrinks granted slices until the demand-weighted total fits the
// headroom again. Lowest-priority VMs are reduced first, never below the
// MinSlice floor, and a higher-priority VM is only touched once every VM
// below it sits at the floor. Returns the number of throttled VMs.
func (s *Scheduler) throttle(queue []*domain.VMRecord, grants []Grant, pressure float64) int {
	var total time.Duration
	for _, g := range grants {
		total += g.Slice
	}

	// The tick's demand is slice-weighted, so shrinking the slice total by
	// 1 - 1/pressure restores the balance.
	scale := 0.0
	if !math.IsInf(pressure, 1) {
		scale = 1 / pressure
	}
	deficit := time.Duration(float64(total) * (1 - scale))

	// Throttle order: priority ascending, then id, independent of the
	// round-robin queue order.
	order := make([]int, len(queue))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		va, vb := queue[order[a]], queue[order[b]]
		if pa, pb := effectivePriority(va), effectivePriority(vb); pa != pb {
			return pa < pb
		}
		return va.ID < vb.ID
	})

	throttled := 0
	for _, idx := range order {
		if deficit <= 0 {
			break
		}
		reducible := grants[idx].Slice - s.config.MinSlice
		if reducible <= 0 {
			continue
		}
		reduction := reducible
		if reduction > deficit {
			reduction = deficit
		}
		grants[idx].Slice -= reduction
		grants[idx].Throttled = true
		deficit -= reduction
		throttled++

		s.logger.Debug("Throttling VM slice",
			zap.String("vm_id", grants[idx].VMID),
			zap.Int("priority", queue[idx].Priority),
			zap.Duration("slice", grants[idx].Slice),
		)
	}

	return throttled
}

// effectivePriority clamps priorities at 1 so a zero or negative priority
// still receives a share of the budget.
func effectivePriority(vm *domain.VMRecord) int {
	if vm.Priority < 1 {
		return 1
	}
	return vm.Priority
}
