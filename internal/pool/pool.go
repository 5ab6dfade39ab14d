// Package pool implements resource accounting for a single simulated host.
// The pool is the only component permitted to change allocated amounts; the
// hypervisor owns it and routes every reservation change through it.
package pool

import (
	"sync"

	"go.uber.org/zap"

	"github.com/biovisor/biovisor/internal/domain"
)

// Reservation is the handle returned by a successful Reserve. It references
// exactly the reserved amounts and is required to release them again.
type Reservation struct {
	Ribosomes     int64
	EnergyPercent float64
	MemoryUnits   int64

	released bool // guarded by the owning pool's mutex
}

// Demand returns the reservation's amounts as a demand record.
func (r *Reservation) Demand() domain.ResourceDemand {
	return domain.ResourceDemand{
		Ribosomes:     r.Ribosomes,
		EnergyPercent: r.EnergyPercent,
		MemoryUnits:   r.MemoryUnits,
	}
}

// Pool tracks total versus allocated amounts for each resource dimension.
// Reserve and Release are atomic: no caller ever observes a torn state.
type Pool struct {
	mu     sync.Mutex
	logger *zap.Logger

	totalRibosomes int64
	totalEnergy    float64
	totalMemory    int64

	allocRibosomes int64
	allocEnergy    float64
	allocMemory    int64
}

// New builds a pool sized by the chassis profile. The energy dimension is
// always a 0..100 percentage, independent of chassis.
func New(profile *domain.ChassisProfile, logger *zap.Logger) *Pool {
	return &Pool{
		logger:         logger.Named("pool"),
		totalRibosomes: profile.RibosomeCapacity(),
		totalEnergy:    domain.EnergyTotal,
		totalMemory:    profile.MemoryCapacity(),
	}
}

// Reserve atomically claims the requested amounts across all dimensions, or
// claims nothing. On failure it reports the first dimension that cannot be
// satisfied.
func (p *Pool) Reserve(demand domain.ResourceDemand) (*Reservation, error) {
	if err := demand.Validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.allocRibosomes+demand.Ribosomes > p.totalRibosomes {
		return nil, &domain.InsufficientResourcesError{
			Dimension: domain.DimRibosomes,
			Available: float64(p.totalRibosomes - p.allocRibosomes),
			Requested: float64(demand.Ribosomes),
		}
	}
	if p.allocEnergy+demand.EnergyPercent > p.totalEnergy {
		return nil, &domain.InsufficientResourcesError{
			Dimension: domain.DimEnergy,
			Available: p.totalEnergy - p.allocEnergy,
			Requested: demand.EnergyPercent,
		}
	}
	if p.allocMemory+demand.MemoryUnits > p.totalMemory {
		return nil, &domain.InsufficientResourcesError{
			Dimension: domain.DimMemory,
			Available: float64(p.totalMemory - p.allocMemory),
			Requested: float64(demand.MemoryUnits),
		}
	}

	p.allocRibosomes += demand.Ribosomes
	p.allocEnergy += demand.EnergyPercent
	p.allocMemory += demand.MemoryUnits

	return &Reservation{
		Ribosomes:     demand.Ribosomes,
		EnergyPercent: demand.EnergyPercent,
		MemoryUnits:   demand.MemoryUnits,
	}, nil
}

// Release returns a reservation's amounts to the pool. Releasing an already
// released reservation is a logged no-op: double release must never corrupt
// the accounting.
func (p *Pool) Release(res *Reservation) {
	if res == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if res.released {
		p.logger.Warn("Ignoring release of already-released reservation",
			zap.Int64("ribosomes", res.Ribosomes),
			zap.Float64("energy_percent", res.EnergyPercent),
			zap.Int64("memory_units", res.MemoryUnits),
		)
		return
	}
	res.released = true

	p.allocRibosomes -= res.Ribosomes
	if p.allocRibosomes < 0 {
		p.allocRibosomes = 0
	}
	p.allocMemory -= res.MemoryUnits
	if p.allocMemory < 0 {
		p.allocMemory = 0
	}
	// Accumulated floating error must never push the energy account negative.
	p.allocEnergy -= res.EnergyPercent
	if p.allocEnergy < 0 {
		p.allocEnergy = 0
	}
}

// Utilization returns a consistent snapshot of per-dimension usage
// percentages. It has no side effects.
func (p *Pool) Utilization() domain.Utilization {
	p.mu.Lock()
	defer p.mu.Unlock()

	return domain.Utilization{
		RibosomesPct: pct(float64(p.allocRibosomes), float64(p.totalRibosomes)),
		EnergyPct:    pct(p.allocEnergy, p.totalEnergy),
		MemoryPct:    pct(float64(p.allocMemory), float64(p.totalMemory)),
	}
}

// Allocated returns the currently allocated amounts per dimension.
func (p *Pool) Allocated() domain.ResourceDemand {
	p.mu.Lock()
	defer p.mu.Unlock()

	return domain.ResourceDemand{
		Ribosomes:     p.allocRibosomes,
		EnergyPercent: p.allocEnergy,
		MemoryUnits:   p.allocMemory,
	}
}

// Totals returns the pool's total capacity per dimension.
func (p *Pool) Totals() domain.ResourceDemand {
	return domain.ResourceDemand{
		Ribosomes:     p.totalRibosomes,
		EnergyPercent: p.totalEnergy,
		MemoryUnits:   p.totalMemory,
	}
}

func pct(allocated, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return allocated / total * 100
}
