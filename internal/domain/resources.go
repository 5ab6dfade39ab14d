package domain

import "fmt"

// Dimension identifies one of the resource dimensions tracked by the pool.
type Dimension string

const (
	DimRibosomes Dimension = "ribosomes"
	DimEnergy    Dimension = "energy_percent"
	DimMemory    Dimension = "memory_units"
)

// EnergyTotal is the energy pool size. Energy is always expressed as a
// percentage of 100 regardless of chassis.
const EnergyTotal = 100.0

// ResourceDemand is the fixed-shape demand record a VM declares at creation.
// Whatever genome or config layer produced it stays outside the core; the
// hypervisor only sees these three dimensions.
type ResourceDemand struct {
	Ribosomes     int64   `json:"ribosomes"`
	EnergyPercent float64 `json:"energy_percent"`
	MemoryUnits   int64   `json:"memory_units"`
}

// Validate checks that every dimension is non-negative and that the energy
// share fits the percentage scale.
func (d ResourceDemand) Validate() error {
	if d.Ribosomes < 0 {
		return &InvalidArgumentError{Field: string(DimRibosomes), Reason: fmt.Sprintf("must be >= 0, got %d", d.Ribosomes)}
	}
	if d.EnergyPercent < 0 {
		return &InvalidArgumentError{Field: string(DimEnergy), Reason: fmt.Sprintf("must be >= 0, got %g", d.EnergyPercent)}
	}
	if d.EnergyPercent > EnergyTotal {
		return &InvalidArgumentError{Field: string(DimEnergy), Reason: fmt.Sprintf("must be <= %g, got %g", EnergyTotal, d.EnergyPercent)}
	}
	if d.MemoryUnits < 0 {
		return &InvalidArgumentError{Field: string(DimMemory), Reason: fmt.Sprintf("must be >= 0, got %d", d.MemoryUnits)}
	}
	return nil
}

// IsZero reports whether the demand requests nothing in every dimension.
func (d ResourceDemand) IsZero() bool {
	return d.Ribosomes == 0 && d.EnergyPercent == 0 && d.MemoryUnits == 0
}

// Utilization is a read-only snapshot of pool usage, one percentage per
// dimension.
type Utilization struct {
	RibosomesPct float64 `json:"ribosomes_pct"`
	EnergyPct    float64 `json:"energy_pct"`
	MemoryPct    float64 `json:"memory_pct"`
}
