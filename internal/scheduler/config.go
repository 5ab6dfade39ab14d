// Package scheduler implements the per-tick time-slice scheduler of the
// hypervisor. Each tick it grants Running VMs priority-weighted access to the
// shared resource envelope and degrades service under contention instead of
// failing.
package scheduler

import "time"

// Config holds the scheduler configuration.
type Config struct {
	// Quantum is the nominal time slice per active VM per tick. It also
	// acts as the floor under priority-proportional grants.
	Quantum time.Duration `mapstructure:"quantum"`

	// MinSlice is the epsilon floor a throttled VM's slice is never reduced
	// below while it remains Running.
	MinSlice time.Duration `mapstructure:"min_slice"`

	// BurstFactor scales a VM's reservation into its peak per-tick demand.
	// Values above 1.0 model transient usage spikes beyond the reservation,
	// which is what creates contention in the first place.
	BurstFactor float64 `mapstructure:"burst_factor"`
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Quantum:     10 * time.Millisecond,
		MinSlice:    1 * time.Millisecond,
		BurstFactor: 1.0, // reservations are honest by default
	}
}
