package domain

import (
	"fmt"
	"sort"
)

// Well-known chassis feature flags. The scheduler and hypervisor may consult
// these but never hard-require them.
const (
	FeatureOrganelles   = "organelles"
	FeatureNucleus      = "nucleus"
	FeatureMitochondria = "mitochondria"
)

// ChassisProfile is the static capacity descriptor for a simulated host type.
// It is constructed once at hypervisor initialization and immutable afterwards.
type ChassisProfile struct {
	name             string
	maxVMs           int
	ribosomeCapacity int64
	memoryCapacity   int64
	features         map[string]struct{}
}

// NewChassisProfile validates and builds a chassis profile. Capacities must be
// positive and maxVMs at least 1.
func NewChassisProfile(name string, maxVMs int, ribosomeCapacity, memoryCapacity int64, features []string) (*ChassisProfile, error) {
	if name == "" {
		return nil, &InvalidConfigError{Field: "chassis.name", Reason: "must not be empty"}
	}
	if maxVMs < 1 {
		return nil, &InvalidConfigError{Field: "chassis.max_vms", Reason: fmt.Sprintf("must be >= 1, got %d", maxVMs)}
	}
	if ribosomeCapacity <= 0 {
		return nil, &InvalidConfigError{Field: "chassis.ribosome_capacity", Reason: fmt.Sprintf("must be > 0, got %d", ribosomeCapacity)}
	}
	if memoryCapacity <= 0 {
		return nil, &InvalidConfigError{Field: "chassis.memory_capacity", Reason: fmt.Sprintf("must be > 0, got %d", memoryCapacity)}
	}

	fset := make(map[string]struct{}, len(features))
	for _, f := range features {
		fset[f] = struct{}{}
	}

	return &ChassisProfile{
		name:             name,
		maxVMs:           maxVMs,
		ribosomeCapacity: ribosomeCapacity,
		memoryCapacity:   memoryCapacity,
		features:         fset,
	}, nil
}

// Prokaryote returns the small built-in chassis profile, modeled after a
// bacterium-like host: few concurrent processes, no organelle features.
func Prokaryote() *ChassisProfile {
	p, _ := NewChassisProfile("prokaryote", 8, 2000, 4096, nil)
	return p
}

// Eukaryote returns the large built-in chassis profile with organelle
// feature flags enabled.
func Eukaryote() *ChassisProfile {
	p, _ := NewChassisProfile("eukaryote", 64, 20000, 65536, []string{
		FeatureOrganelles,
		FeatureNucleus,
		FeatureMitochondria,
	})
	return p
}

// Name returns the profile name.
func (c *ChassisProfile) Name() string { return c.name }

// MaxVMs returns the hard cap on concurrently registered VMs.
func (c *ChassisProfile) MaxVMs() int { return c.maxVMs }

// RibosomeCapacity returns the total ribosome pool size.
func (c *ChassisProfile) RibosomeCapacity() int64 { return c.ribosomeCapacity }

// MemoryCapacity returns the total memory pool size.
func (c *ChassisProfile) MemoryCapacity() int64 { return c.memoryCapacity }

// HasFeature reports whether the chassis carries the named feature flag.
func (c *ChassisProfile) HasFeature(name string) bool {
	_, ok := c.features[name]
	return ok
}

// Features returns the feature flags in sorted order.
func (c *ChassisProfile) Features() []string {
	out := make([]string, 0, len(c.features))
	for f := range c.features {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
