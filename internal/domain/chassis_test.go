package domain

import (
	"errors"
	"testing"
)

func TestNewChassisProfile_Valid(t *testing.T) {
	profile, err := NewChassisProfile("custom", 4, 500, 1024, []string{FeatureOrganelles})
	if err != nil {
		t.Fatalf("NewChassisProfile failed: %v", err)
	}

	if profile.MaxVMs() != 4 {
		t.Errorf("Expected max VMs 4, got %d", profile.MaxVMs())
	}
	if profile.RibosomeCapacity() != 500 {
		t.Errorf("Expected ribosome capacity 500, got %d", profile.RibosomeCapacity())
	}
	if profile.MemoryCapacity() != 1024 {
		t.Errorf("Expected memory capacity 1024, got %d", profile.MemoryCapacity())
	}
	if !profile.HasFeature(FeatureOrganelles) {
		t.Error("Expected organelles feature to be set")
	}
	if profile.HasFeature(FeatureNucleus) {
		t.Error("Did not expect nucleus feature")
	}
}

func TestNewChassisProfile_Invalid(t *testing.T) {
	cases := []struct {
		name      string
		maxVMs    int
		ribosomes int64
		memory    int64
	}{
		{"", 4, 500, 1024},
		{"c", 0, 500, 1024},
		{"c", -1, 500, 1024},
		{"c", 4, 0, 1024},
		{"c", 4, -10, 1024},
		{"c", 4, 500, 0},
	}

	for _, tc := range cases {
		_, err := NewChassisProfile(tc.name, tc.maxVMs, tc.ribosomes, tc.memory, nil)
		if err == nil {
			t.Errorf("Expected InvalidConfigError for (%q, %d, %d, %d)",
				tc.name, tc.maxVMs, tc.ribosomes, tc.memory)
			continue
		}
		var invalid *InvalidConfigError
		if !errors.As(err, &invalid) {
			t.Errorf("Expected InvalidConfigError, got %T: %v", err, err)
		}
	}
}

func TestBuiltinProfiles(t *testing.T) {
	pro := Prokaryote()
	if pro.HasFeature(FeatureOrganelles) {
		t.Error("Prokaryote profile must not carry organelle features")
	}

	eu := Eukaryote()
	if !eu.HasFeature(FeatureOrganelles) || !eu.HasFeature(FeatureNucleus) {
		t.Error("Eukaryote profile must carry organelle and nucleus features")
	}
	if eu.MaxVMs() <= pro.MaxVMs() {
		t.Errorf("Eukaryote VM ceiling (%d) should exceed prokaryote's (%d)",
			eu.MaxVMs(), pro.MaxVMs())
	}

	features := eu.Features()
	for i := 1; i < len(features); i++ {
		if features[i-1] > features[i] {
			t.Errorf("Features() not sorted: %v", features)
			break
		}
	}
}
