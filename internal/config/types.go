// types.go
package config

import "github.com/xtding233/marble-bag/internal/marble"

// Raw config loaded from YAML; bags/default.yaml.
type RawConfig struct {
	Version  string      `yaml:"version"`
	Defaults BagDefaults `yaml:"defaults"`
	Bags     []BagEntry  `yaml:"bags"`
	Notes    string      `yaml:"notes,omitempty"`
}

// BagDefaults apply to every bag that leaves the field unset.
type BagDefaults struct {
	Strategy  string `yaml:"strategy,omitempty" validate:"omitempty,oneof=index_walk bit_scan"`
	AutoReset *bool  `yaml:"auto_reset,omitempty"`
	RNG       string `yaml:"rng,omitempty" validate:"omitempty,oneof=pcg mt19937 crypto"`
}

// BagEntry is one bag, either in the bags list or in bags/overrides/<name>.yaml.
type BagEntry struct {
	Name      string  `yaml:"name" validate:"required,bag_name"`
	Size      *int    `yaml:"size,omitempty" validate:"required,min=1"`
	Seed      *uint64 `yaml:"seed,omitempty"`
	Strategy  string  `yaml:"strategy,omitempty" validate:"omitempty,oneof=index_walk bit_scan"`
	AutoReset *bool   `yaml:"auto_reset,omitempty"`
	RNG       string  `yaml:"rng,omitempty" validate:"omitempty,oneof=pcg mt19937 crypto"`
}

// Normalized bag params used by internal/registry.
type BagSpec struct {
	Name      string
	Size      int
	Seed      *uint64 // nil: time seeded
	Strategy  marble.Strategy
	AutoReset bool
	RNG       string
	Version   string // effective config version for tracing
}

// Same reports whether two specs build identical bags.
func (s BagSpec) Same(o BagSpec) bool {
	if s.Name != o.Name || s.Size != o.Size || s.Strategy != o.Strategy ||
		s.AutoReset != o.AutoReset || s.RNG != o.RNG {
		return false
	}
	if (s.Seed == nil) != (o.Seed == nil) {
		return false
	}
	return s.Seed == nil || *s.Seed == *o.Seed
}

// BagConfig returns the bag construction options of s.
func (s BagSpec) BagConfig() *marble.Config {
	return &marble.Config{AutoReset: s.AutoReset, Strategy: s.Strategy}
}
