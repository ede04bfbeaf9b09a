package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/xtding233/marble-bag/internal/marble"
)

// Paths helper for default/override files.
type Paths struct {
	BaseDir string // base directory, e.g., /opt/app/config
}

func (p Paths) DefaultPath() string {
	return filepath.Join(p.BaseDir, "bags", "default.yaml")
}
func (p Paths) OverridePath(bag string) string {
	return filepath.Join(p.BaseDir, "bags", "overrides", bag+".yaml")
}

// Loader reads YAML configs and merges defaults → bag entry → override.
type Loader struct {
	paths Paths

	mu    sync.RWMutex
	specs []BagSpec // nil until first successful Load
	watch []string
}

// NewLoader creates a config loader with the given base directory.
func NewLoader(baseDir string) *Loader {
	return &Loader{paths: Paths{BaseDir: baseDir}}
}

func (l *Loader) Paths() Paths { return l.paths }

// Load returns the normalized bag specs, reading disk only when the cache is empty.
func (l *Loader) Load() ([]BagSpec, error) {
	l.mu.RLock()
	if l.specs != nil {
		out := append([]BagSpec(nil), l.specs...)
		l.mu.RUnlock()
		return out, nil
	}
	l.mu.RUnlock()

	// the default file is the only mandatory one
	if _, err := os.Stat(l.paths.DefaultPath()); err != nil {
		return nil, fmt.Errorf("read default: %w", err)
	}
	raw, err := readYAML[RawConfig](l.paths.DefaultPath())
	if err != nil {
		return nil, fmt.Errorf("read default: %w", err)
	}

	watch := []string{l.paths.DefaultPath()}
	merged := make([]BagEntry, 0, len(raw.Bags))
	for _, entry := range raw.Bags {
		e := mergeEntry(fromDefaults(raw.Defaults), entry)
		if entry.Name != "" {
			path := l.paths.OverridePath(entry.Name)
			override, err := readYAML[BagEntry](path) // override file optional
			if err != nil {
				return nil, fmt.Errorf("read override %s: %w", entry.Name, err)
			}
			override.Name = entry.Name
			e = mergeEntry(e, override)
			watch = append(watch, path)
		}
		merged = append(merged, e)
	}
	raw.Bags = merged

	if err := Validate(raw); err != nil {
		return nil, err
	}
	specs := normalize(raw)

	l.mu.Lock()
	l.specs = specs
	l.watch = watch
	l.mu.Unlock()

	return append([]BagSpec(nil), specs...), nil
}

// WatchPaths lists the files the last Load read or probed.
func (l *Loader) WatchPaths() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.watch) == 0 {
		return []string{l.paths.DefaultPath()}
	}
	return append([]string(nil), l.watch...)
}

// Invalidate clears loader's cache. Call after hot-reload detects changes.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.specs = nil
}

// readYAML loads a YAML file. Missing files return zero value, no error.
func readYAML[T any](path string) (T, error) {
	var out T
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return out, err
	}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return out, err
	}
	return out, nil
}

func fromDefaults(d BagDefaults) BagEntry {
	return BagEntry{Strategy: d.Strategy, AutoReset: d.AutoReset, RNG: d.RNG}
}

// mergeEntry overlays b on a: every field set in b wins.
func mergeEntry(a, b BagEntry) BagEntry {
	out := a
	if b.Name != "" {
		out.Name = b.Name
	}
	if b.Size != nil {
		v := *b.Size
		out.Size = &v
	}
	if b.Seed != nil {
		v := *b.Seed
		out.Seed = &v
	}
	if b.Strategy != "" {
		out.Strategy = b.Strategy
	}
	if b.AutoReset != nil {
		v := *b.AutoReset
		out.AutoReset = &v
	}
	if b.RNG != "" {
		out.RNG = b.RNG
	}
	return out
}

// normalize turns validated, merged entries into specs.
func normalize(raw RawConfig) []BagSpec {
	specs := make([]BagSpec, 0, len(raw.Bags))
	for _, e := range raw.Bags {
		spec := BagSpec{
			Name:     e.Name,
			Size:     *e.Size,
			Seed:     e.Seed,
			Strategy: marble.Strategy(e.Strategy),
			RNG:      e.RNG,
			Version:  raw.Version,
		}
		if spec.Strategy == "" {
			spec.Strategy = marble.StrategyIndexWalk
		}
		if spec.RNG == "" {
			spec.RNG = marble.SourcePCG
		}
		if e.AutoReset != nil {
			spec.AutoReset = *e.AutoReset
		}
		specs = append(specs, spec)
	}
	return specs
}
