package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xtding233/marble-bag/internal/marble"
)

const defaultYAML = `
version: "3"
defaults:
  strategy: bit_scan
  auto_reset: true
  rng: mt19937
bags:
  - name: loot
    size: 100
    seed: 2017
  - name: shoe
    size: 52
    auto_reset: false
    strategy: index_walk
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadMerged(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	l := NewLoader(dir)
	writeFile(t, l.Paths().DefaultPath(), defaultYAML)
	writeFile(t, l.Paths().OverridePath("shoe"), "size: 104\nrng: pcg\n")

	specs, err := l.Load()
	require.NoError(err)
	require.Len(specs, 2)

	loot := specs[0]
	require.Equal("loot", loot.Name)
	require.Equal(100, loot.Size)
	require.Equal(marble.StrategyBitScan, loot.Strategy)
	require.True(loot.AutoReset)
	require.Equal(marble.SourceMT19937, loot.RNG)
	require.NotNil(loot.Seed)
	require.Equal(uint64(2017), *loot.Seed)
	require.Equal("3", loot.Version)

	shoe := specs[1]
	require.Equal(104, shoe.Size)
	require.Equal(marble.StrategyIndexWalk, shoe.Strategy)
	require.False(shoe.AutoReset)
	require.Equal(marble.SourcePCG, shoe.RNG)
	require.Nil(shoe.Seed)

	require.ElementsMatch([]string{
		l.Paths().DefaultPath(),
		l.Paths().OverridePath("loot"),
		l.Paths().OverridePath("shoe"),
	}, l.WatchPaths())
}

func TestLoadCached(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	l := NewLoader(dir)
	writeFile(t, l.Paths().DefaultPath(), defaultYAML)
	_, err := l.Load()
	require.NoError(err)

	writeFile(t, l.Paths().DefaultPath(), "bags:\n  - name: only\n    size: 1\n")
	specs, err := l.Load()
	require.NoError(err)
	require.Len(specs, 2)

	l.Invalidate()
	specs, err = l.Load()
	require.NoError(err)
	require.Len(specs, 1)
	require.Equal(marble.StrategyIndexWalk, specs[0].Strategy)
	require.Equal(marble.SourcePCG, specs[0].RNG)
	require.False(specs[0].AutoReset)
}

func TestLoadMissingDefault(t *testing.T) {
	_, err := NewLoader(t.TempDir()).Load()
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadInvalid(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	l := NewLoader(dir)
	writeFile(t, l.Paths().DefaultPath(), `
defaults:
  strategy: shuffle
bags:
  - name: Loot
    size: 0
  - name: ok
  - name: ok
    size: 3
`)
	_, err := l.Load()
	require.Error(err)

	var verrs ValidationErrors
	require.True(errors.As(err, &verrs))
	paths := map[string]bool{}
	for _, e := range verrs {
		paths[e.FieldPath] = true
	}
	require.True(paths["defaults.strategy"])
	require.True(paths["bags[0].name"])
	require.True(paths["bags[0].size"])
	require.True(paths["bags[1].size"])
	require.True(paths["bags[2].name"])
	require.Contains(err.Error(), "config validation failed")
}

func TestLoadBadYAML(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(dir)
	writeFile(t, l.Paths().DefaultPath(), "bags: [")
	_, err := l.Load()
	require.Error(t, err)
}

func TestBagSpecSame(t *testing.T) {
	require := require.New(t)

	s1, s2 := uint64(1), uint64(1)
	a := BagSpec{Name: "a", Size: 3, Seed: &s1, Strategy: marble.StrategyIndexWalk}
	b := BagSpec{Name: "a", Size: 3, Seed: &s2, Strategy: marble.StrategyIndexWalk}
	require.True(a.Same(b))

	b.Seed = nil
	require.False(a.Same(b))

	b = a
	b.Size = 4
	require.False(a.Same(b))

	cfg := a.BagConfig()
	require.Equal(marble.StrategyIndexWalk, cfg.Strategy)
}

func TestWatcherReloads(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	l := NewLoader(dir)
	writeFile(t, l.Paths().DefaultPath(), defaultYAML)
	_, err := l.Load()
	require.NoError(err)

	got := make(chan []BagSpec, 1)
	w := NewWatcher(l, 10*time.Millisecond, func(specs []BagSpec) {
		select {
		case got <- specs:
		default:
		}
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	// let the watcher prime its mtimes before touching the file
	time.Sleep(50 * time.Millisecond)
	writeFile(t, l.Paths().OverridePath("loot"), "size: 7\n")

	select {
	case specs := <-got:
		require.Len(specs, 2)
		require.Equal(7, specs[0].Size)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload")
	}

	cancel()
	<-done
}

func TestShippedConfig(t *testing.T) {
	require := require.New(t)

	specs, err := NewLoader(filepath.Join("..", "..", "config")).Load()
	require.NoError(err)
	require.Len(specs, 3)

	byName := map[string]BagSpec{}
	for _, s := range specs {
		byName[s.Name] = s
	}
	require.Equal(312, byName["card-shoe"].Size)
	require.False(byName["card-shoe"].AutoReset)
	require.True(byName["loot"].AutoReset)
	require.Equal(marble.StrategyBitScan, byName["floor-events"].Strategy)
	require.Equal(marble.SourceMT19937, byName["floor-events"].RNG)
}
