package loot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xtding233/marble-bag/internal/marble"
)

func TestNewTableInvalid(t *testing.T) {
	require := require.New(t)

	_, err := NewTable(nil, nil, nil)
	require.ErrorIs(err, ErrInvalidTable)

	_, err = NewTable([]Entry{{Name: "sword", Weight: 1}, {Name: "shield", Weight: 0}}, nil, nil)
	require.ErrorIs(err, ErrInvalidTable)

	_, err = NewTable([]Entry{{Name: "sword", Weight: 1}}, &marble.Config{Strategy: "nope"}, nil)
	require.ErrorIs(err, marble.ErrInvalidStrategy)
}

func TestTableCycleMatchesWeights(t *testing.T) {
	require := require.New(t)

	entries := []Entry{
		{Name: "common", Weight: 7},
		{Name: "rare", Weight: 2},
		{Name: "legendary", Weight: 1},
	}
	tbl, err := NewTable(entries, nil, marble.NewSeededRNG(2017))
	require.NoError(err)
	require.Equal(10, tbl.Remaining())

	got := map[string]int{}
	for {
		name, ok := tbl.Draw()
		if !ok {
			break
		}
		got[name]++
	}
	require.Equal(map[string]int{"common": 7, "rare": 2, "legendary": 1}, got)
	require.Zero(tbl.Remaining())

	tbl.Reset()
	require.Equal(10, tbl.Remaining())
}

func TestTableAutoReset(t *testing.T) {
	require := require.New(t)

	tbl, err := NewTable([]Entry{{Name: "a", Weight: 1}, {Name: "b", Weight: 1}},
		&marble.Config{AutoReset: true}, marble.NewSeededRNG(1))
	require.NoError(err)
	for i := 0; i < 5; i++ {
		_, ok := tbl.Draw()
		require.True(ok)
	}
	require.Equal(1, tbl.Remaining())
	require.True(tbl.Bag().AutoReset())
}

func TestEntryFor(t *testing.T) {
	require := require.New(t)

	tbl, err := NewTable([]Entry{{Name: "a", Weight: 2}, {Name: "b", Weight: 3}}, nil, nil)
	require.NoError(err)
	want := []int{0, 0, 1, 1, 1}
	for v, idx := range want {
		require.Equal(idx, tbl.entryFor(v), "marble %d", v)
	}
	require.Len(tbl.Entries(), 2)
}
