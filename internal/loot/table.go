package loot

import (
	"errors"
	"fmt"
	"sort"

	"github.com/xtding233/marble-bag/internal/marble"
)

var ErrInvalidTable = errors.New("invalid loot table")

// Entry is one drop; Weight is how many marbles it owns in the bag.
type Entry struct {
	Name   string
	Weight int
}

// Table maps the marbles of a bag onto weighted drops.
// Over one full cycle every entry drops exactly Weight times.
type Table struct {
	entries []Entry
	bounds  []int // bounds[i] = sum of weights of entries[0..i]
	bag     *marble.Bag
}

// NewTable builds a table of len(entries) drops. cfg and rng go to the underlying bag.
func NewTable(entries []Entry, cfg *marble.Config, rng marble.RandomSource) (*Table, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrInvalidTable)
	}
	bounds := make([]int, len(entries))
	total := 0
	for i, e := range entries {
		if e.Weight <= 0 {
			return nil, fmt.Errorf("%w: entry %q weight must be > 0", ErrInvalidTable, e.Name)
		}
		total += e.Weight
		bounds[i] = total
	}
	bag, err := marble.New(total, cfg, rng)
	if err != nil {
		return nil, err
	}
	return &Table{
		entries: append([]Entry(nil), entries...),
		bounds:  bounds,
		bag:     bag,
	}, nil
}

// Draw returns the next drop, false once the bag is exhausted.
func (t *Table) Draw() (string, bool) {
	v := t.bag.Draw()
	if v == marble.Empty {
		return "", false
	}
	return t.entries[t.entryFor(v)].Name, true
}

// entryFor finds the entry owning marble v.
func (t *Table) entryFor(v int) int {
	return sort.Search(len(t.bounds), func(i int) bool { return t.bounds[i] > v })
}

func (t *Table) Remaining() int   { return t.bag.Remaining() }
func (t *Table) Reset()           { t.bag.Reset() }
func (t *Table) Bag() *marble.Bag { return t.bag }
func (t *Table) Entries() []Entry { return append([]Entry(nil), t.entries...) }
