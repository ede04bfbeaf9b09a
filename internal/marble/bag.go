package marble

import (
	"errors"

	"github.com/bits-and-blooms/bitset"
)

// Empty is returned by Draw when no marbles remain and auto reset is off.
const Empty = -1

var (
	ErrEmpty           = errors.New("marble bag is empty")
	ErrInvalidSize     = errors.New("invalid bag size; must be >= 1")
	ErrInvalidStrategy = errors.New("invalid selection strategy")
)

// Strategy picks how the next marble is located among the undrawn ones.
type Strategy string

const (
	// StrategyIndexWalk rolls k over the remaining count and walks to the k-th undrawn slot.
	StrategyIndexWalk Strategy = "index_walk"
	// StrategyBitScan rolls over the full range and scans the word for a free bit.
	StrategyBitScan Strategy = "bit_scan"
)

// Config holds the construction options of a Bag.
type Config struct {
	AutoReset bool     // refill silently when the bag runs dry
	Strategy  Strategy // default StrategyIndexWalk
}

func (c *Config) normalize() error {
	switch c.Strategy {
	case "":
		c.Strategy = StrategyIndexWalk
	case StrategyIndexWalk, StrategyBitScan:
	default:
		return ErrInvalidStrategy
	}
	return nil
}

// noCopy may be embedded into structs which must not be copied after first use.
// See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Bag hands out each value of [0, Size()) at most once per cycle.
//
// A Bag is not safe for concurrent use. It owns its random source, so it is
// passed around by pointer and never copied: a copy would replay the same
// sequence.
type Bag struct {
	noCopy noCopy

	size       int
	removed    *bitset.BitSet
	numRemoved int
	cursor     int
	autoReset  bool
	strategy   Strategy
	rng        RandomSource
}

// New creates a bag of size marbles.
// A nil cfg means auto reset off and index walk. A nil rng means DefaultRNG.
func New(size int, cfg *Config, rng RandomSource) (*Bag, error) {
	if size < 1 {
		return nil, ErrInvalidSize
	}
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	if err := c.normalize(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = DefaultRNG()
	}
	return &Bag{
		size:      size,
		removed:   bitset.New(uint(size)),
		autoReset: c.AutoReset,
		strategy:  c.Strategy,
		rng:       rng,
	}, nil
}

// Draw returns the next marble value, or Empty if none remain and auto reset is off.
func (b *Bag) Draw() int {
	if !b.HasValues() {
		if !b.autoReset {
			return Empty
		}
		b.Reset()
	}

	var v int
	switch b.strategy {
	case StrategyBitScan:
		v = b.scanPick()
	default:
		v = b.walkPick()
	}
	b.removed.Set(uint(v))
	b.numRemoved++
	return v
}

// TryDraw is Draw reporting exhaustion as ErrEmpty.
func (b *Bag) TryDraw() (int, error) {
	v := b.Draw()
	if v == Empty {
		return Empty, ErrEmpty
	}
	return v, nil
}

// DrawN draws up to n values, stopping early once the bag is exhausted.
func (b *Bag) DrawN(n int) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		v := b.Draw()
		if v == Empty {
			break
		}
		out = append(out, v)
	}
	return out
}

// Remaining returns how many values can still be drawn this cycle.
func (b *Bag) Remaining() int { return b.size - b.numRemoved }

// HasValues reports whether any value remains.
func (b *Bag) HasValues() bool { return b.Remaining() > 0 }

// Reset returns all marbles to the bag.
func (b *Bag) Reset() {
	b.removed.ClearAll()
	b.numRemoved = 0
	b.cursor = 0
}

// SetRandomSource replaces the random source used by future draws.
// The bag takes ownership of rng; nil restores DefaultRNG.
func (b *Bag) SetRandomSource(rng RandomSource) {
	if rng == nil {
		rng = DefaultRNG()
	}
	b.rng = rng
}

// IsDrawn reports whether v has been drawn since the last reset.
// Values outside [0, Size()) are never drawn.
func (b *Bag) IsDrawn(v int) bool {
	if v < 0 || v >= b.size {
		return false
	}
	return b.removed.Test(uint(v))
}

// RemainingValues lists the undrawn values in ascending order.
func (b *Bag) RemainingValues() []int {
	out := make([]int, 0, b.Remaining())
	for i, ok := b.removed.NextClear(0); ok && int(i) < b.size; i, ok = b.removed.NextClear(i + 1) {
		out = append(out, int(i))
	}
	return out
}

func (b *Bag) Size() int          { return b.size }
func (b *Bag) AutoReset() bool    { return b.autoReset }
func (b *Bag) Strategy() Strategy { return b.strategy }
