package marble

import "math/bits"

const (
	wordSize = 64
	allBits  = ^uint64(0)
)

// walkPick rolls k in [0, Remaining()) and walks cyclically from the cursor
// to the k-th undrawn slot. Every undrawn slot is equally likely.
// The caller guarantees at least one slot is free.
func (b *Bag) walkPick() int {
	k := b.rng.IntN(b.Remaining())
	i := b.nextFree(b.cursor)
	for ; k > 0; k-- {
		i = b.nextFree(i + 1)
	}
	b.cursor = i + 1
	if b.cursor >= b.size {
		b.cursor = 0
	}
	return i
}

// nextFree returns the first undrawn index at or after from, wrapping to 0.
func (b *Bag) nextFree(from int) int {
	if from >= b.size {
		from = 0
	}
	if i, ok := b.removed.NextClear(uint(from)); ok && int(i) < b.size {
		return int(i)
	}
	i, _ := b.removed.NextClear(0)
	return int(i)
}

// scanPick rolls a candidate over the full range, skips saturated words and
// takes the first free bit at or after the candidate's offset within the word.
//
// This is not uniform: slots right after a run of drawn slots absorb the
// probability of that run.
func (b *Bag) scanPick() int {
	words := b.removed.Bytes()
	c := b.rng.IntN(b.size)
	w, off := c/wordSize, c%wordSize
	for {
		v := words[w] | b.tailMask(w)
		if v != allBits {
			r := bits.RotateLeft64(v, -off)
			bit := (off + bits.TrailingZeros64(^r)) % wordSize
			return w*wordSize + bit
		}
		w++
		if w >= len(words) {
			w = 0
		}
	}
}

// tailMask has the bits of word w that lie past the end of the bag set.
func (b *Bag) tailMask(w int) uint64 {
	rem := b.size % wordSize
	if rem == 0 || w != (b.size-1)/wordSize {
		return 0
	}
	return allBits << uint(rem)
}

func wordsFor(size int) int {
	return (size + wordSize - 1) / wordSize
}
