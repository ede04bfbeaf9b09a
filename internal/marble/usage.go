package marble

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

var ErrBadSnapshot = errors.New("malformed bag snapshot")

// ExportUsage returns a copy of the drawn bitmask, ceil(Size()/64) words,
// bit i of word i/64 set when value i has been drawn.
func (b *Bag) ExportUsage() []uint64 {
	out := make([]uint64, wordsFor(b.size))
	copy(out, b.removed.Bytes())
	return out
}

// ImportUsage restores a bitmask produced by ExportUsage.
// Only the overlapping prefix of words is copied; the remainder is zeroed and
// bits past Size() are dropped. The drawn count is recomputed from the bits.
func (b *Bag) ImportUsage(words []uint64) {
	dst := b.removed.Bytes()
	n := copy(dst, words)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	if last := len(dst) - 1; last >= 0 {
		dst[last] &^= b.tailMask(last)
	}
	b.numRemoved = int(b.removed.Count())
	b.cursor = 0
}

// Snapshot is the persistable state of a bag, without its random source.
type Snapshot struct {
	Size      int
	AutoReset bool
	Strategy  Strategy
	Usage     []uint64
}

func (b *Bag) Snapshot() Snapshot {
	return Snapshot{
		Size:      b.size,
		AutoReset: b.autoReset,
		Strategy:  b.strategy,
		Usage:     b.ExportUsage(),
	}
}

// Restore applies the usage of s. Size, AutoReset and Strategy stay those of b.
func (b *Bag) Restore(s Snapshot) {
	b.ImportUsage(s.Usage)
}

// snapshot wire fields
const (
	fieldSize      protowire.Number = 1
	fieldAutoReset protowire.Number = 2
	fieldStrategy  protowire.Number = 3
	fieldUsage     protowire.Number = 4
)

// MarshalSnapshot encodes s in protobuf wire format.
func MarshalSnapshot(s Snapshot) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldSize, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(s.Size))
	if s.AutoReset {
		buf = protowire.AppendTag(buf, fieldAutoReset, protowire.VarintType)
		buf = protowire.AppendVarint(buf, protowire.EncodeBool(true))
	}
	if s.Strategy != "" {
		buf = protowire.AppendTag(buf, fieldStrategy, protowire.BytesType)
		buf = protowire.AppendString(buf, string(s.Strategy))
	}
	if len(s.Usage) > 0 {
		var packed []byte
		for _, w := range s.Usage {
			packed = protowire.AppendFixed64(packed, w)
		}
		buf = protowire.AppendTag(buf, fieldUsage, protowire.BytesType)
		buf = protowire.AppendBytes(buf, packed)
	}
	return buf
}

// UnmarshalSnapshot decodes a snapshot produced by MarshalSnapshot.
// Unknown fields are skipped.
func UnmarshalSnapshot(b []byte) (Snapshot, error) {
	var s Snapshot
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrBadSnapshot, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldSize && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return Snapshot{}, fmt.Errorf("%w: size: %v", ErrBadSnapshot, protowire.ParseError(m))
			}
			s.Size = int(v)
			n = m
		case num == fieldAutoReset && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return Snapshot{}, fmt.Errorf("%w: auto_reset: %v", ErrBadSnapshot, protowire.ParseError(m))
			}
			s.AutoReset = protowire.DecodeBool(v)
			n = m
		case num == fieldStrategy && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return Snapshot{}, fmt.Errorf("%w: strategy: %v", ErrBadSnapshot, protowire.ParseError(m))
			}
			s.Strategy = Strategy(v)
			n = m
		case num == fieldUsage && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Snapshot{}, fmt.Errorf("%w: usage: %v", ErrBadSnapshot, protowire.ParseError(m))
			}
			for len(v) > 0 {
				w, k := protowire.ConsumeFixed64(v)
				if k < 0 {
					return Snapshot{}, fmt.Errorf("%w: usage word: %v", ErrBadSnapshot, protowire.ParseError(k))
				}
				s.Usage = append(s.Usage, w)
				v = v[k:]
			}
			n = m
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return Snapshot{}, fmt.Errorf("%w: field %d: %v", ErrBadSnapshot, num, protowire.ParseError(m))
			}
			n = m
		}
		b = b[n:]
	}
	return s, nil
}
