package marble

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mathext/prng"
)

// RandomSource abstract

type RandomSource interface {
	IntN(n int) int // [0, n)
}

// Source kinds accepted by NewSource.
const (
	SourcePCG     = "pcg"
	SourceMT19937 = "mt19937"
	SourceCrypto  = "crypto"
)

// time seeded PCG : default generation method
func DefaultRNG() RandomSource {
	seed := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(seed, seed>>32))
}

// Replicable RNG (e.g. tests, replays, Monte Carlo)
func NewSeededRNG(seed uint64) RandomSource {
	return rand.New(rand.NewPCG(seed, 0))
}

// crypto random
type cryptoRNG struct{}

func CryptoRNG() RandomSource { return cryptoRNG{} }

func (cryptoRNG) IntN(n int) int {
	if n <= 0 {
		panic("marble: invalid argument to IntN")
	}
	bound := uint64(n)
	// reject the top zone so every residue is equally likely
	limit := math.MaxUint64 - math.MaxUint64%bound
	var buf [8]byte
	for {
		if _, err := cryptoRand.Read(buf[:]); err != nil {
			// backto math / rand/ v2
			return rand.IntN(n)
		}
		u := binary.BigEndian.Uint64(buf[:])
		if u < limit {
			return int(u % bound)
		}
	}
}

// mtRNG adapts gonum's MT19937 to RandomSource.
type mtRNG struct {
	src *prng.MT19937
}

// NewMTSource returns a Mersenne Twister source seeded with seed.
func NewMTSource(seed uint64) RandomSource {
	src := prng.NewMT19937()
	src.Seed(seed)
	return &mtRNG{src: src}
}

func (m *mtRNG) IntN(n int) int {
	if n <= 0 {
		panic("marble: invalid argument to IntN")
	}
	return int(m.uint64Inclusive(uint64(n - 1)))
}

// uint64Inclusive returns a number in [0, n].
func (m *mtRNG) uint64Inclusive(n uint64) uint64 {
	// n+1 is a power of two, mask is enough
	if n&(n+1) == 0 {
		return m.src.Uint64() & n
	}
	maximum := (1 << 63) - 1 - (1<<63)%(n+1)
	v := m.src.Uint64() & math.MaxInt64
	for v > maximum {
		v = m.src.Uint64() & math.MaxInt64
	}
	return v % (n + 1)
}

// NewSource builds a RandomSource by kind. A nil seed means time seeded.
func NewSource(kind string, seed *uint64) (RandomSource, error) {
	s := uint64(time.Now().UnixNano())
	if seed != nil {
		s = *seed
	}
	switch kind {
	case "", SourcePCG:
		if seed == nil {
			return DefaultRNG(), nil
		}
		return NewSeededRNG(s), nil
	case SourceMT19937:
		return NewMTSource(s), nil
	case SourceCrypto:
		return CryptoRNG(), nil
	default:
		return nil, fmt.Errorf("unknown random source %q", kind)
	}
}
