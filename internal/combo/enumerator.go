package combo

import (
	"math/rand/v2"
	"slices"
)

// Mode is the enumeration strategy in use.
type Mode string

const (
	ModeExhaustive Mode = "exhaustive"
	ModeMonteCarlo Mode = "monte_carlo"
)

// Enumerator yields index subsets. Returned slices are owned by the caller.
type Enumerator interface {
	// Next returns the next subset, or false when the enumeration is exhausted.
	Next() ([]int, bool)
	Mode() Mode
	// Total is the size of the space being drawn from.
	Total() uint64
}

// Exhaustive walks every subset of sizes [min, max], smallest size first and
// lexicographic within a size.
type Exhaustive struct {
	universe []int
	lo, hi   int
	total    uint64

	k   int
	pos []int
}

// NewExhaustive enumerates subsets of universe with sizes clamped by Bounds.
func NewExhaustive(universe []int, minSize, maxSize int) *Exhaustive {
	lo, hi, ok := Bounds(len(universe), minSize, maxSize)
	e := &Exhaustive{
		universe: append([]int(nil), universe...),
		lo:       lo,
		hi:       hi,
		total:    Count(len(universe), minSize, maxSize),
	}
	if !ok {
		e.hi = lo - 1
	}
	e.Reset()
	return e
}

// Reset rewinds to the first subset.
func (e *Exhaustive) Reset() {
	e.k = e.lo
	e.pos = nil
}

func (e *Exhaustive) Mode() Mode     { return ModeExhaustive }
func (e *Exhaustive) Total() uint64 { return e.total }

func (e *Exhaustive) Next() ([]int, bool) {
	if e.k > e.hi {
		return nil, false
	}
	if e.pos == nil {
		e.pos = make([]int, e.k)
		for i := range e.pos {
			e.pos[i] = i
		}
		return e.emit(), true
	}
	if e.advance() {
		return e.emit(), true
	}
	e.k++
	e.pos = nil
	return e.Next()
}

// advance moves pos to the next k-subset in lexicographic order.
func (e *Exhaustive) advance() bool {
	n := len(e.universe)
	i := e.k - 1
	for i >= 0 && e.pos[i] == n-e.k+i {
		i--
	}
	if i < 0 {
		return false
	}
	e.pos[i]++
	for j := i + 1; j < e.k; j++ {
		e.pos[j] = e.pos[j-1] + 1
	}
	return true
}

func (e *Exhaustive) emit() []int {
	out := make([]int, e.k)
	for i, p := range e.pos {
		out[i] = e.universe[p]
	}
	return out
}

// MonteCarlo draws a uniformly random size, then a uniformly random subset of that
// size, returned in ascending order. It never runs out.
type MonteCarlo struct {
	universe []int
	lo, hi   int
	total    uint64
	rng      *rand.Rand
	scratch  []int
}

// NewMonteCarlo samples subsets of universe using rng. The size range must be
// non-empty after clamping.
func NewMonteCarlo(universe []int, minSize, maxSize int, rng *rand.Rand) *MonteCarlo {
	lo, hi, _ := Bounds(len(universe), minSize, maxSize)
	return &MonteCarlo{
		universe: append([]int(nil), universe...),
		lo:       lo,
		hi:       hi,
		total:    Count(len(universe), minSize, maxSize),
		rng:      rng,
		scratch:  make([]int, len(universe)),
	}
}

func (m *MonteCarlo) Mode() Mode     { return ModeMonteCarlo }
func (m *MonteCarlo) Total() uint64 { return m.total }

func (m *MonteCarlo) Next() ([]int, bool) {
	if m.lo > m.hi {
		return nil, false
	}
	k := m.lo + m.rng.IntN(m.hi-m.lo+1)
	copy(m.scratch, m.universe)
	// Partial Fisher-Yates: the first k slots become the sample.
	for i := 0; i < k; i++ {
		j := i + m.rng.IntN(len(m.scratch)-i)
		m.scratch[i], m.scratch[j] = m.scratch[j], m.scratch[i]
	}
	out := append([]int(nil), m.scratch[:k]...)
	slices.Sort(out)
	return out, true
}

// New picks exhaustive enumeration unless the space is larger than threshold.
// A threshold of 0 always enumerates exhaustively.
func New(universe []int, minSize, maxSize int, threshold uint64, rng *rand.Rand) Enumerator {
	total := Count(len(universe), minSize, maxSize)
	if threshold > 0 && total > threshold {
		return NewMonteCarlo(universe, minSize, maxSize, rng)
	}
	return NewExhaustive(universe, minSize, maxSize)
}
