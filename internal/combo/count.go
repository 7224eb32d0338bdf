// Package combo enumerates index subsets of a strategy universe, either
// exhaustively in lexicographic order or by uniform random sampling.
package combo

import (
	"math"
	"math/big"
)

// MaxSize caps the number of strategies in one portfolio.
const MaxSize = 12

// Bounds clamps [minSize, maxSize] to what a universe of n can produce. ok is false
// when the range is empty.
func Bounds(n, minSize, maxSize int) (lo, hi int, ok bool) {
	lo = max(minSize, 1)
	hi = min(maxSize, MaxSize, n)
	return lo, hi, lo <= hi
}

// Count returns the number of subsets of n items with sizes in [minSize, maxSize]
// after clamping. The result saturates at math.MaxUint64.
func Count(n, minSize, maxSize int) uint64 {
	lo, hi, ok := Bounds(n, minSize, maxSize)
	if !ok {
		return 0
	}
	total := new(big.Int)
	c := new(big.Int)
	for k := lo; k <= hi; k++ {
		total.Add(total, c.Binomial(int64(n), int64(k)))
	}
	if !total.IsUint64() {
		return math.MaxUint64
	}
	return total.Uint64()
}
