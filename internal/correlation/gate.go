package correlation

import "fmt"

// Violation names the first pair found above the threshold.
type Violation struct {
	I, J  int
	Value float64
}

func (v Violation) Error() string {
	return fmt.Sprintf("strategies %d and %d are correlated at %.4f", v.I, v.J, v.Value)
}

// Gate rejects index sets containing a pair correlated strictly above Threshold.
type Gate struct {
	Matrix    *Matrix
	Threshold float64
}

// Check returns the first offending pair, scanning pairs in index order.
// Undefined correlations never reject.
func (g Gate) Check(indices []int) (Violation, bool) {
	for a := 0; a < len(indices); a++ {
		for b := a + 1; b < len(indices); b++ {
			i, j := indices[a], indices[b]
			if c := g.Matrix.At(i, j); c > g.Threshold {
				return Violation{I: i, J: j, Value: c}, false
			}
		}
	}
	return Violation{}, true
}

// Admits reports whether every pair in indices is at or below the threshold.
func (g Gate) Admits(indices []int) bool {
	_, ok := g.Check(indices)
	return ok
}
