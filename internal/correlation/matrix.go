// Package correlation measures how similar strategies' daily returns are and gates
// portfolios whose members move together.
package correlation

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"strategy-databank/internal/analysis"
)

// Matrix is a symmetric table of pairwise Pearson correlations. Entries are NaN
// where a pair has no usable overlap or a series is missing.
type Matrix struct {
	n    int
	vals []float64
}

// NewMatrix correlates every pair of series over the dates both contain. A nil
// entry in series marks a strategy that could not be analyzed.
func NewMatrix(series []*analysis.Series) *Matrix {
	n := len(series)
	m := &Matrix{n: n, vals: make([]float64, n*n)}
	indexes := make([]map[time.Time]float64, n)
	for i, s := range series {
		if s != nil {
			indexes[i] = s.Index()
		}
	}
	for i := 0; i < n; i++ {
		m.set(i, i, 1)
		if series[i] == nil {
			m.set(i, i, math.NaN())
		}
		for j := i + 1; j < n; j++ {
			var c float64
			if series[i] == nil || series[j] == nil {
				c = math.NaN()
			} else {
				c = pearson(series[i], indexes[j])
			}
			m.set(i, j, c)
			m.set(j, i, c)
		}
	}
	return m
}

func pearson(a *analysis.Series, b map[time.Time]float64) float64 {
	var xs, ys []float64
	for i, d := range a.Dates {
		y, ok := b[d]
		if !ok || math.IsNaN(y) || math.IsNaN(a.Values[i]) {
			continue
		}
		xs = append(xs, a.Values[i])
		ys = append(ys, y)
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}

func (m *Matrix) set(i, j int, v float64) { m.vals[i*m.n+j] = v }

// Size is the number of strategies.
func (m *Matrix) Size() int { return m.n }

// At returns the correlation between strategies i and j.
func (m *Matrix) At(i, j int) float64 { return m.vals[i*m.n+j] }

// Rows returns a copy of the matrix as nested slices.
func (m *Matrix) Rows() [][]float64 {
	out := make([][]float64, m.n)
	for i := range out {
		out[i] = append([]float64(nil), m.vals[i*m.n:(i+1)*m.n]...)
	}
	return out
}
