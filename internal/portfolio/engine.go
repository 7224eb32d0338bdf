// Package portfolio builds weighted portfolios out of strategy trade lists and
// runs them through the metrics engine.
package portfolio

import (
	"fmt"
	"sort"

	"strategy-databank/internal/analysis"
	"strategy-databank/internal/model"
)

// Spec selects strategies for one portfolio.
type Spec struct {
	Indices []int
	// Weights scale each member's PnL. Nil means 1/len(Indices) each.
	Weights []float64
	// TargetMaxDD, when positive, rescales the portfolio so its max dollar
	// drawdown equals this amount.
	TargetMaxDD float64
}

// Result is one analyzed portfolio.
type Result struct {
	Trades   []model.Trade
	Scale    float64
	Analysis *analysis.Result
	Ledger   []LedgerRow
}

type Engine struct {
	opts []analysis.Option
}

func New(opts ...analysis.Option) *Engine { return &Engine{opts: opts} }

// EqualWeights returns n weights of 1/n.
func EqualWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

// Combine merges the selected strategies' trades, each scaled by its weight.
func Combine(strategies []model.Strategy, indices []int, weights []float64) ([]model.Trade, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("portfolio has no strategies")
	}
	if weights == nil {
		weights = EqualWeights(len(indices))
	}
	if len(weights) != len(indices) {
		return nil, fmt.Errorf("got %d weights for %d strategies", len(weights), len(indices))
	}
	var n int
	for _, idx := range indices {
		if idx < 0 || idx >= len(strategies) {
			return nil, fmt.Errorf("strategy index %d out of range [0,%d)", idx, len(strategies))
		}
		n += len(strategies[idx].Trades)
	}
	out := make([]model.Trade, 0, n)
	for i, idx := range indices {
		for _, t := range strategies[idx].Trades {
			out = append(out, t.Scaled(weights[i]))
		}
	}
	return out, nil
}

// Run builds and analyzes one portfolio.
func (e *Engine) Run(strategies []model.Strategy, bench model.Benchmark, spec Spec) (*Result, error) {
	trades, err := Combine(strategies, spec.Indices, spec.Weights)
	if err != nil {
		return nil, err
	}
	res, err := analysis.Analyze(trades, bench, e.opts...)
	if err != nil {
		return nil, fmt.Errorf("analyze portfolio %v: %w", spec.Indices, err)
	}

	scale := 1.0
	if spec.TargetMaxDD > 0 {
		scale = NormalizationFactor(res.Report, spec.TargetMaxDD)
		if scale != 1 {
			trades = scaleTrades(trades, scale)
			res, err = analysis.Analyze(trades, bench, e.opts...)
			if err != nil {
				return nil, fmt.Errorf("analyze normalized portfolio %v: %w", spec.Indices, err)
			}
		}
	}

	return &Result{
		Trades:   trades,
		Scale:    scale,
		Analysis: res,
		Ledger:   BuildLedger(trades, res.Report),
	}, nil
}

// NormalizationFactor is the multiplier that brings the report's max dollar
// drawdown to target. It is 1 when the report has no drawdown.
func NormalizationFactor(r *analysis.Report, target float64) float64 {
	if r == nil || !(r.MaxDrawdownInDollars > 0) || !(target > 0) {
		return 1
	}
	return target / r.MaxDrawdownInDollars
}

func scaleTrades(trades []model.Trade, f float64) []model.Trade {
	out := make([]model.Trade, len(trades))
	for i, t := range trades {
		out[i] = t.Scaled(f)
	}
	return out
}

// SortedIndices returns a sorted copy of idx.
func SortedIndices(idx []int) []int {
	out := append([]int(nil), idx...)
	sort.Ints(out)
	return out
}
