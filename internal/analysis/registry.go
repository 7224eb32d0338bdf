package analysis

import (
	"fmt"
	"math"
	"strings"
)

// Goal is the direction in which a metric improves.
type Goal string

const (
	Maximize Goal = "maximize"
	Minimize Goal = "minimize"
)

// ParseGoal accepts "maximize" or "minimize" (case-insensitive).
func ParseGoal(s string) (Goal, error) {
	switch Goal(strings.ToLower(strings.TrimSpace(s))) {
	case Maximize:
		return Maximize, nil
	case Minimize:
		return Minimize, nil
	}
	return "", fmt.Errorf("invalid optimization goal %q (want maximize or minimize)", s)
}

// Better reports whether a strictly beats b under g.
func (g Goal) Better(a, b float64) bool {
	if g == Minimize {
		return a < b
	}
	return a > b
}

// MetricInfo describes one report field that a search can optimize.
type MetricInfo struct {
	Key   string
	Label string
	// Goal is the direction in which the metric is considered better.
	Goal  Goal
	value func(r *Report) (float64, bool)
}

// Value extracts the metric from r. ok is false when the metric is undefined or NaN.
func (m MetricInfo) Value(r *Report) (float64, bool) {
	if r == nil || m.value == nil {
		return 0, false
	}
	v, ok := m.value(r)
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func scalar(f func(r *Report) float64) func(r *Report) (float64, bool) {
	return func(r *Report) (float64, bool) { return f(r), true }
}

func optional(f func(r *Report) *float64) func(r *Report) (float64, bool) {
	return func(r *Report) (float64, bool) {
		p := f(r)
		if p == nil {
			return 0, false
		}
		return *p, true
	}
}

var metricCatalog = []MetricInfo{
	{Key: "profitFactor", Label: "Profit Factor", Goal: Maximize, value: optional(func(r *Report) *float64 { return r.ProfitFactor })},
	{Key: "sortinoRatio", Label: "Sortino Ratio", Goal: Maximize, value: scalar(func(r *Report) float64 { return r.SortinoRatio })},
	{Key: "upi", Label: "UPI", Goal: Maximize, value: scalar(func(r *Report) float64 { return r.UPI })},
	{Key: "sharpeRatio", Label: "Sharpe Ratio", Goal: Maximize, value: scalar(func(r *Report) float64 { return r.SharpeRatio })},
	{Key: "captureRatio", Label: "Capture Ratio", Goal: Maximize, value: optional(func(r *Report) *float64 { return r.CaptureRatio })},
	{Key: "maxDrawdown", Label: "Max Drawdown %", Goal: Minimize, value: scalar(func(r *Report) float64 { return r.MaxDrawdown })},
	{Key: "maxDrawdownInDollars", Label: "Max Drawdown $", Goal: Minimize, value: scalar(func(r *Report) float64 { return r.MaxDrawdownInDollars })},
	{Key: "monthlyAvgProfit", Label: "Profit / Month", Goal: Maximize, value: scalar(func(r *Report) float64 { return r.MonthlyAvgProfit })},
	{Key: "profitMaxDD_Ratio", Label: "Ret/DD", Goal: Maximize, value: optional(func(r *Report) *float64 { return r.ProfitMaxDDRatio })},
	{Key: "monthlyProfitToDollarDD", Label: "Profit/Month / DD$", Goal: Maximize, value: optional(func(r *Report) *float64 { return r.MonthlyProfitToDollarDD })},
	{Key: "maxConsecutiveLosingMonths", Label: "Max Losing Months", Goal: Minimize, value: scalar(func(r *Report) float64 { return float64(r.MaxConsecutiveLosingMonths) })},
	{Key: "winningPercentage", Label: "Win %", Goal: Maximize, value: scalar(func(r *Report) float64 { return r.WinningPercentage })},
	{Key: "maxStagnationTrades", Label: "Stagnation (Trades)", Goal: Minimize, value: scalar(func(r *Report) float64 { return float64(r.MaxStagnationTrades) })},
	{Key: "totalTrades", Label: "Num. Trades", Goal: Maximize, value: scalar(func(r *Report) float64 { return float64(r.TotalTrades) })},
	{Key: "maxStagnationDays", Label: "Stagnation (Days)", Goal: Minimize, value: scalar(func(r *Report) float64 { return float64(r.MaxStagnationDays) })},
	{Key: "sqn", Label: "SQN", Goal: Maximize, value: scalar(func(r *Report) float64 { return r.SQN })},
	{Key: "ulcerIndexInDollars", Label: "Ulcer Index $", Goal: Minimize, value: scalar(func(r *Report) float64 { return r.UlcerIndexInDollars })},
}

// Metrics lists every optimizable metric in display order.
func Metrics() []MetricInfo {
	out := make([]MetricInfo, len(metricCatalog))
	copy(out, metricCatalog)
	return out
}

// LookupMetric finds a metric by its report key.
func LookupMetric(key string) (MetricInfo, bool) {
	for _, m := range metricCatalog {
		if m.Key == key {
			return m, true
		}
	}
	return MetricInfo{}, false
}
