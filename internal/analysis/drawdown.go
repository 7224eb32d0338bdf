package analysis

import "math"

type drawdownStats struct {
	maxPct     float64
	maxDollars float64
	dollars    []float64
}

// drawdowns measures the gap between the running maximum and each equity point.
func drawdowns(curve []float64) drawdownStats {
	st := drawdownStats{dollars: make([]float64, len(curve))}
	maxPct := math.Inf(-1)
	runMax := math.Inf(-1)
	for i, eq := range curve {
		if eq > runMax {
			runMax = eq
		}
		dd := runMax - eq
		st.dollars[i] = dd
		if dd > st.maxDollars {
			st.maxDollars = dd
		}
		if pct := dd / runMax; pct > maxPct {
			maxPct = pct
		}
	}
	st.maxPct = math.Abs(maxPct) * 100
	return st
}

// ulcerIndex is the RMS percentage drawdown with the peak seeded at initial.
func ulcerIndex(curve []float64, initial float64) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := initial
	var sum float64
	for _, p := range curve {
		peak = math.Max(peak, p)
		var dd float64
		if peak > 0 {
			dd = (p/peak - 1) * 100
		}
		sum += dd * dd
	}
	return math.Sqrt(sum / float64(len(curve)))
}

// ulcerIndexDollars is the RMS dollar drawdown.
func ulcerIndexDollars(dollars []float64) float64 {
	if len(dollars) == 0 {
		return 0
	}
	var sum float64
	for _, d := range dollars {
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(dollars)))
}

// stagnationTrades is the longest run of trades without a strictly higher equity
// point, counting the trade that sets the new peak. An open trailing run counts.
func stagnationTrades(curve []float64) int {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0]
	since, longest := 0, 0
	for _, p := range curve[1:] {
		since++
		if p > peak {
			longest = max(longest, since)
			peak = p
			since = 0
		}
	}
	return max(longest, since)
}

// stagnationDays is the longest distance in days between a day and the last day
// whose equity matched or exceeded the previous peak.
func stagnationDays(c *Curves) int {
	if len(c.ByDay) == 0 {
		return 0
	}
	peakIdx := 0
	longest := 0
	for i, eq := range c.ByDay {
		if eq >= c.ByDay[peakIdx] {
			peakIdx = i
		}
		longest = max(longest, daysApart(c, peakIdx, i))
	}
	return longest
}

func daysApart(c *Curves, from, to int) int {
	return int(c.Days[to].Sub(c.Days[from]).Hours() / 24)
}
