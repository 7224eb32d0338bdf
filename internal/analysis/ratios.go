package analysis

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"strategy-databank/internal/model"
)

// SentinelRatio stands in for an unbounded ratio when there is no downside to divide by.
const SentinelRatio = 999.0

func sentinel(mean float64) float64 {
	if mean > 0 {
		return SentinelRatio
	}
	return 0
}

// sampleStdDev returns the n-1 standard deviation, or NaN for fewer than two values.
func sampleStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.StdDev(xs, nil)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// annualizationFactor scales per-trade ratios by sqrt(trades per year).
func annualizationFactor(trades int, years float64) float64 {
	var perYear float64
	if years > 0 {
		perYear = float64(trades) / years
	}
	if perYear > 0 {
		return math.Sqrt(perYear)
	}
	return 1
}

func sharpeRatio(returns []float64, factor float64) float64 {
	sd := sampleStdDev(returns)
	if !(sd > 0) {
		return 0
	}
	return mean(returns) / sd * factor
}

// sortinoRatio divides the mean return by the downside deviation, where squared
// negative returns are averaged over all returns.
func sortinoRatio(returns []float64, factor float64) float64 {
	m := mean(returns)
	var sumSq float64
	negatives := 0
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
			negatives++
		}
	}
	if negatives == 0 {
		return sentinel(m)
	}
	downside := math.Sqrt(sumSq / float64(len(returns)))
	if downside == 0 {
		return sentinel(m)
	}
	return m / downside * factor
}

func systemQualityNumber(trades []model.Trade) float64 {
	pnl := make([]float64, len(trades))
	for i, t := range trades {
		pnl[i] = t.PnL
	}
	sd := sampleStdDev(pnl)
	if !(sd > 0) || len(pnl) == 0 {
		return 0
	}
	return mean(pnl) / sd * math.Sqrt(float64(len(pnl)))
}

// compoundGrowth is CAGR in percent; spans under a year are extrapolated linearly.
func compoundGrowth(initial, final, years float64) float64 {
	if !(initial > 0 && final > 0 && years > 0) {
		return 0
	}
	if years < 1 {
		return (final/initial - 1) / years * 100
	}
	return (math.Pow(final/initial, 1/years) - 1) * 100
}

func profitFactor(trades []model.Trade) (winners int, pf *float64) {
	var gross, loss float64
	for _, t := range trades {
		switch {
		case t.PnL > 0:
			gross += t.PnL
			winners++
		case t.PnL < 0:
			loss += t.PnL
		}
	}
	if loss != 0 {
		pf = ptr(math.Abs(gross / loss))
	}
	return winners, pf
}

// joinedReturn is one day present in both the portfolio and benchmark return series.
type joinedReturn struct {
	date      time.Time
	portfolio float64
	benchmark float64
}

func joinReturns(daily Series, bench model.Benchmark) []joinedReturn {
	bDates, bRets := bench.Returns()
	byDay := make(map[time.Time]float64, len(bDates))
	for i, d := range bDates {
		byDay[d] = bRets[i]
	}
	out := make([]joinedReturn, 0, len(daily.Dates))
	for i, d := range daily.Dates {
		b, ok := byDay[d]
		if !ok || math.IsNaN(b) || math.IsNaN(daily.Values[i]) {
			continue
		}
		out = append(out, joinedReturn{date: d, portfolio: daily.Values[i], benchmark: b})
	}
	return out
}

// captureRatio is upside capture over downside capture. Undefined unless the
// downside capture is positive.
func captureRatio(joined []joinedReturn) *float64 {
	var upP, upB, downP, downB []float64
	for _, j := range joined {
		switch {
		case j.benchmark > 0:
			upP = append(upP, j.portfolio)
			upB = append(upB, j.benchmark)
		case j.benchmark < 0:
			downP = append(downP, j.portfolio)
			downB = append(downB, j.benchmark)
		}
	}
	upside := capture(mean(upP), mean(upB))
	downside := capture(mean(downP), mean(downB))
	if downside > 0 {
		return ptr(upside / downside)
	}
	return nil
}

func capture(port, bench float64) float64 {
	if bench != 0 {
		return port / bench * 100
	}
	return 0
}
