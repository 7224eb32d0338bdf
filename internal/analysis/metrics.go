package analysis

import (
	"errors"
	"math"

	"strategy-databank/internal/model"
)

// ErrNoData is returned when there are no usable trades or benchmark points.
var ErrNoData = errors.New("no data to analyze")

const (
	daysPerYear  = 365.25
	daysPerMonth = 30.44
)

type options struct {
	initialCapital float64
}

// Option customizes Analyze.
type Option func(*options)

// WithInitialCapital overrides the starting equity of both curves.
func WithInitialCapital(c float64) Option {
	return func(o *options) { o.initialCapital = c }
}

// Analyze computes the full report for a trade list measured against a benchmark.
// The trades must already be cleaned (see model.CleanTrades).
func Analyze(trades []model.Trade, bench model.Benchmark, opts ...Option) (*Result, error) {
	o := options{initialCapital: InitialCapital}
	for _, opt := range opts {
		opt(&o)
	}
	if len(trades) == 0 || len(bench) == 0 {
		return nil, ErrNoData
	}

	c, err := BuildCurves(trades, o.initialCapital)
	if err != nil {
		return nil, err
	}

	r := &Report{TotalTrades: len(c.Trades), InitialCapital: o.initialCapital}
	for _, t := range c.Trades {
		r.TotalProfit += t.PnL
	}
	r.FinalEquity = c.ByTrade[len(c.ByTrade)-1]

	dd := drawdowns(c.ByTrade)
	r.MaxDrawdown = dd.maxPct
	r.MaxDrawdownInDollars = dd.maxDollars

	r.DurationDays = model.DaysBetween(c.Trades[0].Entry(), c.Trades[len(c.Trades)-1].ExitTime)
	months := float64(r.DurationDays) / daysPerMonth
	if months > 0 {
		r.MonthlyAvgProfit = r.TotalProfit / months
	}
	if dd.maxDollars > 0 {
		r.ProfitMaxDDRatio = ptr(r.TotalProfit / dd.maxDollars)
		r.MonthlyProfitToDollarDD = ptr(r.MonthlyAvgProfit / dd.maxDollars * 100)
	}

	years := float64(r.DurationDays) / daysPerYear
	factor := annualizationFactor(r.TotalTrades, years)
	returns := c.TradeReturns()
	r.SharpeRatio = sharpeRatio(returns, factor)
	r.SortinoRatio = sortinoRatio(returns, factor)

	winners, pf := profitFactor(c.Trades)
	r.WinningPercentage = float64(winners) / float64(r.TotalTrades) * 100
	r.ProfitFactor = pf

	daily := c.DailyReturns()
	joined := joinReturns(daily, bench)
	r.CaptureRatio = captureRatio(joined)

	r.MaxConsecutiveLosingMonths = losingMonthStreak(c.Days, c.DailyPnL)
	r.MaxStagnationDays = stagnationDays(c)
	r.MaxStagnationTrades = stagnationTrades(c.ByTrade)
	r.SQN = systemQualityNumber(c.Trades)

	r.CAGR = compoundGrowth(o.initialCapital, r.FinalEquity, years)
	r.UlcerIndex = ulcerIndex(c.ByTrade, o.initialCapital)
	switch {
	case r.UlcerIndex > 0:
		r.UPI = r.CAGR / r.UlcerIndex
	default:
		r.UPI = sentinel(r.CAGR)
	}
	r.UlcerIndexInDollars = ulcerIndexDollars(dd.dollars)

	r.LorenzData = lorenzCurve(c.Trades)
	r.ChartData = buildChartData(c, bench, joined)

	return &Result{Report: r, DailyReturns: daily}, nil
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
