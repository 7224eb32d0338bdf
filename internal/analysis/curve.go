package analysis

import (
	"time"

	"strategy-databank/internal/model"
)

// InitialCapital is the account size every curve starts from.
const InitialCapital = 10000.0

// Curves holds the two equity views of a trade list.
type Curves struct {
	Initial float64

	// Trades sorted by exit time.
	Trades []model.Trade
	// ByTrade starts at Initial and has one point per trade after it.
	ByTrade []float64

	// Days covers every calendar day from the first to the last exit date.
	Days     []time.Time
	DailyPnL []float64
	// ByDay is Initial plus the cumulative daily PnL, one point per day.
	ByDay []float64
}

// BuildCurves builds the per-trade and per-day equity curves.
func BuildCurves(trades []model.Trade, initial float64) (*Curves, error) {
	if len(trades) == 0 {
		return nil, ErrNoData
	}
	sorted := model.SortByExit(trades)

	byTrade := make([]float64, 0, len(sorted)+1)
	equity := initial
	byTrade = append(byTrade, equity)
	for _, t := range sorted {
		equity += t.PnL
		byTrade = append(byTrade, equity)
	}

	pnlByDay := make(map[time.Time]float64)
	for _, t := range sorted {
		pnlByDay[model.Day(t.ExitTime)] += t.PnL
	}
	first := model.Day(sorted[0].ExitTime)
	last := model.Day(sorted[len(sorted)-1].ExitTime)

	n := model.DaysBetween(first, last) + 1
	days := make([]time.Time, 0, n)
	dailyPnL := make([]float64, 0, n)
	byDay := make([]float64, 0, n)
	equity = initial
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		p := pnlByDay[d]
		equity += p
		days = append(days, d)
		dailyPnL = append(dailyPnL, p)
		byDay = append(byDay, equity)
	}

	return &Curves{
		Initial:  initial,
		Trades:   sorted,
		ByTrade:  byTrade,
		Days:     days,
		DailyPnL: dailyPnL,
		ByDay:    byDay,
	}, nil
}

// DailyReturns is the percentage change of the per-day curve; the first day is 0.
func (c *Curves) DailyReturns() Series {
	vals := make([]float64, len(c.ByDay))
	for i := 1; i < len(c.ByDay); i++ {
		vals[i] = c.ByDay[i]/c.ByDay[i-1] - 1
	}
	dates := make([]time.Time, len(c.Days))
	copy(dates, c.Days)
	return Series{Dates: dates, Values: vals}
}

// TradeReturns divides each trade's PnL by the equity immediately before it.
func (c *Curves) TradeReturns() []float64 {
	out := make([]float64, len(c.Trades))
	for i, t := range c.Trades {
		out[i] = t.PnL / c.ByTrade[i]
	}
	return out
}
