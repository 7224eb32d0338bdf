package portfolio

import (
	"time"

	"strategy-databank/internal/analysis"
	"strategy-databank/internal/model"
)

// LedgerRow is one trade of a portfolio with the equity it leaves behind.
// This is the primary artifact for "what happened" in a portfolio.
type LedgerRow struct {
	Index int

	EntryTime time.Time
	ExitTime  time.Time

	PNL      float64
	Equity   float64
	Peak     float64
	Drawdown float64
}

// BuildLedger walks the trades in exit order starting from the report's initial equity.
func BuildLedger(trades []model.Trade, r *analysis.Report) []LedgerRow {
	sorted := model.SortByExit(trades)
	equity := analysis.InitialCapital
	if r != nil {
		equity = r.InitialCapital
	}
	peak := equity
	out := make([]LedgerRow, 0, len(sorted))
	for i, t := range sorted {
		equity += t.PnL
		peak = max(peak, equity)
		out = append(out, LedgerRow{
			Index:     i,
			EntryTime: t.EntryTime,
			ExitTime:  t.ExitTime,
			PNL:       t.PnL,
			Equity:    equity,
			Peak:      peak,
			Drawdown:  peak - equity,
		})
	}
	return out
}
