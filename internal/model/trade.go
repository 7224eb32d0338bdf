package model

import (
	"math"
	"sort"
	"time"
)

// RawTrade is one trade record as supplied by a caller. Fields that failed to
// parse upstream are left empty/nil; CleanTrades decides what survives.
type RawTrade struct {
	EntryDate string
	ExitDate  string
	PnL       *float64
}

// Trade is a closed position. Only the exit time and PnL are required.
type Trade struct {
	EntryTime time.Time
	ExitTime  time.Time
	PnL       float64
}

// Entry returns the entry time, falling back to the exit time when the record had none.
func (t Trade) Entry() time.Time {
	if t.EntryTime.IsZero() {
		return t.ExitTime
	}
	return t.EntryTime
}

// Scaled returns a copy of t with PnL multiplied by f.
func (t Trade) Scaled(f float64) Trade {
	t.PnL *= f
	return t
}

// CleanTrades drops records with a missing or non-finite PnL or an unparsable exit time.
// An unparsable entry time is kept as zero.
func CleanTrades(raw []RawTrade) []Trade {
	out := make([]Trade, 0, len(raw))
	for _, r := range raw {
		if r.PnL == nil || math.IsNaN(*r.PnL) || math.IsInf(*r.PnL, 0) {
			continue
		}
		exit, err := ParseTime(r.ExitDate)
		if err != nil {
			continue
		}
		entry, _ := ParseTime(r.EntryDate)
		out = append(out, Trade{EntryTime: entry, ExitTime: exit, PnL: *r.PnL})
	}
	return out
}

// SortByExit returns a copy of trades ordered by exit time. Ties keep input order.
func SortByExit(trades []Trade) []Trade {
	sorted := make([]Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ExitTime.Before(sorted[j].ExitTime)
	})
	return sorted
}
