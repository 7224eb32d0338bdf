package model

import (
	"math"
	"sort"
	"time"
)

// RawBenchmarkPoint is one benchmark row as supplied by a caller.
type RawBenchmarkPoint struct {
	Date  string
	Price *float64
}

// BenchmarkPoint is one daily benchmark close. Date is a calendar day (see Day).
type BenchmarkPoint struct {
	Date  time.Time
	Price float64
}

// Benchmark is a date-ordered price series with at most one point per day.
type Benchmark []BenchmarkPoint

// CleanBenchmark drops rows with an unparsable date or missing price, keeps the last
// price seen for each calendar day and orders the result by date.
func CleanBenchmark(raw []RawBenchmarkPoint) Benchmark {
	byDay := make(map[time.Time]float64, len(raw))
	for _, r := range raw {
		if r.Price == nil || math.IsNaN(*r.Price) {
			continue
		}
		t, err := ParseTime(r.Date)
		if err != nil {
			continue
		}
		byDay[Day(t)] = *r.Price
	}
	out := make(Benchmark, 0, len(byDay))
	for d, p := range byDay {
		out = append(out, BenchmarkPoint{Date: d, Price: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Prices indexes the series by day.
func (b Benchmark) Prices() map[time.Time]float64 {
	m := make(map[time.Time]float64, len(b))
	for _, p := range b {
		m[p.Date] = p.Price
	}
	return m
}

// Returns is the day-over-day percentage change of the series, with the first
// day's return set to 0.
func (b Benchmark) Returns() ([]time.Time, []float64) {
	dates := make([]time.Time, len(b))
	rets := make([]float64, len(b))
	for i, p := range b {
		dates[i] = p.Date
		if i > 0 {
			rets[i] = p.Price/b[i-1].Price - 1
		}
	}
	return dates, rets
}
