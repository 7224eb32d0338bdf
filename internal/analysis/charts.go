package analysis

import (
	"sort"

	"strategy-databank/internal/model"
)

// lorenzCurve accumulates winning trades in ascending order of profit.
func lorenzCurve(trades []model.Trade) []Point {
	var wins []float64
	var total float64
	for _, t := range trades {
		if t.PnL > 0 {
			wins = append(wins, t.PnL)
			total += t.PnL
		}
	}
	out := []Point{{X: 0, Y: 0}}
	if !(total > 0) {
		return out
	}
	sort.Float64s(wins)
	var cum float64
	n := float64(len(wins))
	for i, w := range wins {
		cum += w
		out = append(out, Point{X: float64(i+1) / n * 100, Y: cum / total * 100})
	}
	return out
}

func buildChartData(c *Curves, bench model.Benchmark, joined []joinedReturn) ChartData {
	cd := ChartData{
		Labels:         make([]string, len(c.Days)),
		EquityCurve:    make([]DatePoint, len(c.Days)),
		BenchmarkCurve: []DatePoint{},
		ScatterData:    make([]Point, len(joined)),
	}
	first := c.ByDay[0]
	for i, d := range c.Days {
		label := model.FormatDay(d)
		cd.Labels[i] = label
		cd.EquityCurve[i] = DatePoint{X: label, Y: c.ByDay[i] / first * 100}
	}

	// The benchmark is normalized by the first price available on or after the
	// first portfolio day.
	prices := bench.Prices()
	base, found := 0.0, false
	for _, d := range c.Days {
		if p, ok := prices[d]; ok {
			base, found = p, true
			break
		}
	}
	if found && base > 0 {
		for _, d := range c.Days {
			if p, ok := prices[d]; ok {
				cd.BenchmarkCurve = append(cd.BenchmarkCurve, DatePoint{X: model.FormatDay(d), Y: p / base * 100})
			}
		}
	}

	for i, j := range joined {
		cd.ScatterData[i] = Point{X: j.benchmark * 100, Y: j.portfolio * 100}
	}
	return cd
}
