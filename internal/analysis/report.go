package analysis

import "time"

// Point is an (x, y) pair for Lorenz and scatter charts.
type Point struct {
	X float64
	Y float64
}

// DatePoint is a chart point keyed by a YYYY-MM-DD label.
type DatePoint struct {
	X string
	Y float64
}

// ChartData holds the chart-ready series of a report.
type ChartData struct {
	Labels         []string
	EquityCurve    []DatePoint
	BenchmarkCurve []DatePoint
	ScatterData    []Point
}

// Report is the full set of statistics for one strategy or portfolio.
// Pointer fields are nil when the statistic is undefined for the input.
type Report struct {
	ProfitFactor               *float64
	SortinoRatio               float64
	MaxDrawdown                float64
	MonthlyAvgProfit           float64
	MaxConsecutiveLosingMonths int
	UlcerIndexInDollars        float64
	UPI                        float64
	SharpeRatio                float64
	CaptureRatio               *float64
	MaxDrawdownInDollars       float64
	ProfitMaxDDRatio           *float64
	MonthlyProfitToDollarDD    *float64
	WinningPercentage          float64
	MaxStagnationTrades        int
	TotalTrades                int
	MaxStagnationDays          int
	SQN                        float64
	LorenzData                 []Point
	ChartData                  ChartData

	// Intermediate figures kept for callers that need them (risk normalization, CLI output).
	InitialCapital float64
	TotalProfit    float64
	FinalEquity    float64
	CAGR           float64
	UlcerIndex     float64
	DurationDays   int
}

// Series is a date-indexed sequence of values, ordered by date.
type Series struct {
	Dates  []time.Time
	Values []float64
}

// Len reports the number of observations.
func (s Series) Len() int { return len(s.Values) }

// Index maps each date to its value.
func (s Series) Index() map[time.Time]float64 {
	m := make(map[time.Time]float64, len(s.Dates))
	for i, d := range s.Dates {
		m[d] = s.Values[i]
	}
	return m
}

// Result is the output of Analyze.
type Result struct {
	Report       *Report
	DailyReturns Series
}

func ptr(v float64) *float64 { return &v }
