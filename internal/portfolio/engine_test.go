package portfolio

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-databank/internal/analysis"
	"strategy-databank/internal/databank"
	"strategy-databank/internal/model"
)

func d(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func fixtures() ([]model.Strategy, model.Benchmark) {
	strats := []model.Strategy{
		{Name: "A", Trades: []model.Trade{
			{EntryTime: d("2024-01-01"), ExitTime: d("2024-01-01"), PnL: 100},
			{EntryTime: d("2024-01-02"), ExitTime: d("2024-01-02"), PnL: -50},
			{EntryTime: d("2024-01-03"), ExitTime: d("2024-01-03"), PnL: 200},
		}},
		{Name: "B", Trades: []model.Trade{
			{EntryTime: d("2024-01-01"), ExitTime: d("2024-01-02"), PnL: 40},
			{EntryTime: d("2024-01-02"), ExitTime: d("2024-01-03"), PnL: -80},
		}},
	}
	bench := model.Benchmark{
		{Date: d("2024-01-01"), Price: 100},
		{Date: d("2024-01-02"), Price: 101},
		{Date: d("2024-01-03"), Price: 99},
	}
	return strats, bench
}

func TestCombineEqualWeights(t *testing.T) {
	strats, _ := fixtures()
	trades, err := Combine(strats, []int{0, 1}, nil)
	require.NoError(t, err)
	require.Len(t, trades, 5)
	assert.Equal(t, 50.0, trades[0].PnL)
	assert.Equal(t, -40.0, trades[4].PnL)
}

func TestCombineErrors(t *testing.T) {
	strats, _ := fixtures()
	_, err := Combine(strats, nil, nil)
	assert.Error(t, err)
	_, err = Combine(strats, []int{0, 2}, nil)
	assert.Error(t, err)
	_, err = Combine(strats, []int{0, 1}, []float64{1})
	assert.Error(t, err)
}

func TestRunNormalizesRisk(t *testing.T) {
	strats, bench := fixtures()
	res, err := New().Run(strats, bench, Spec{Indices: []int{0}, Weights: []float64{1}, TargetMaxDD: 500})
	require.NoError(t, err)
	assert.InDelta(t, 10, res.Scale, 1e-9)
	assert.InDelta(t, 500, res.Analysis.Report.MaxDrawdownInDollars, 1e-9)
	assert.InDelta(t, 2500, res.Analysis.Report.TotalProfit, 1e-9)
	require.Len(t, res.Ledger, 3)
	assert.InDelta(t, 500, res.Ledger[1].Drawdown, 1e-9)
}

func TestRunWithoutTarget(t *testing.T) {
	strats, bench := fixtures()
	res, err := New().Run(strats, bench, Spec{Indices: []int{0, 1}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Scale)
	assert.Equal(t, 5, res.Analysis.Report.TotalTrades)
}

func TestNormalizationFactorWithoutDrawdown(t *testing.T) {
	assert.Equal(t, 1.0, NormalizationFactor(&analysis.Report{}, 1000))
	assert.Equal(t, 1.0, NormalizationFactor(nil, 1000))
}

func TestEncodeDatabankCSV(t *testing.T) {
	strats, bench := fixtures()
	res, err := New().Run(strats, bench, Spec{Indices: []int{0, 1}})
	require.NoError(t, err)

	entries := []databank.Candidate{{Indices: []int{0, 1}, MetricValue: 1.5, Goal: analysis.Maximize, Report: res.Analysis.Report}}
	var buf bytes.Buffer
	require.NoError(t, EncodeDatabankCSV(&buf, []string{"A", "B"}, entries))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "rank,indices,strategies,metric_value,profitFactor"))
	assert.True(t, strings.HasPrefix(lines[1], "1,0-1,A+B,1.500000,"))
}

func TestEncodeLedgerCSV(t *testing.T) {
	strats, bench := fixtures()
	res, err := New().Run(strats, bench, Spec{Indices: []int{0}, Weights: []float64{1}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeLedgerCSV(&buf, res.Ledger))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "index,entry_date,exit_date,pnl,equity,peak,drawdown", lines[0])
	assert.Equal(t, "2,2024-01-03T00:00:00Z,2024-01-03T00:00:00Z,200.000000,10250.000000,10250.000000,0.000000", lines[3])
}

func TestEncodeDailyCSV(t *testing.T) {
	strats, _ := fixtures()
	c, err := analysis.BuildCurves(strats[0].Trades, 1000)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeDailyCSV(&buf, c))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "date,pnl,equity,daily_return", lines[0])
	assert.Equal(t, "2024-01-01,100.000000,1100.000000,0.000000", lines[1])
	assert.Equal(t, "2024-01-03,200.000000,1250.000000,0.190476", lines[3])
}
