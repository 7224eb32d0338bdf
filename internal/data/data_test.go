package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-databank/internal/analysis"
	"strategy-databank/internal/model"
)

const tradesCSV = `Entry_Date,Exit_Date,PnL,strategy
2024-01-01,2024-01-01,100,alpha
2024-01-01,2024-01-02,-20,beta
2024-01-02,2024-01-02,-50,alpha
2024-01-02,,40,beta
2024-01-03,2024-01-03,200,alpha
2024-01-03,2024-01-03,n/a,beta
`

const benchCSV = `date,close
2024-01-01,100
2024-01-02,101
2024-01-03,99
`

func TestReadTradesCSVGroupsByStrategy(t *testing.T) {
	rows, err := ReadTradesCSV(strings.NewReader(tradesCSV), "strategy", "ignored")
	require.NoError(t, err)
	require.Len(t, rows, 6)

	strats := GroupByStrategy(rows)
	require.Len(t, strats, 2)
	assert.Equal(t, "alpha", strats[0].Name)
	assert.Len(t, strats[0].Trades, 3)
	assert.Equal(t, "beta", strats[1].Name)
	assert.Len(t, strats[1].Trades, 1)
}

func TestReadTradesCSVRequiresColumns(t *testing.T) {
	_, err := ReadTradesCSV(strings.NewReader("a,b\n1,2\n"), "", "x")
	assert.Error(t, err)

	_, err = ReadTradesCSV(strings.NewReader(tradesCSV), "desk", "x")
	assert.Error(t, err)
}

func TestLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "alpha.csv")
	require.NoError(t, os.WriteFile(tradesPath, []byte("exit_date,pnl\n2024-01-01,5\n2024-01-02,-1\n"), 0o644))
	jsonPath := filepath.Join(dir, "beta.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"exit_date":"2024-01-03","pnl":3}]`), 0o644))
	benchPath := filepath.Join(dir, "spx.csv")
	require.NoError(t, os.WriteFile(benchPath, []byte(benchCSV), 0o644))

	strats, err := LoadStrategies([]string{tradesPath, jsonPath}, "")
	require.NoError(t, err)
	require.Len(t, strats, 2)
	assert.Equal(t, "alpha", strats[0].Name)
	assert.Equal(t, "beta", strats[1].Name)

	b, err := LoadBenchmark(benchPath)
	require.NoError(t, err)
	assert.Len(t, b, 3)
}

func TestLoadInputsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inputs.json")
	body := `{"strategies":[{"name":"s1","trades":[{"entry_date":"2024-01-01","exit_date":"2024-01-02","pnl":10}]},{"trades":[]}],
	"benchmark":[{"date":"2024-01-01","price":100}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	in, err := LoadInputsJSON(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "strategy_2"}, in.Names())
	assert.Len(t, in.Benchmark, 1)
}

func TestReportCache(t *testing.T) {
	rows, err := ReadTradesCSV(strings.NewReader(tradesCSV), "strategy", "")
	require.NoError(t, err)
	strat := GroupByStrategy(rows)[0]
	raw, err := ReadBenchmarkCSV(strings.NewReader(benchCSV))
	require.NoError(t, err)
	bench := cleanBench(raw)

	c := NewReportCache(time.Minute)
	defer c.Close()

	first, err := c.Analyze(strat.Trades, bench, analysis.InitialCapital)
	require.NoError(t, err)
	second, err := c.Analyze(strat.Trades, bench, analysis.InitialCapital)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, c.Len())

	other, err := c.Analyze(strat.Trades, bench, 20000)
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, c.Len())

	_, err = c.Analyze(nil, bench, analysis.InitialCapital)
	assert.ErrorIs(t, err, analysis.ErrNoData)
	assert.Equal(t, 2, c.Len())
}

func TestNilReportCacheStillAnalyzes(t *testing.T) {
	var c *ReportCache
	rows, _ := ReadTradesCSV(strings.NewReader(tradesCSV), "strategy", "")
	raw, _ := ReadBenchmarkCSV(strings.NewReader(benchCSV))
	res, err := c.Analyze(GroupByStrategy(rows)[0].Trades, cleanBench(raw), analysis.InitialCapital)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Report.TotalTrades)
	assert.Nil(t, NewReportCache(0))
}

func cleanBench(raw []model.RawBenchmarkPoint) model.Benchmark {
	return model.CleanBenchmark(raw)
}
