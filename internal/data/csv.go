package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"strategy-databank/internal/model"
)

// Accepted header names, compared case-insensitively.
var (
	entryColumns = []string{"entry_date", "entry_time", "open_time", "entry"}
	exitColumns  = []string{"exit_date", "exit_time", "close_time", "exit"}
	pnlColumns   = []string{"pnl", "profit", "net_pnl", "net_profit"}
	dateColumns  = []string{"date", "time", "timestamp"}
	priceColumns = []string{"price", "close", "adj_close"}
)

func columnIndex(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseFloatField(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ReadTradesCSV reads trade rows. When strategyColumn names a header, each row is
// tagged with that column's value; otherwise every row gets defaultName.
func ReadTradesCSV(r io.Reader, strategyColumn, defaultName string) ([]TaggedTrade, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	entry := columnIndex(header, entryColumns)
	exit := columnIndex(header, exitColumns)
	pnl := columnIndex(header, pnlColumns)
	if exit < 0 || pnl < 0 {
		return nil, fmt.Errorf("trades CSV needs exit date and pnl columns, got %v", header)
	}
	tag := -1
	if strategyColumn != "" {
		if tag = columnIndex(header, []string{strings.ToLower(strategyColumn)}); tag < 0 {
			return nil, fmt.Errorf("strategy column %q not in header %v", strategyColumn, header)
		}
	}

	var out []TaggedTrade
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		name := defaultName
		if tag >= 0 {
			name = field(row, tag)
		}
		out = append(out, TaggedTrade{
			Strategy: name,
			Trade: model.RawTrade{
				EntryDate: field(row, entry),
				ExitDate:  field(row, exit),
				PnL:       parseFloatField(field(row, pnl)),
			},
		})
	}
	return out, nil
}

// ReadBenchmarkCSV reads date/price rows.
func ReadBenchmarkCSV(r io.Reader) ([]model.RawBenchmarkPoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	date := columnIndex(header, dateColumns)
	price := columnIndex(header, priceColumns)
	if date < 0 || price < 0 {
		return nil, fmt.Errorf("benchmark CSV needs date and price columns, got %v", header)
	}

	var out []model.RawBenchmarkPoint
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, model.RawBenchmarkPoint{Date: field(row, date), Price: parseFloatField(field(row, price))})
	}
	return out, nil
}

func loadTradesCSV(path, strategyColumn string) ([]model.Strategy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := ReadTradesCSV(f, strategyColumn, strategyName(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return GroupByStrategy(rows), nil
}

func loadBenchmarkCSV(path string) (model.Benchmark, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	raw, err := ReadBenchmarkCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return model.CleanBenchmark(raw), nil
}
