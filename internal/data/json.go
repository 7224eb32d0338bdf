package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"strategy-databank/internal/model"
)

// InputsFile is a self-contained analysis input: named strategies plus the benchmark.
type InputsFile struct {
	Strategies []StrategyFile      `json:"strategies"`
	Benchmark  []model.PriceRecord `json:"benchmark"`
}

type StrategyFile struct {
	Name   string              `json:"name"`
	Trades []model.TradeRecord `json:"trades"`
}

// TaggedTrade is a raw trade labelled with the strategy it belongs to.
type TaggedTrade struct {
	Strategy string
	Trade    model.RawTrade
}

func LoadInputsJSON(path string) (*model.Inputs, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f InputsFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	in := &model.Inputs{Benchmark: model.BenchmarkFromRecords(f.Benchmark)}
	for i, s := range f.Strategies {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("strategy_%d", i+1)
		}
		in.Strategies = append(in.Strategies, model.Strategy{Name: name, Trades: model.TradesFromRecords(s.Trades)})
	}
	return in, nil
}

func loadTradesJSON(path string) ([]model.Strategy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var recs []model.TradeRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return []model.Strategy{{Name: strategyName(path), Trades: model.TradesFromRecords(recs)}}, nil
}

func loadBenchmarkJSON(path string) (model.Benchmark, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var recs []model.PriceRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return model.BenchmarkFromRecords(recs), nil
}

// GroupByStrategy splits tagged rows into strategies, in order of first appearance.
func GroupByStrategy(rows []TaggedTrade) []model.Strategy {
	index := map[string]int{}
	var raw [][]model.RawTrade
	var names []string
	for _, r := range rows {
		i, ok := index[r.Strategy]
		if !ok {
			i = len(names)
			index[r.Strategy] = i
			names = append(names, r.Strategy)
			raw = append(raw, nil)
		}
		raw[i] = append(raw[i], r.Trade)
	}
	out := make([]model.Strategy, len(names))
	for i, n := range names {
		out[i] = model.Strategy{Name: n, Trades: model.CleanTrades(raw[i])}
	}
	return out
}

// LoadStrategies reads every path (CSV or JSON by extension) into one universe.
func LoadStrategies(paths []string, strategyColumn string) ([]model.Strategy, error) {
	var out []model.Strategy
	for _, p := range paths {
		var (
			strats []model.Strategy
			err    error
		)
		switch strings.ToLower(filepath.Ext(p)) {
		case ".json":
			strats, err = loadTradesJSON(p)
		default:
			strats, err = loadTradesCSV(p, strategyColumn)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, strats...)
	}
	return out, nil
}

// LoadBenchmark reads a CSV or JSON price series.
func LoadBenchmark(path string) (model.Benchmark, error) {
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		return loadBenchmarkJSON(path)
	}
	return loadBenchmarkCSV(path)
}

func strategyName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
