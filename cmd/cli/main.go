package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"strategy-databank/internal/config"
	"strategy-databank/internal/data"
	"strategy-databank/internal/model"
)

// Shared flags.
var (
	cfgPath        string
	tradePaths     []string
	benchmarkPath  string
	strategyColumn string
	verbose        bool
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Analyze trading strategies and search for low-correlation portfolios",
		Long: `Strategy inputs are CSV or JSON trade lists with entry_date, exit_date and pnl.
A CSV may hold several strategies told apart by a strategy column; otherwise
each file is one strategy named after the file.

The benchmark is a date/price series used for capture ratio and charts.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "Path to YAML config (search defaults, initial capital)")
	pf.StringSliceVar(&tradePaths, "trades", nil, "Trade files (CSV or JSON), comma-separated or repeated")
	pf.StringVar(&benchmarkPath, "benchmark", "", "Benchmark price file (CSV or JSON), required")
	pf.StringVar(&strategyColumn, "strategy-column", "strategy", "CSV column naming the strategy of each trade")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(newAnalyzeCmd(), newEquityCmd(), newSearchCmd())
	return rootCmd
}

// loadInputs reads the strategies and benchmark named by the shared flags.
func loadInputs() (model.Inputs, error) {
	if len(tradePaths) == 0 || benchmarkPath == "" {
		return model.Inputs{}, fmt.Errorf("--trades and --benchmark are required")
	}
	strategies, err := data.LoadStrategies(tradePaths, strategyColumn)
	if err != nil {
		return model.Inputs{}, err
	}
	bench, err := data.LoadBenchmark(benchmarkPath)
	if err != nil {
		return model.Inputs{}, err
	}
	in := model.Inputs{Strategies: strategies, Benchmark: bench}
	if err := in.Validate(); err != nil {
		return model.Inputs{}, err
	}
	log.Debug().Int("strategies", len(in.Strategies)).Int("benchmark_points", len(in.Benchmark)).Msg("inputs loaded")
	return in, nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgPath)
}

// parseIndices parses "0,2,5" into indices.
func parseIndices(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid index %q", p)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseWeights(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q", p)
		}
		out = append(out, v)
	}
	return out, nil
}

func fmtOpt(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *p)
}
