package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"strategy-databank/internal/analysis"
	"strategy-databank/internal/config"
	"strategy-databank/internal/portfolio"
	"strategy-databank/internal/search"
)

func newSearchCmd() *cobra.Command {
	var (
		metric        string
		goal          string
		threshold     float64
		databankSize  int
		sizeThreshold uint64
		maxComboSize  int
		baseFlag      string
		maxIterations uint64
		seed          uint64
		workers       int
		outPath       string
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search strategy combinations for the best low-correlation portfolios",
		Long: `Enumerates (or samples, above --search-size-threshold) equal-weight
portfolios of the loaded strategies, skips any that contain a pair correlated
above --threshold, and keeps the best --databank-size by --metric.

Ctrl-C stops the search; the databank found so far is still written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			in, err := loadInputs()
			if err != nil {
				return err
			}

			override := config.SearchConfig{
				Metric:              metric,
				Goal:                goal,
				DatabankSize:        databankSize,
				SearchSizeThreshold: sizeThreshold,
				MaxComboSize:        maxComboSize,
				Workers:             workers,
			}
			if cmd.Flags().Changed("threshold") {
				override.CorrelationThreshold = &threshold
			}
			cfg.Search = config.MergeSearch(cfg.Search, override)
			if err := cfg.Validate(); err != nil {
				return err
			}

			p := cfg.Search.ToParams()
			if p.BaseIndices, err = parseIndices(baseFlag); err != nil {
				return err
			}
			p.MaxIterations = maxIterations
			p.Seed = seed

			driver := search.NewDriver(cfg.ToOptions())
			h := search.NewHandle()

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigs)
			go func() {
				if _, ok := <-sigs; ok {
					log.Warn().Msg("interrupt received, stopping search")
					h.Stop()
				}
			}()

			names := in.Names()
			var final search.Event
			for ev := range driver.Run(context.Background(), h, in, p) {
				switch ev.Type {
				case search.EventInfo, search.EventPaused:
					log.Info().Msg(ev.Message)
				case search.EventProgress:
					e := log.Info().
						Uint64("iterations", ev.Progress.Iterations).
						Int("databank", ev.Progress.DatabankLen)
					if ev.Progress.Percent != nil {
						e = e.Float64("percent", *ev.Progress.Percent)
					}
					e.Msg("progress")
				case search.EventCandidate:
					log.Debug().
						Ints("indices", ev.Candidate.Indices).
						Float64(p.MetricKey, ev.Candidate.MetricValue).
						Msg("candidate kept")
				default:
					final = ev
				}
			}

			if final.Type == search.EventError {
				return fmt.Errorf("search failed: %s", final.Message)
			}
			log.Info().Str("status", string(final.Type)).Msg(final.Message)

			printDatabank(names, p.MetricKey, final)
			if outPath == "" {
				return nil
			}
			if dir := filepath.Dir(outPath); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			if err := portfolio.WriteDatabankCSV(outPath, names, final.Databank); err != nil {
				return err
			}
			fmt.Printf("Wrote %d portfolios to %s\n", len(final.Databank), outPath)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&metric, "metric", "", "Metric to optimize (default from config)")
	f.StringVar(&goal, "goal", "", "maximize or minimize (default: the metric's own direction)")
	f.Float64Var(&threshold, "threshold", 0.7, "Maximum pairwise daily-return correlation")
	f.IntVar(&databankSize, "databank-size", 0, "Portfolios to keep (default from config)")
	f.Uint64Var(&sizeThreshold, "search-size-threshold", 0, "Sample randomly above this many combinations (default from config)")
	f.IntVar(&maxComboSize, "max-combo-size", 0, "Largest portfolio size (default from config)")
	f.StringVar(&baseFlag, "base", "", "Strategy indices every portfolio must contain, e.g. 0,3")
	f.Uint64Var(&maxIterations, "max-iterations", 0, "Stop after this many draws (0 = unbounded)")
	f.Uint64Var(&seed, "seed", 0, "Random seed for sampling (0 = random)")
	f.IntVar(&workers, "workers", 0, "Concurrent portfolio evaluations (default from config)")
	f.StringVar(&outPath, "out", "results/databank.csv", "Databank CSV output path (empty to skip)")
	return cmd
}

func printDatabank(names []string, metricKey string, final search.Event) {
	info, _ := analysis.LookupMetric(metricKey)
	fmt.Printf("%-4s %-12s %-40s\n", "rank", info.Label, "strategies")
	for i, c := range final.Databank {
		members := make([]string, len(c.Indices))
		for j, idx := range c.Indices {
			members[j] = names[idx]
		}
		fmt.Printf("%-4d %-12.4f %-40s\n", i+1, c.MetricValue, strings.Join(members, " + "))
	}
}
