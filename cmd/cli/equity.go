package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"strategy-databank/internal/analysis"
	"strategy-databank/internal/portfolio"
)

func newEquityCmd() *cobra.Command {
	var (
		portfolioFlag string
		weightsFlag   string
		outDir        string
	)
	cmd := &cobra.Command{
		Use:   "equity",
		Short: "Write per-trade and per-day equity curves as CSV",
		Long: `Writes <out>/trades.csv (one row per trade with running equity and drawdown)
and <out>/daily.csv (one row per calendar day) for the selected strategies.
Without --portfolio every strategy loaded is combined at equal weight.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			in, err := loadInputs()
			if err != nil {
				return err
			}
			indices, err := parseIndices(portfolioFlag)
			if err != nil {
				return err
			}
			if len(indices) == 0 {
				for i := range in.Strategies {
					indices = append(indices, i)
				}
			}
			weights, err := parseWeights(weightsFlag)
			if err != nil {
				return err
			}

			res, err := portfolio.New(analysis.WithInitialCapital(cfg.Analysis.InitialCapital)).
				Run(in.Strategies, in.Benchmark, portfolio.Spec{Indices: indices, Weights: weights})
			if err != nil {
				return err
			}
			curves, err := analysis.BuildCurves(res.Trades, cfg.Analysis.InitialCapital)
			if err != nil {
				return err
			}

			// ensure output dir exists
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			tradesPath := filepath.Join(outDir, "trades.csv")
			if err := portfolio.WriteLedgerCSV(tradesPath, res.Ledger); err != nil {
				return err
			}
			dailyPath := filepath.Join(outDir, "daily.csv")
			if err := portfolio.WriteDailyCSV(dailyPath, curves); err != nil {
				return err
			}

			log.Info().Str("path", tradesPath).Int("rows", len(res.Ledger)).Msg("wrote trade curve")
			log.Info().Str("path", dailyPath).Int("rows", len(curves.Days)).Msg("wrote daily curve")
			fmt.Printf("Final equity=$%.2f Max DD$=%.2f\n", res.Analysis.Report.FinalEquity, res.Analysis.Report.MaxDrawdownInDollars)
			return nil
		},
	}
	cmd.Flags().StringVar(&portfolioFlag, "portfolio", "", "Strategy indices to combine (default all)")
	cmd.Flags().StringVar(&weightsFlag, "weights", "", "Weights, one per index (default equal weight)")
	cmd.Flags().StringVar(&outDir, "out", "results", "Output directory")
	return cmd
}
