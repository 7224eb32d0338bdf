package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"strategy-databank/internal/analysis"
	"strategy-databank/internal/portfolio"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		portfolioFlag string
		weightsFlag   string
		targetDD      float64
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Print metrics for every strategy and an optional portfolio",
		Example: `  cli analyze --trades trades.csv --benchmark spy.csv
  cli analyze --trades a.csv,b.csv,c.csv --benchmark spy.csv --portfolio 0,2 --target-dd 2500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			in, err := loadInputs()
			if err != nil {
				return err
			}
			capital := analysis.WithInitialCapital(cfg.Analysis.InitialCapital)

			printHeader()
			for _, s := range in.Strategies {
				res, err := analysis.Analyze(s.Trades, in.Benchmark, capital)
				if errors.Is(err, analysis.ErrNoData) {
					fmt.Printf("%-24s no usable trades\n", s.Name)
					continue
				}
				if err != nil {
					return fmt.Errorf("analyze %s: %w", s.Name, err)
				}
				printRow(s.Name, res.Report)
			}

			indices, err := parseIndices(portfolioFlag)
			if err != nil || len(indices) == 0 {
				return err
			}
			weights, err := parseWeights(weightsFlag)
			if err != nil {
				return err
			}
			res, err := portfolio.New(capital).Run(in.Strategies, in.Benchmark, portfolio.Spec{
				Indices:     indices,
				Weights:     weights,
				TargetMaxDD: targetDD,
			})
			if err != nil {
				return err
			}
			fmt.Println()
			printRow(fmt.Sprintf("portfolio %v", indices), res.Analysis.Report)
			if targetDD > 0 {
				fmt.Printf("risk normalized to DD$ %.2f, scale factor %.4f\n", targetDD, res.Scale)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&portfolioFlag, "portfolio", "", "Strategy indices of a portfolio to analyze, e.g. 0,2,5")
	cmd.Flags().StringVar(&weightsFlag, "weights", "", "Portfolio weights, one per index (default equal weight)")
	cmd.Flags().Float64Var(&targetDD, "target-dd", 0, "Rescale the portfolio so its max drawdown in dollars equals this")
	return cmd
}

func printHeader() {
	fmt.Printf("%-24s %8s %10s %8s %8s %8s %12s %8s %8s %6s\n",
		"strategy", "trades", "profit", "PF", "sharpe", "sortino", "maxDD$", "maxDD%", "win%", "sqn")
}

func printRow(name string, r *analysis.Report) {
	fmt.Printf("%-24s %8d %10.2f %8s %8.2f %8.2f %12.2f %8.2f %8.2f %6.2f\n",
		name,
		r.TotalTrades,
		r.TotalProfit,
		fmtOpt(r.ProfitFactor),
		r.SharpeRatio,
		r.SortinoRatio,
		r.MaxDrawdownInDollars,
		r.MaxDrawdown,
		r.WinningPercentage,
		r.SQN,
	)
}
