package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"strategy-databank/internal/analysis"
	"strategy-databank/internal/model"
	"strategy-databank/internal/portfolio"
	"strategy-databank/internal/search"
)

// Demo:
// - Generate a handful of synthetic strategies (two of them near copies)
// - Print the report of the first one
// - Run a short search and print the databank it finds
func main() {
	n := flag.Int("n", 8, "Number of synthetic strategies")
	days := flag.Int("days", 250, "Trading days per strategy")
	seed := flag.Uint64("seed", 1, "Random seed")
	metric := flag.String("metric", "sortinoRatio", "Metric to optimize")
	threshold := flag.Float64("threshold", 0.7, "Correlation threshold")
	outCSV := flag.String("out", "", "Optional path to write the databank CSV (e.g. results/databank.csv)")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	in := synthetic(*n, *days, *seed)

	res, err := analysis.Analyze(in.Strategies[0].Trades, in.Benchmark)
	if err != nil {
		log.Fatal().Err(err).Msg("analyze")
	}
	r := res.Report
	fmt.Printf("%s: trades=%d profit=$%.2f sharpe=%.2f sortino=%.2f maxDD$=%.2f PF=%s\n\n",
		in.Strategies[0].Name, r.TotalTrades, r.TotalProfit, r.SharpeRatio, r.SortinoRatio,
		r.MaxDrawdownInDollars, fmtOpt(r.ProfitFactor))

	nop := zerolog.Nop()
	driver := search.NewDriver(search.Options{ProgressEvery: 50, Logger: &nop})
	h := search.NewHandle()
	params := search.Params{
		MetricKey:            *metric,
		CorrelationThreshold: *threshold,
		DatabankSize:         5,
		SearchSizeThreshold:  100000,
		Seed:                 *seed,
	}

	var final search.Event
	for ev := range driver.Run(context.Background(), h, in, params) {
		switch ev.Type {
		case search.EventCandidate:
			fmt.Printf("  candidate %v %s=%.4f\n", ev.Candidate.Indices, *metric, ev.Candidate.MetricValue)
		case search.EventProgress:
			fmt.Printf("  progress %d/%d\n", ev.Progress.Iterations, ev.Progress.Total)
		default:
			fmt.Printf("[%s] %s\n", ev.Type, ev.Message)
			final = ev
		}
	}

	fmt.Println()
	for i, c := range final.Databank {
		fmt.Printf("#%d %v %s=%.4f\n", i+1, c.Indices, *metric, c.MetricValue)
	}

	if *outCSV != "" {
		if err := portfolio.WriteDatabankCSV(*outCSV, in.Names(), final.Databank); err != nil {
			log.Fatal().Err(err).Msg("write databank")
		}
		fmt.Printf("Wrote %d portfolios to %s\n", len(final.Databank), *outCSV)
	}
}

// synthetic builds n daily-trading strategies with different drifts. The last
// strategy copies the first with a little noise, so the correlation gate has
// something to reject.
func synthetic(n, days int, seed uint64) model.Inputs {
	rng := rand.New(rand.NewPCG(seed, seed^0x5bd1e995))
	start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)

	in := model.Inputs{Benchmark: make(model.Benchmark, days)}
	price := 400.0
	for i := range in.Benchmark {
		price *= 1 + rng.NormFloat64()*0.01 + 0.0003
		in.Benchmark[i] = model.BenchmarkPoint{Date: start.AddDate(0, 0, i), Price: price}
	}

	for s := 0; s < n; s++ {
		st := model.Strategy{Name: fmt.Sprintf("S%02d", s+1)}
		drift := 5 + rng.Float64()*20
		for i := 0; i < days; i++ {
			d := start.AddDate(0, 0, i)
			pnl := drift + rng.NormFloat64()*150
			if s == n-1 && n > 1 {
				pnl = in.Strategies[0].Trades[i].PnL + rng.NormFloat64()*10
			}
			st.Trades = append(st.Trades, model.Trade{EntryTime: d, ExitTime: d, PnL: pnl})
		}
		in.Strategies = append(in.Strategies, st)
	}
	return in
}

func fmtOpt(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *p)
}
