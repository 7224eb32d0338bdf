package search

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"strategy-databank/internal/analysis"
	"strategy-databank/internal/data"
)

// Params are the per-request settings of a search.
type Params struct {
	MetricKey string
	// Goal overrides the metric's own direction when set.
	Goal                 analysis.Goal
	CorrelationThreshold float64
	DatabankSize         int
	// SearchSizeThreshold switches to random sampling above this many
	// combinations. Zero always enumerates exhaustively.
	SearchSizeThreshold uint64

	// BaseIndices fixes strategies that every portfolio must contain; the search
	// then enumerates their complements.
	BaseIndices []int
	// MinSize and MaxSize bound the enumerated subset size. Zero selects 2..12,
	// or 1..12-len(BaseIndices) when BaseIndices is set.
	MinSize int
	MaxSize int

	// Scales pre-multiplies each strategy's PnL before equal weighting.
	Scales []float64
	// MaxIterations ends the search after this many draws. Zero is unbounded.
	MaxIterations uint64
	// Seed makes random sampling reproducible. Zero picks a random seed.
	Seed uint64
}

// Validate checks p against a universe of n strategies.
func (p Params) Validate(n int) error {
	if _, ok := analysis.LookupMetric(p.MetricKey); !ok {
		return fmt.Errorf("unknown metric %q", p.MetricKey)
	}
	if p.Goal != "" && p.Goal != analysis.Maximize && p.Goal != analysis.Minimize {
		return fmt.Errorf("invalid optimization goal %q", p.Goal)
	}
	if math.IsNaN(p.CorrelationThreshold) {
		return fmt.Errorf("correlation threshold is not a number")
	}
	if p.DatabankSize <= 0 {
		return fmt.Errorf("databank size must be > 0")
	}
	if p.MinSize < 0 || p.MaxSize < 0 {
		return fmt.Errorf("portfolio size bounds must be >= 0")
	}
	seen := make(map[int]bool, len(p.BaseIndices))
	for _, idx := range p.BaseIndices {
		if idx < 0 || idx >= n {
			return fmt.Errorf("base index %d out of range [0,%d)", idx, n)
		}
		if seen[idx] {
			return fmt.Errorf("base index %d repeated", idx)
		}
		seen[idx] = true
	}
	if p.Scales != nil {
		if len(p.Scales) != n {
			return fmt.Errorf("got %d scales for %d strategies", len(p.Scales), n)
		}
		for i, s := range p.Scales {
			if math.IsNaN(s) || math.IsInf(s, 0) {
				return fmt.Errorf("scale for strategy %d is not finite", i)
			}
		}
	}
	return nil
}

// Options are the process-wide driver settings.
type Options struct {
	InitialCapital float64
	// ProgressEvery emits a progress event after this many draws.
	ProgressEvery int
	// PollInterval is how often a paused search rechecks its flags.
	PollInterval time.Duration
	// Workers evaluates up to this many combinations concurrently.
	Workers int
	// YieldEvery calls runtime.Gosched after this many draws. Zero disables it.
	YieldEvery int
	// Cache memoizes the per-strategy analyses done before the search starts.
	// Nil analyzes every time.
	Cache  *data.ReportCache
	Logger *zerolog.Logger
}

// DefaultOptions matches the service defaults.
func DefaultOptions() Options {
	return Options{
		InitialCapital: analysis.InitialCapital,
		ProgressEvery:  20,
		PollInterval:   500 * time.Millisecond,
		Workers:        1,
		YieldEvery:     1,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.InitialCapital <= 0 {
		o.InitialCapital = def.InitialCapital
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = def.ProgressEvery
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.Workers <= 0 {
		o.Workers = def.Workers
	}
	if o.YieldEvery < 0 {
		o.YieldEvery = 0
	}
	return o
}
