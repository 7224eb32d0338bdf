package search

import (
	"context"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-databank/internal/analysis"
	"strategy-databank/internal/combo"
	"strategy-databank/internal/data"
	"strategy-databank/internal/model"
)

var start = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

// randomStrategy trades once a day with PnL drawn from a seeded generator.
func randomStrategy(name string, seed uint64, days int) model.Strategy {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	s := model.Strategy{Name: name}
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		s.Trades = append(s.Trades, model.Trade{EntryTime: d, ExitTime: d, PnL: rng.NormFloat64()*100 + 10})
	}
	return s
}

func benchmark(days int) model.Benchmark {
	rng := rand.New(rand.NewPCG(99, 100))
	b := make(model.Benchmark, days)
	price := 100.0
	for i := range b {
		price *= 1 + rng.NormFloat64()*0.01
		b[i] = model.BenchmarkPoint{Date: start.AddDate(0, 0, i), Price: price}
	}
	return b
}

func inputs(n int) model.Inputs {
	in := model.Inputs{Benchmark: benchmark(60)}
	for i := 0; i < n; i++ {
		in.Strategies = append(in.Strategies, randomStrategy(string(rune('A'+i)), uint64(i+1), 60))
	}
	return in
}

func params() Params {
	return Params{
		MetricKey:            "sharpeRatio",
		CorrelationThreshold: 1,
		DatabankSize:         5,
		SearchSizeThreshold:  1000,
		Seed:                 42,
	}
}

func testDriver(opts Options) *Driver {
	nop := zerolog.Nop()
	opts.Logger = &nop
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Millisecond
	}
	return NewDriver(opts)
}

func collect(t *testing.T, d *Driver, h *Handle, in model.Inputs, p Params, onEvent func(Event)) []Event {
	t.Helper()
	var events []Event
	for ev := range d.Run(context.Background(), h, in, p) {
		events = append(events, ev)
		if onEvent != nil {
			onEvent(ev)
		}
	}
	return events
}

func requireSingleTerminal(t *testing.T, events []Event) Event {
	t.Helper()
	require.NotEmpty(t, events)
	for _, ev := range events[:len(events)-1] {
		require.False(t, ev.Terminal(), "terminal event %s before end of stream", ev.Type)
	}
	last := events[len(events)-1]
	require.True(t, last.Terminal())
	return last
}

func ofType(events []Event, typ EventType) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestExhaustiveSearchCompletes(t *testing.T) {
	h := NewHandle()
	events := collect(t, testDriver(Options{ProgressEvery: 5}), h, inputs(4), params(), nil)

	last := requireSingleTerminal(t, events)
	assert.Equal(t, EventCompleted, last.Type)
	assert.Equal(t, StateCompleted, h.State())
	assert.Equal(t, uint64(11), h.Status().Iterations)

	require.Len(t, last.Databank, 5)
	for i := 1; i < len(last.Databank); i++ {
		assert.GreaterOrEqual(t, last.Databank[i-1].MetricValue, last.Databank[i].MetricValue)
	}

	progress := ofType(events, EventProgress)
	require.Len(t, progress, 2)
	require.NotNil(t, progress[0].Progress.Percent)
	assert.InDelta(t, 5.0/11*100, *progress[0].Progress.Percent, 1e-9)

	for _, ev := range ofType(events, EventCandidate) {
		assert.Equal(t, analysis.Maximize, ev.Candidate.Goal)
		assert.GreaterOrEqual(t, len(ev.Candidate.Indices), 2)
		assert.Equal(t, h.ID(), ev.SearchID)
	}
}

func TestSearchParallelMatchesSerial(t *testing.T) {
	in := inputs(5)
	serial := collect(t, testDriver(Options{}), NewHandle(), in, params(), nil)
	parallel := collect(t, testDriver(Options{Workers: 4}), NewHandle(), in, params(), nil)

	keys := func(evs []Event) []string {
		var out []string
		for _, c := range evs[len(evs)-1].Databank {
			out = append(out, c.Key())
		}
		return out
	}
	assert.Equal(t, keys(serial), keys(parallel))
}

func TestStopBeforeStart(t *testing.T) {
	h := NewHandle()
	h.Stop()
	events := collect(t, testDriver(Options{}), h, inputs(3), params(), nil)

	last := requireSingleTerminal(t, events)
	assert.Equal(t, EventStopped, last.Type)
	assert.Empty(t, last.Databank)
	assert.Empty(t, ofType(events, EventCandidate))
}

func TestPauseThenStop(t *testing.T) {
	h := NewHandle()
	h.Pause()
	events := collect(t, testDriver(Options{}), h, inputs(3), params(), func(ev Event) {
		if ev.Type == EventPaused {
			h.Stop()
		}
	})

	last := requireSingleTerminal(t, events)
	assert.Equal(t, EventStopped, last.Type)
	assert.Len(t, ofType(events, EventPaused), 1)
	assert.Empty(t, ofType(events, EventCandidate))
	assert.Equal(t, StateStopped, h.State())
}

func TestPauseThenResume(t *testing.T) {
	h := NewHandle()
	h.Pause()
	events := collect(t, testDriver(Options{}), h, inputs(3), params(), func(ev Event) {
		if ev.Type == EventPaused {
			assert.False(t, h.TogglePause())
		}
	})

	last := requireSingleTerminal(t, events)
	assert.Equal(t, EventCompleted, last.Type)
	assert.Len(t, ofType(events, EventPaused), 1)
	assert.NotEmpty(t, ofType(events, EventCandidate))
}

func TestStopMidBatchEmitsNoMoreCandidates(t *testing.T) {
	p := params()
	p.DatabankSize = 20
	h := NewHandle()
	events := collect(t, testDriver(Options{Workers: 4}), h, inputs(5), p, func(ev Event) {
		if ev.Type == EventCandidate {
			h.Stop()
		}
	})

	last := requireSingleTerminal(t, events)
	assert.Equal(t, EventStopped, last.Type)
	assert.Equal(t, "Search stopped by user.", last.Message)
	assert.Len(t, ofType(events, EventCandidate), 1)
	assert.Len(t, last.Databank, 1)
}

func TestPauseMidBatchHoldsRemainingResults(t *testing.T) {
	in := inputs(5)
	p := params()
	p.DatabankSize = 20
	serial := collect(t, testDriver(Options{}), NewHandle(), in, p, nil)

	h := NewHandle()
	paused := false
	events := collect(t, testDriver(Options{Workers: 4}), h, in, p, func(ev Event) {
		switch {
		case ev.Type == EventCandidate && !paused:
			paused = true
			h.Pause()
		case ev.Type == EventPaused:
			h.Resume()
		}
	})

	first := slices.IndexFunc(events, func(ev Event) bool { return ev.Type == EventCandidate })
	require.GreaterOrEqual(t, first, 0)
	require.Less(t, first+1, len(events))
	assert.Equal(t, EventPaused, events[first+1].Type)

	last := requireSingleTerminal(t, events)
	require.Equal(t, EventCompleted, last.Type)
	assert.Len(t, ofType(events, EventPaused), 1)
	assert.Equal(t, len(serial[len(serial)-1].Databank), len(last.Databank))
	for i, c := range last.Databank {
		assert.Equal(t, serial[len(serial)-1].Databank[i].Key(), c.Key())
	}
}

func TestSearchSharesReportCache(t *testing.T) {
	cache := data.NewReportCache(time.Minute)
	t.Cleanup(cache.Close)
	d := testDriver(Options{Cache: cache})

	collect(t, d, NewHandle(), inputs(3), params(), nil)
	assert.Equal(t, 3, cache.Len())

	events := collect(t, d, NewHandle(), inputs(3), params(), nil)
	assert.Equal(t, EventCompleted, requireSingleTerminal(t, events).Type)
	assert.Equal(t, 3, cache.Len())
}

func TestCorrelationGateRejectsClones(t *testing.T) {
	in := inputs(3)
	in.Strategies[1] = model.Strategy{Name: "clone", Trades: in.Strategies[0].Trades}
	p := params()
	p.CorrelationThreshold = 0.9
	p.DatabankSize = 10

	events := collect(t, testDriver(Options{}), NewHandle(), in, p, nil)
	last := requireSingleTerminal(t, events)
	require.Equal(t, EventCompleted, last.Type)
	for _, c := range last.Databank {
		assert.False(t, slices.Contains(c.Indices, 0) && slices.Contains(c.Indices, 1), "clones combined in %v", c.Indices)
	}
	assert.NotEmpty(t, last.Databank)
}

func TestMonteCarloHonorsIterationLimit(t *testing.T) {
	p := params()
	p.SearchSizeThreshold = 1
	p.MaxIterations = 45
	h := NewHandle()
	events := collect(t, testDriver(Options{}), h, inputs(5), p, nil)

	last := requireSingleTerminal(t, events)
	assert.Equal(t, EventCompleted, last.Type)
	assert.Equal(t, combo.ModeMonteCarlo, h.Status().Mode)
	assert.Equal(t, uint64(45), h.Status().Iterations)

	progress := ofType(events, EventProgress)
	require.Len(t, progress, 2)
	for _, ev := range progress {
		assert.Nil(t, ev.Progress.Percent)
	}
}

func TestComplementSearchKeepsBase(t *testing.T) {
	p := params()
	p.BaseIndices = []int{2}
	events := collect(t, testDriver(Options{}), NewHandle(), inputs(4), p, nil)

	last := requireSingleTerminal(t, events)
	require.Equal(t, EventCompleted, last.Type)
	require.NotEmpty(t, last.Databank)
	for _, c := range last.Databank {
		assert.Contains(t, c.Indices, 2)
		assert.True(t, slices.IsSorted(c.Indices))
	}
	// Complements of size 1..3 over the other three strategies.
	assert.Len(t, last.Databank, 5)
}

func TestComplementSearchRejectsCorrelatedBase(t *testing.T) {
	in := inputs(3)
	in.Strategies[1] = model.Strategy{Name: "clone", Trades: in.Strategies[0].Trades}
	p := params()
	p.CorrelationThreshold = 0.5
	p.BaseIndices = []int{0, 1}

	events := collect(t, testDriver(Options{}), NewHandle(), in, p, nil)
	last := requireSingleTerminal(t, events)
	assert.Equal(t, EventError, last.Type)
	assert.Contains(t, last.Message, "clone")
}

func TestNoUsableStrategies(t *testing.T) {
	in := inputs(2)
	for i := range in.Strategies {
		in.Strategies[i].Trades = nil
	}
	events := collect(t, testDriver(Options{}), NewHandle(), in, params(), nil)
	last := requireSingleTerminal(t, events)
	assert.Equal(t, EventError, last.Type)
	assert.Equal(t, "No individual strategies could be analyzed.", last.Message)
}

func TestInvalidParams(t *testing.T) {
	p := params()
	p.MetricKey = "luck"
	events := collect(t, testDriver(Options{}), NewHandle(), inputs(2), p, nil)
	last := requireSingleTerminal(t, events)
	assert.Equal(t, EventError, last.Type)
	assert.Len(t, events, 1)
}

func TestMinimizeGoalFromMetric(t *testing.T) {
	p := params()
	p.MetricKey = "maxDrawdownInDollars"
	events := collect(t, testDriver(Options{}), NewHandle(), inputs(4), p, nil)
	last := requireSingleTerminal(t, events)
	require.Equal(t, EventCompleted, last.Type)
	for i := 1; i < len(last.Databank); i++ {
		assert.LessOrEqual(t, last.Databank[i-1].MetricValue, last.Databank[i].MetricValue)
	}
	assert.Equal(t, analysis.Minimize, last.Databank[0].Goal)
}

func TestConsumerBreakEndsSearch(t *testing.T) {
	h := NewHandle()
	d := testDriver(Options{})
	for ev := range d.Run(context.Background(), h, inputs(4), params()) {
		if ev.Type == EventCandidate {
			break
		}
	}
	assert.Equal(t, StateStopped, h.State())
}

func TestContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHandle()
	var events []Event
	for ev := range testDriver(Options{}).Run(ctx, h, inputs(4), params()) {
		events = append(events, ev)
		if ev.Type == EventCandidate {
			cancel()
		}
	}
	last := requireSingleTerminal(t, events)
	assert.Equal(t, EventStopped, last.Type)
	assert.Equal(t, "Search cancelled.", last.Message)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	h := r.Create()
	got, err := r.Get(h.ID())
	require.NoError(t, err)
	assert.Same(t, h, got)
	assert.Len(t, r.List(), 1)

	r.Remove(h.ID())
	_, err = r.Get(h.ID())
	assert.ErrorIs(t, err, ErrNotFound)
}
