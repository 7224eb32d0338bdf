// Package search runs the portfolio-combination search: it draws strategy
// subsets, gates them on correlation, analyzes the equal-weighted portfolio and
// keeps the best ones in a databank, streaming events as it goes.
package search

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"strategy-databank/internal/analysis"
	"strategy-databank/internal/combo"
	"strategy-databank/internal/correlation"
	"strategy-databank/internal/databank"
	"strategy-databank/internal/model"
	"strategy-databank/internal/observability"
	"strategy-databank/internal/portfolio"
)

type Driver struct {
	opts Options
}

func NewDriver(opts Options) *Driver {
	return &Driver{opts: opts.withDefaults()}
}

// Run returns the event stream of one search. Nothing happens until the sequence
// is iterated; iteration ends after the terminal event, or early if the consumer
// stops ranging. Pause and stop requests go through h, cancellation of ctx is
// treated as a stop.
func (d *Driver) Run(ctx context.Context, h *Handle, in model.Inputs, p Params) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		logger := log.Logger
		if d.opts.Logger != nil {
			logger = *d.opts.Logger
		}
		r := &run{
			ctx:   ctx,
			h:     h,
			in:    in,
			p:     p,
			opts:  d.opts,
			log:   logger.With().Str("search_id", h.ID()).Logger(),
			yield: yield,
		}
		r.execute()
	}
}

type run struct {
	ctx  context.Context
	h    *Handle
	in   model.Inputs
	p    Params
	opts Options
	log  zerolog.Logger

	yield    func(Event) bool
	inYield  bool
	detached bool
	finished bool
	started  bool

	metric analysis.MetricInfo
	goal   analysis.Goal
	gate   correlation.Gate
	base   []int
	enum   combo.Enumerator
	bank   *databank.Databank

	iterations   uint64
	progressMark uint64
}

type outcome struct {
	candidate databank.Candidate
	ok        bool
	// pending is set when a pause or stop arrived before evaluation started.
	pending bool
}

func (r *run) execute() {
	defer func() {
		if rec := recover(); rec != nil {
			if r.inYield {
				panic(rec)
			}
			r.log.Error().Interface("panic", rec).Msg("search failed")
			r.finish(StateError, fmt.Sprintf("Unexpected error: %v", rec))
		}
		if !r.finished {
			// The consumer walked away before a terminal event.
			r.h.setState(StateStopped)
			observability.RecordSearchFinished(string(StateStopped), r.started)
		}
	}()

	if !r.prepare() {
		return
	}
	r.loop()
}

// emit hands ev to the consumer. It returns false once the consumer has stopped.
func (r *run) emit(ev Event) bool {
	if r.detached {
		return false
	}
	ev.SearchID = r.h.ID()
	ev.Time = time.Now()
	r.inYield = true
	ok := r.yield(ev)
	r.inYield = false
	if !ok {
		r.detached = true
	}
	return ok
}

func (r *run) info(format string, args ...any) bool {
	return r.emit(Event{Type: EventInfo, Message: fmt.Sprintf(format, args...)})
}

func (r *run) finish(state State, msg string) {
	if r.finished {
		return
	}
	r.finished = true
	r.h.setState(state)
	observability.RecordSearchFinished(string(state), r.started)

	ev := Event{Message: msg}
	switch state {
	case StateCompleted:
		ev.Type = EventCompleted
	case StateStopped:
		ev.Type = EventStopped
	default:
		ev.Type = EventError
	}
	if r.bank != nil && state != StateError {
		ev.Databank = r.bank.Entries()
	}

	logEvt := r.log.Info()
	if state == StateError {
		logEvt = r.log.Error()
	}
	logEvt.Str("state", string(state)).Uint64("iterations", r.iterations).Msg(msg)
	r.emit(ev)
}

func (r *run) stopRequested() bool {
	return r.h.Stopped() || r.ctx.Err() != nil
}

// checkpoint honours stop and pause requests. It returns false once the search
// has ended or the consumer has gone away.
func (r *run) checkpoint() bool {
	for {
		if r.h.Stopped() {
			r.finish(StateStopped, "Search stopped by user.")
			return false
		}
		if r.ctx.Err() != nil {
			r.finish(StateStopped, "Search cancelled.")
			return false
		}
		if !r.h.Paused() {
			return true
		}
		if !r.waitWhilePaused() {
			return false
		}
	}
}

func (r *run) prepare() bool {
	r.h.setState(StateInit)
	n := len(r.in.Strategies)
	if err := r.in.Validate(); err != nil {
		r.finish(StateError, fmt.Sprintf("Invalid input: %v", err))
		return false
	}
	if err := r.p.Validate(n); err != nil {
		r.finish(StateError, fmt.Sprintf("Invalid parameters: %v", err))
		return false
	}
	r.metric, _ = analysis.LookupMetric(r.p.MetricKey)
	r.goal = r.p.Goal
	if r.goal == "" {
		r.goal = r.metric.Goal
	}

	if !r.info("Analyzing %d individual strategies.", n) {
		return false
	}
	series := make([]*analysis.Series, n)
	var usable []int
	var skipped []string
	for i, s := range r.in.Strategies {
		if r.stopRequested() {
			r.finish(StateStopped, "Search stopped before it started.")
			return false
		}
		res, err := r.opts.Cache.Analyze(r.strategyTrades(i, s), r.in.Benchmark, r.opts.InitialCapital)
		if errors.Is(err, analysis.ErrNoData) {
			skipped = append(skipped, s.Name)
			r.log.Warn().Str("strategy", s.Name).Msg("strategy has no usable trades")
			continue
		}
		if err != nil {
			r.finish(StateError, fmt.Sprintf("Analyzing strategy %q: %v", s.Name, err))
			return false
		}
		series[i] = &res.DailyReturns
		usable = append(usable, i)
	}
	if len(usable) == 0 {
		r.finish(StateError, "No individual strategies could be analyzed.")
		return false
	}
	if len(skipped) > 0 {
		if !r.info("Skipped %d strategies without usable data: %s.", len(skipped), strings.Join(skipped, ", ")) {
			return false
		}
	}

	r.gate = correlation.Gate{Matrix: correlation.NewMatrix(series), Threshold: r.p.CorrelationThreshold}

	universe := usable
	lo, hi := r.p.MinSize, r.p.MaxSize
	if lo == 0 {
		lo = 2
	}
	if hi == 0 {
		hi = combo.MaxSize
	}
	if len(r.p.BaseIndices) > 0 {
		r.base = portfolio.SortedIndices(r.p.BaseIndices)
		for _, b := range r.base {
			if series[b] == nil {
				r.finish(StateError, fmt.Sprintf("Base strategy %q has no usable trades.", r.in.Strategies[b].Name))
				return false
			}
		}
		if v, ok := r.gate.Check(r.base); !ok {
			r.finish(StateError, fmt.Sprintf("Base strategies %q and %q are correlated at %.2f, above the %.2f threshold.",
				r.in.Strategies[v.I].Name, r.in.Strategies[v.J].Name, v.Value, r.p.CorrelationThreshold))
			return false
		}
		universe = slices.DeleteFunc(slices.Clone(usable), func(i int) bool { return slices.Contains(r.base, i) })
		if r.p.MinSize == 0 {
			lo = 1
		}
		hi = min(hi, combo.MaxSize-len(r.base))
	}

	seed := r.p.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	r.enum = combo.New(universe, lo, hi, r.p.SearchSizeThreshold, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
	total := r.enum.Total()
	r.bank = databank.New(r.p.DatabankSize, r.goal)
	r.h.bank.Store(r.bank)
	r.h.setSpace(r.enum.Mode(), total)

	r.log.Info().
		Int("strategies", n).
		Int("usable", len(usable)).
		Str("mode", string(r.enum.Mode())).
		Uint64("combinations", total).
		Str("metric", r.metric.Key).
		Str("goal", string(r.goal)).
		Msg("search started")

	var ok bool
	if r.enum.Mode() == combo.ModeMonteCarlo {
		ok = r.info("Search space of %d combinations exceeds %d; sampling combinations at random.", total, r.p.SearchSizeThreshold)
	} else {
		ok = r.info("Starting exhaustive analysis of %d combinations.", total)
	}
	if !ok {
		return false
	}

	r.started = true
	observability.RecordSearchStarted(string(r.enum.Mode()))
	r.h.setState(StateRunning)
	return true
}

func (r *run) strategyTrades(i int, s model.Strategy) []model.Trade {
	if r.p.Scales == nil || r.p.Scales[i] == 1 {
		return s.Trades
	}
	out := make([]model.Trade, len(s.Trades))
	for j, t := range s.Trades {
		out[j] = t.Scaled(r.p.Scales[i])
	}
	return out
}

func (r *run) loop() {
	for {
		if !r.checkpoint() {
			return
		}

		batch := r.draw()
		if len(batch) == 0 {
			msg := fmt.Sprintf("Search completed. %d portfolios in databank.", r.bank.Len())
			if r.p.MaxIterations > 0 && r.iterations >= r.p.MaxIterations {
				msg = fmt.Sprintf("Iteration limit of %d reached. %d portfolios in databank.", r.p.MaxIterations, r.bank.Len())
			}
			r.finish(StateCompleted, msg)
			return
		}

		results, err := r.evaluateBatch(batch)
		if err != nil {
			r.finish(StateError, fmt.Sprintf("Evaluating portfolio: %v", err))
			return
		}
		for i, res := range results {
			// Stop and pause apply between combinations, not just between batches.
			if !r.checkpoint() {
				return
			}
			if res.pending {
				c, ok, err := r.evaluate(batch[i])
				if err != nil {
					r.finish(StateError, fmt.Sprintf("Evaluating portfolio: %v", err))
					return
				}
				res = outcome{candidate: c, ok: ok}
			}
			if !res.ok {
				continue
			}
			accepted := r.bank.Insert(res.candidate)
			observability.RecordCandidate(accepted)
			if !accepted {
				continue
			}
			c := res.candidate
			if !r.emit(Event{Type: EventCandidate, Candidate: &c}) {
				return
			}
		}

		if mark := r.iterations / uint64(r.opts.ProgressEvery); mark > r.progressMark {
			r.progressMark = mark
			if !r.emitProgress() {
				return
			}
		}
		if r.opts.YieldEvery > 0 && r.iterations%uint64(r.opts.YieldEvery) < uint64(len(batch)) {
			runtime.Gosched()
		}
	}
}

// draw takes up to Workers combinations from the enumerator.
func (r *run) draw() [][]int {
	batch := make([][]int, 0, r.opts.Workers)
	for len(batch) < r.opts.Workers {
		if r.p.MaxIterations > 0 && r.iterations >= r.p.MaxIterations {
			break
		}
		idx, ok := r.enum.Next()
		if !ok {
			break
		}
		r.iterations++
		r.h.iterations.Store(r.iterations)
		batch = append(batch, idx)
	}
	return batch
}

func (r *run) evaluateBatch(batch [][]int) ([]outcome, error) {
	results := make([]outcome, len(batch))
	if len(batch) == 1 {
		c, ok, err := r.evaluate(batch[0])
		results[0] = outcome{candidate: c, ok: ok}
		return results, err
	}
	var g errgroup.Group
	for i, idx := range batch {
		g.Go(func() error {
			if r.h.Paused() || r.stopRequested() {
				results[i] = outcome{pending: true}
				return nil
			}
			c, ok, err := r.evaluate(idx)
			results[i] = outcome{candidate: c, ok: ok}
			return err
		})
	}
	return results, g.Wait()
}

// evaluate gates and scores one combination. ok is false when the combination is
// rejected or its metric is undefined.
func (r *run) evaluate(indices []int) (databank.Candidate, bool, error) {
	members := indices
	if len(r.base) > 0 {
		members = portfolio.SortedIndices(append(slices.Clone(r.base), indices...))
	}
	admitted := r.gate.Admits(members)
	observability.RecordCombinationDrawn(!admitted)
	if !admitted {
		return databank.Candidate{}, false, nil
	}

	weights := portfolio.EqualWeights(len(members))
	if r.p.Scales != nil {
		for i, idx := range members {
			weights[i] *= r.p.Scales[idx]
		}
	}
	trades, err := portfolio.Combine(r.in.Strategies, members, weights)
	if err != nil {
		return databank.Candidate{}, false, err
	}

	start := time.Now()
	res, err := analysis.Analyze(trades, r.in.Benchmark, analysis.WithInitialCapital(r.opts.InitialCapital))
	observability.RecordAnalysis("candidate", time.Since(start).Seconds())
	if errors.Is(err, analysis.ErrNoData) {
		observability.RecordCandidateSkipped("no_data")
		return databank.Candidate{}, false, nil
	}
	if err != nil {
		return databank.Candidate{}, false, err
	}

	v, ok := r.metric.Value(res.Report)
	if !ok {
		observability.RecordCandidateSkipped("undefined_metric")
		return databank.Candidate{}, false, nil
	}
	return databank.Candidate{
		Indices:     members,
		MetricValue: v,
		Goal:        r.goal,
		Report:      res.Report,
	}, true, nil
}

func (r *run) emitProgress() bool {
	p := &Progress{
		Iterations:  r.iterations,
		Total:       r.enum.Total(),
		DatabankLen: r.bank.Len(),
	}
	var msg string
	if r.enum.Mode() == combo.ModeExhaustive && p.Total > 0 {
		pct := float64(r.iterations) / float64(p.Total) * 100
		p.Percent = &pct
		msg = fmt.Sprintf("Analyzed %d of %d combinations (%.1f%%). Databank: %d portfolios.", r.iterations, p.Total, pct, p.DatabankLen)
	} else {
		msg = fmt.Sprintf("Sampled %d random combinations. Databank: %d portfolios.", r.iterations, p.DatabankLen)
	}
	return r.emit(Event{Type: EventProgress, Message: msg, Progress: p})
}

// waitWhilePaused emits one paused event and polls until the search is resumed,
// stopped or cancelled. It returns false when the consumer has gone away.
func (r *run) waitWhilePaused() bool {
	r.h.setState(StatePaused)
	r.log.Info().Uint64("iterations", r.iterations).Msg("search paused")
	if !r.emit(Event{Type: EventPaused, Message: "Search paused."}) {
		return false
	}

	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()
	for r.h.Paused() {
		if r.stopRequested() {
			return true
		}
		select {
		case <-r.ctx.Done():
			return true
		case <-ticker.C:
		}
	}

	r.h.setState(StateRunning)
	r.log.Info().Msg("search resumed")
	return r.info("Search resumed.")
}
