// Package databank keeps the best portfolios found by a search.
package databank

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"strategy-databank/internal/analysis"
)

// Candidate is one scored portfolio.
type Candidate struct {
	Indices     []int
	MetricValue float64
	Goal        analysis.Goal
	Report      *analysis.Report
}

// Key identifies the portfolio by its member indices, e.g. "0-3-5".
func (c Candidate) Key() string {
	var b strings.Builder
	for i, idx := range c.Indices {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(strconv.Itoa(idx))
	}
	return b.String()
}

// Databank is a bounded leaderboard ordered best first. It is safe for concurrent
// readers while a single search inserts.
type Databank struct {
	mu       sync.RWMutex
	capacity int
	goal     analysis.Goal
	entries  []Candidate
}

// New creates an empty databank holding at most capacity candidates.
func New(capacity int, goal analysis.Goal) *Databank {
	return &Databank{
		capacity: capacity,
		goal:     goal,
		entries:  make([]Candidate, 0, max(capacity, 0)),
	}
}

// Insert offers c to the databank and reports whether it was kept. Below capacity
// every new candidate is kept; at capacity c must strictly beat the current worst.
//
// Entries are unique by Key, as in the web client's databank, which keys
// portfolios by their sorted strategy list. Monte Carlo sampling can draw the
// same subset twice, so a repeat does not take a second slot even below
// capacity: it only replaces its earlier entry when strictly better.
func (d *Databank) Insert(c Candidate) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capacity <= 0 {
		return false
	}
	key := c.Key()
	for i := range d.entries {
		if d.entries[i].Key() != key {
			continue
		}
		if !d.goal.Better(c.MetricValue, d.entries[i].MetricValue) {
			return false
		}
		d.entries[i] = c
		d.sortLocked()
		return true
	}

	if len(d.entries) < d.capacity {
		d.entries = append(d.entries, c)
		d.sortLocked()
		return true
	}
	worst := len(d.entries) - 1
	if !d.goal.Better(c.MetricValue, d.entries[worst].MetricValue) {
		return false
	}
	d.entries[worst] = c
	d.sortLocked()
	return true
}

func (d *Databank) sortLocked() {
	sort.SliceStable(d.entries, func(i, j int) bool {
		return d.goal.Better(d.entries[i].MetricValue, d.entries[j].MetricValue)
	})
}

// Entries returns a snapshot, best first.
func (d *Databank) Entries() []Candidate {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Candidate(nil), d.entries...)
}

// Best returns the top candidate, if any.
func (d *Databank) Best() (Candidate, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.entries) == 0 {
		return Candidate{}, false
	}
	return d.entries[0], true
}

func (d *Databank) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

func (d *Databank) Capacity() int       { return d.capacity }
func (d *Databank) Goal() analysis.Goal { return d.goal }
