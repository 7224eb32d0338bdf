package search

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"strategy-databank/internal/combo"
	"strategy-databank/internal/databank"
)

// ErrNotFound is returned by Registry lookups for unknown search ids.
var ErrNotFound = errors.New("search not found")

// State is the lifecycle position of a search.
type State string

const (
	StateInit      State = "init"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
	StateError     State = "error"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateStopped || s == StateError
}

// Handle carries the control flags and live status of one search. Pause and Stop
// may be called from any goroutine; the driver observes them between iterations.
type Handle struct {
	id      string
	created time.Time

	paused  atomic.Bool
	stopped atomic.Bool

	mu    sync.RWMutex
	state State
	mode  combo.Mode
	total uint64

	iterations atomic.Uint64
	bank       atomic.Pointer[databank.Databank]
}

// NewHandle creates a handle with a fresh id in the init state.
func NewHandle() *Handle {
	return &Handle{
		id:      uuid.NewString(),
		created: time.Now(),
		state:   StateInit,
	}
}

func (h *Handle) ID() string { return h.id }

// TogglePause flips the pause flag and returns the new value.
func (h *Handle) TogglePause() bool {
	for {
		cur := h.paused.Load()
		if h.paused.CompareAndSwap(cur, !cur) {
			return !cur
		}
	}
}

func (h *Handle) Pause()  { h.paused.Store(true) }
func (h *Handle) Resume() { h.paused.Store(false) }

// Stop requests termination. It cannot be undone.
func (h *Handle) Stop() { h.stopped.Store(true) }

func (h *Handle) Paused() bool  { return h.paused.Load() }
func (h *Handle) Stopped() bool { return h.stopped.Load() }

func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *Handle) setSpace(mode combo.Mode, total uint64) {
	h.mu.Lock()
	h.mode, h.total = mode, total
	h.mu.Unlock()
}

// Databank returns the live leaderboard, or nil before enumeration starts.
func (h *Handle) Databank() *databank.Databank { return h.bank.Load() }

// Status is a point-in-time view of a search.
type Status struct {
	ID          string
	State       State
	Mode        combo.Mode
	Total       uint64
	Iterations  uint64
	DatabankLen int
	Paused      bool
	Created     time.Time
}

func (h *Handle) Status() Status {
	h.mu.RLock()
	st := Status{
		ID:      h.id,
		State:   h.state,
		Mode:    h.mode,
		Total:   h.total,
		Created: h.created,
	}
	h.mu.RUnlock()
	st.Iterations = h.iterations.Load()
	st.Paused = h.paused.Load()
	if b := h.bank.Load(); b != nil {
		st.DatabankLen = b.Len()
	}
	return st
}

// Registry tracks live searches by id so that control requests can reach them.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// Create registers and returns a new handle.
func (r *Registry) Create() *Handle {
	h := NewHandle()
	r.mu.Lock()
	r.handles[h.id] = h
	r.mu.Unlock()
	return h
}

func (r *Registry) Get(id string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return h, nil
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.handles, id)
	r.mu.Unlock()
}

// List returns the registered handles, oldest first.
func (r *Registry) List() []*Handle {
	r.mu.RLock()
	out := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].created.Before(out[j].created) })
	return out
}
