package search

import (
	"time"

	"strategy-databank/internal/databank"
)

// EventType tags each message of a search's event stream.
type EventType string

const (
	EventInfo      EventType = "info"
	EventProgress  EventType = "progress"
	EventCandidate EventType = "candidate"
	EventPaused    EventType = "paused"
	EventStopped   EventType = "stopped"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
)

// Progress describes how far a search has come. Percent is only set when the
// search space is enumerated exhaustively.
type Progress struct {
	Iterations  uint64
	Total       uint64
	Percent     *float64
	DatabankLen int
}

// Event is one message of the stream. A stream ends with exactly one
// completed, stopped or error event.
type Event struct {
	Type      EventType
	SearchID  string
	Message   string
	Time      time.Time
	Candidate *databank.Candidate
	Progress  *Progress
	// Databank is the final leaderboard, set on completed and stopped events.
	Databank []databank.Candidate
}

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool {
	switch e.Type {
	case EventCompleted, EventStopped, EventError:
		return true
	}
	return false
}
