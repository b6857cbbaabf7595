// Package memory holds per-session conversation state: a bounded window
// of recent turns, a rolling summary of evicted turns, a mood estimate,
// and tracked entities.
//
// State is not safe for concurrent use; the session registry serializes
// access per session.
package memory

import (
	"strings"
	"time"
)

// Roles for conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultWindow is the number of turns kept verbatim before eviction
// into the rolling summary.
const DefaultWindow = 20

// Turn is one message in a conversation.
type Turn struct {
	Ordinal   int       `json:"ordinal"` // 1-based position in the full conversation
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the in-memory conversation state for one session.
type State struct {
	window   int
	turns    []Turn
	summary  string
	total    int
	entities []Entity
}

// NewState creates conversation state with the given window size.
// Sizes below 2 fall back to DefaultWindow.
func NewState(window int) *State {
	if window < 2 {
		window = DefaultWindow
	}
	return &State{window: window}
}

// Append records a turn, evicting the oldest into the summary when the
// window is full. User turns feed entity tracking.
func (s *State) Append(role, text string) Turn {
	s.total++
	turn := Turn{
		Ordinal:   s.total,
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	s.turns = append(s.turns, turn)

	if len(s.turns) > s.window {
		evicted := s.turns[0]
		s.turns = append(s.turns[:0], s.turns[1:]...)
		s.summary = foldIntoSummary(s.summary, evicted)
	}

	if role == RoleUser {
		s.entities = trackEntities(s.entities, text, turn.Ordinal)
	}
	return turn
}

// Turns returns the retained window, oldest first. The slice is a copy.
func (s *State) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// LastUserTurn returns the most recent user turn before the current one,
// used by follow-up rewriting.
func (s *State) LastUserTurn() (Turn, bool) {
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].Role == RoleUser {
			return s.turns[i], true
		}
	}
	return Turn{}, false
}

// Summary returns the rolling summary of evicted turns.
func (s *State) Summary() string {
	return s.summary
}

// TotalTurns returns the number of turns ever appended, including
// evicted ones.
func (s *State) TotalTurns() int {
	return s.total
}

// Window returns the configured window size.
func (s *State) Window() int {
	return s.window
}

// Mood estimates the user's current mood from recent user turns.
func (s *State) Mood() string {
	return estimateMood(s.turns)
}

// Entities returns tracked entities in first-seen order. The slice is a
// copy.
func (s *State) Entities() []Entity {
	out := make([]Entity, len(s.entities))
	copy(out, s.entities)
	return out
}

// FirstUserMessage returns the opening user turn text if it is still in
// the window, otherwise the first line of the summary. For session
// listings.
func (s *State) FirstUserMessage() string {
	for _, t := range s.turns {
		if t.Role == RoleUser {
			if t.Ordinal == 1 || s.summary == "" {
				return t.Text
			}
			break
		}
	}
	if s.summary != "" {
		if i := strings.IndexByte(s.summary, '\n'); i >= 0 {
			return s.summary[:i]
		}
		return s.summary
	}
	return ""
}

// Snapshot captures state for persistence.
type Snapshot struct {
	Turns    []Turn   `json:"turns"`
	Summary  string   `json:"summary"`
	Total    int      `json:"total"`
	Entities []Entity `json:"entities"`
}

// Snapshot returns a copy of the state for persistence.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Turns:    s.Turns(),
		Summary:  s.summary,
		Total:    s.total,
		Entities: s.Entities(),
	}
}

// Restore rebuilds state from a snapshot, clamping the window.
func Restore(snap Snapshot, window int) *State {
	s := NewState(window)
	s.summary = snap.Summary
	s.total = snap.Total
	s.entities = append(s.entities, snap.Entities...)

	turns := snap.Turns
	for len(turns) > s.window {
		s.summary = foldIntoSummary(s.summary, turns[0])
		turns = turns[1:]
	}
	s.turns = append(s.turns, turns...)
	return s
}
