package session

import (
	"strings"
	"sync"
	"time"

	"github.com/nvoronin/sprachtrainer/backend/internal/model/dialogue"
)

// Session is one live conversation. The turn lock serializes whole
// pipeline turns for the same id; the inner mutex guards the history so
// reads stay consistent even while a turn holds the turn lock.
type Session struct {
	ID         string
	ScenarioID string
	CreatedAt  time.Time

	turnMu  sync.Mutex
	mu      sync.Mutex
	history []dialogue.Turn
}

// Acquire takes the session's turn lock and returns the release func.
// Held for the duration of one pipeline turn, remote calls included.
func (s *Session) Acquire() (release func()) {
	s.turnMu.Lock()
	return s.turnMu.Unlock
}

// AppendExchange commits one completed turn pair. Appending user and
// assistant turns together keeps the history strictly alternating and
// never exposes a half-written turn.
func (s *Session) AppendExchange(userText, assistantText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history,
		dialogue.Turn{Role: dialogue.RoleUser, Content: userText},
		dialogue.Turn{Role: dialogue.RoleAssistant, Content: assistantText},
	)
}

// Window returns up to max of the most recent turns, oldest first, for
// inclusion in a generation request.
func (s *Session) Window(max int) []dialogue.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	if max <= 0 || len(s.history) == 0 {
		return nil
	}

	start := 0
	if len(s.history) > max {
		start = len(s.history) - max
	}

	window := make([]dialogue.Turn, len(s.history)-start)
	copy(window, s.history[start:])
	return window
}

// History returns a copy of the full turn log.
func (s *Session) History() []dialogue.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]dialogue.Turn, len(s.history))
	copy(copied, s.history)
	return copied
}

// Transcript renders the history as role-prefixed lines in
// chronological order.
func (s *Session) Transcript() string {
	var b strings.Builder
	for i, turn := range s.History() {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(turn.Role))
		b.WriteString(": ")
		b.WriteString(turn.Content)
	}
	return b.String()
}
