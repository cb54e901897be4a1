// Package turnstate holds the Orchestrator's per-user SearchSession and
// DialogueState: narrow continuity slots only, never a transcript (spec.md
// §3's Non-goals exclude persisting conversation history beyond this
// ring). Grounded on internal/sessions/expiry.go's nowFunc-injectable,
// lazily-checked expiry pattern, rebuilt as an on-access TTL check rather
// than a background sweeper goroutine, since the store is small and
// sized, not a channel-wide session table.
package turnstate

import (
	"sync"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// TTL is the ~15 minute bound after which a SearchSession's results are no
// longer considered recent (spec.md §3).
const TTL = 15 * time.Minute

// Store holds per-user SearchSession/DialogueState, safe for concurrent
// use by multiple sessions. The Orchestrator is the only writer for a
// given user on its own turn task; readers (Router, Search Orchestrator)
// only ever observe a snapshot copy.
type Store struct {
	mu      sync.Mutex
	search  map[string]models.SearchSession
	dialog  map[string]models.DialogueState
	nowFunc func() time.Time
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		search:  make(map[string]models.SearchSession),
		dialog:  make(map[string]models.DialogueState),
		nowFunc: time.Now,
	}
}

// SetNowFunc overrides the clock, for deterministic tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFunc = fn
}

// SearchSession returns a snapshot of the user's session, or the zero
// value and false if absent or lazily expired (checked against TTL on
// this access, not swept in the background).
func (s *Store) SearchSession(userID string) (models.SearchSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.search[userID]
	if !ok {
		return models.SearchSession{}, false
	}
	if s.nowFunc().Sub(session.UpdatedAt) > TTL {
		delete(s.search, userID)
		return models.SearchSession{}, false
	}
	return session, true
}

// SetSearchSession overwrites the user's session, called only by the
// Orchestrator on the turn task that owns it.
func (s *Store) SetSearchSession(userID string, session models.SearchSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search[userID] = session
}

// ResetSearchSession clears the user's session on an explicit reset.
func (s *Store) ResetSearchSession(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.search, userID)
}

// DialogueState returns a snapshot of the user's dialogue state.
func (s *Store) DialogueState(userID string) (models.DialogueState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.dialog[userID]
	return state, ok
}

// SetDialogueState overwrites the user's dialogue state.
func (s *Store) SetDialogueState(userID string, state models.DialogueState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialog[userID] = state
}
