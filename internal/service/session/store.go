package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nvoronin/sprachtrainer/backend/internal/model/scenario"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownScenario = errors.New("unknown scenario")
)

// Store owns every live session. Lookups across distinct ids only
// contend on the map lock; turn-level serialization lives on the
// sessions themselves.
type Store struct {
	scenarios       scenario.Store
	defaultScenario string

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore bootstraps the in-memory session store.
func NewStore(scenarios scenario.Store, defaultScenario string) *Store {
	return &Store{
		scenarios:       scenarios,
		defaultScenario: defaultScenario,
		sessions:        make(map[string]*Session),
	}
}

// Create provisions a session bound to a scenario. A missing id gets a
// generated one; a missing scenario id resolves to the configured
// default. Starting an id that already exists resets its conversation.
func (st *Store) Create(_ context.Context, id, scenarioID string) (*Session, error) {
	resolved, err := st.resolveScenario(scenarioID)
	if err != nil {
		return nil, err
	}

	if id == "" {
		id = uuid.NewString()
	}

	sess := &Session{
		ID:         id,
		ScenarioID: resolved,
		CreatedAt:  time.Now().UTC(),
	}

	st.mu.Lock()
	st.sessions[id] = sess
	st.mu.Unlock()

	return sess, nil
}

// GetOrCreate returns the session for id, creating it on first
// reference. This is the implicit-creation path used by the dialogue
// endpoint, which may run before any explicit session start.
func (st *Store) GetOrCreate(ctx context.Context, id, scenarioID string) (*Session, error) {
	if id == "" {
		return st.Create(ctx, "", scenarioID)
	}

	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok {
		return sess, nil
	}

	resolved, err := st.resolveScenario(scenarioID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	// Another caller may have created the same id in the meantime.
	if sess, ok := st.sessions[id]; ok {
		return sess, nil
	}

	sess = &Session{
		ID:         id,
		ScenarioID: resolved,
		CreatedAt:  time.Now().UTC(),
	}
	st.sessions[id] = sess
	return sess, nil
}

// Get retrieves a session without ever creating one.
func (st *Store) Get(_ context.Context, id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	sess, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Remove deletes a session. Removing an id that is already gone
// reports ErrSessionNotFound so a second end-session call gets a real
// error instead of silent success.
func (st *Store) Remove(_ context.Context, id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(st.sessions, id)
	return nil
}

// Len reports how many sessions are live.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

func (st *Store) resolveScenario(scenarioID string) (string, error) {
	if scenarioID == "" {
		scenarioID = st.defaultScenario
	}
	if _, ok := st.scenarios.FindByID(scenarioID); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownScenario, scenarioID)
	}
	return scenarioID, nil
}
