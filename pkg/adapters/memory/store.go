// Package memory provides in-process adapters: a compare-and-swap
// session store and a bot registry. Both are safe for concurrent use
// and intended for tests, previews and single-node deployments.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/chatwalk/chatwalk/pkg/domain"
	"github.com/chatwalk/chatwalk/pkg/ports"
)

type entry struct {
	data    []byte
	version uint64
}

// Store implements ports.SessionStore in memory. States are kept as
// JSON snapshots so callers can't reach into stored state by pointer,
// matching the isolation a real store gives.
type Store struct {
	mu      sync.Mutex
	data    map[string]*entry
	counter uint64
}

// NewStore creates an empty in-memory session store.
func NewStore() *Store {
	return &Store{data: make(map[string]*entry)}
}

// Load retrieves the state and its version token.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.SessionState, ports.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[sessionID]
	if !ok {
		return nil, ports.NoVersion, domain.ErrSessionNotFound
	}
	var state domain.SessionState
	if err := json.Unmarshal(e.data, &state); err != nil {
		return nil, ports.NoVersion, fmt.Errorf("corrupt session %s: %w", sessionID, err)
	}
	return &state, ports.Version(strconv.FormatUint(e.version, 10)), nil
}

// Commit persists the state when the stored token still matches.
func (s *Store) Commit(ctx context.Context, sessionID string, state *domain.SessionState, expected ports.Version) (ports.Version, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return ports.NoVersion, fmt.Errorf("failed to encode session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.data[sessionID]
	switch {
	case !exists && expected != ports.NoVersion:
		return ports.NoVersion, domain.ErrVersionConflict
	case exists && expected != ports.Version(strconv.FormatUint(current.version, 10)):
		return ports.NoVersion, domain.ErrVersionConflict
	}

	s.counter++
	s.data[sessionID] = &entry{data: data, version: s.counter}
	return ports.Version(strconv.FormatUint(s.counter, 10)), nil
}

// Delete removes the session. Absent sessions are a no-op.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}
