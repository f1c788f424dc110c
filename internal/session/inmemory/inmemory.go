package inmemory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mohammad-safakhou/converse/internal/session"
)

// Store keeps sessions in process memory, keyed by conversation ID.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session.SearchSession
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*session.SearchSession)}
}

func (s *Store) Get(_ context.Context, conversationID string) (*session.SearchSession, error) {
	s.mu.RLock()
	stored, ok := s.sessions[conversationID]
	s.mu.RUnlock()
	if !ok {
		return &session.SearchSession{}, nil
	}
	return cloneSession(stored)
}

func (s *Store) Save(_ context.Context, conversationID string, sess *session.SearchSession) error {
	snapshot, err := cloneSession(sess)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sessions[conversationID] = snapshot
	s.mu.Unlock()
	return nil
}

func (s *Store) Reset(_ context.Context, conversationID string) error {
	s.mu.Lock()
	delete(s.sessions, conversationID)
	s.mu.Unlock()
	return nil
}

// cloneSession deep-copies via JSON so callers never share slices with the
// stored snapshot.
func cloneSession(in *session.SearchSession) (*session.SearchSession, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var out session.SearchSession
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
