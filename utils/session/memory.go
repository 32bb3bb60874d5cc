package session

import (
	"context"
	"sync"
)

// MemoryStore keeps encoded sessions in a map. It is not durable and is
// meant for tests and short-lived servers.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]byte),
	}
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context) (string, error) {
	return NewID(), nil
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	data, exists := s.sessions[id]
	s.mu.RUnlock()

	if !exists {
		return nil, ErrNotFound
	}
	sess, err := Decode(data)
	if err != nil {
		return nil, storageErr("load", id, err)
	}
	return sess, nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, sess *Session) error {
	if err := ValidateID(sess.ID); err != nil {
		return storageErr("save", sess.ID, err)
	}
	data, err := Encode(sess)
	if err != nil {
		return storageErr("save", sess.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == nil {
		return storageErr("save", sess.ID, errClosed)
	}
	s.sessions[sess.ID] = data
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = nil
	return nil
}
