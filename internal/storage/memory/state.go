// Package memory holds process-local state for runs without a database.
package memory

import (
	"context"
	"sync"
)

// StateStore is an in-memory key-value store. Values are lost on restart.
type StateStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewStateStore() *StateStore {
	return &StateStore{data: make(map[string]string)}
}

func (s *StateStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *StateStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *StateStore) Ready(context.Context) error { return nil }
