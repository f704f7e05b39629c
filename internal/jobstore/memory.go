package jobstore

import (
	"context"
	"fmt"
	"path"
	"sync"
)

// MemoryStore is an in-process Store used by tests and by stub-mode
// development runs. TTLs are not modeled; tests assert presence and
// absence explicitly.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	cp := make([]byte, len(val))
	copy(cp, val)
	return cp, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) DeleteByPattern(_ context.Context, pattern string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int
	for key := range s.data {
		ok, err := path.Match(pattern, key)
		if err != nil {
			return deleted, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if ok {
			delete(s.data, key)
			deleted++
		}
	}
	return deleted, nil
}

// Len reports how many keys are stored. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
