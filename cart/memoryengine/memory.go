// Package memoryengine provides an in-memory cart.Storage, suitable for
// tests and single-process hosts.
package memoryengine

import (
	"context"
	"sync"
)

// Storage is an in-memory snapshot store guarded by a RWMutex. Puts
// replace the stored value wholesale, matching the cart's snapshot-replace
// contract. The zero value is not usable; create it with NewStorage.
type Storage struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

// NewStorage creates an empty in-memory storage.
func NewStorage() *Storage {
	return &Storage{
		snapshots: make(map[string][]byte),
	}
}

// Get returns the snapshot stored under key.
func (s *Storage) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, found := s.snapshots[key]
	if !found {
		return nil, false, nil
	}

	copied := make([]byte, len(value))
	copy(copied, value)

	return copied, true, nil
}

// Put replaces the snapshot stored under key.
func (s *Storage) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]byte, len(value))
	copy(copied, value)

	s.snapshots[key] = copied

	return nil
}

// Keys returns the currently stored keys, in no particular order.
func (s *Storage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.snapshots))
	for key := range s.snapshots {
		keys = append(keys, key)
	}

	return keys
}
