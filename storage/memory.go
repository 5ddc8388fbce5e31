package storage

import "sync"

// MemoryStore keeps the tree in process memory. Tests inject a fresh
// instance per case; the default platform uses it when no persistence path
// is configured.
type MemoryStore struct {
	mu   sync.Mutex
	tree map[string]any
}

// Verify MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tree: make(map[string]any)}
}

// MemoryFactory opens a fresh in-memory store per name.
func MemoryFactory() Factory {
	return func(string) (Store, error) {
		return NewMemoryStore(), nil
	}
}

// Get returns a deep copy of the value at index.
func (s *MemoryStore) Get(index ...string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(index) == 0 {
		if len(s.tree) == 0 {
			return nil, nil
		}
		return deepCopy(s.tree), nil
	}
	v := getNested(s.tree, index)
	if v == nil {
		return nil, nil
	}
	return deepCopy(v), nil
}

// Update applies transform to the value at index.
func (s *MemoryStore) Update(index []string, transform func(old any) any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateNested(s.tree, index, transform)
}

// Delete removes the value at index. An empty index clears the store.
func (s *MemoryStore) Delete(index ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(index) == 0 {
		s.tree = make(map[string]any)
		return nil
	}
	deleteNested(s.tree, index)
	return nil
}
