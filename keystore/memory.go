package keystore

import (
	"maps"
	"slices"
	"sync"

	"github.com/f3rmion/keyserver/keyshare"
)

// MemoryStore is an in-process Store. Records are cloned on the way in
// and out so callers never share state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[keyshare.SessionID]*keyshare.Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[keyshare.SessionID]*keyshare.Record)}
}

// Get implements Store.
func (s *MemoryStore) Get(id keyshare.SessionID) (*keyshare.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Insert implements Store.
func (s *MemoryStore) Insert(id keyshare.SessionID, rec *keyshare.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; ok {
		return ErrExists
	}
	s.records[id] = rec.Clone()
	return nil
}

// Update implements Store.
func (s *MemoryStore) Update(id keyshare.SessionID, rec *keyshare.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	s.records[id] = rec.Clone()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(id keyshare.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// Iterate implements View. The snapshot is taken under the read lock;
// fn runs without holding it.
func (s *MemoryStore) Iterate(fn func(keyshare.SessionID, *keyshare.Record) error) error {
	s.mu.RLock()
	snapshot := make(map[keyshare.SessionID]*keyshare.Record, len(s.records))
	for id, rec := range s.records {
		snapshot[id] = rec.Clone()
	}
	s.mu.RUnlock()

	ids := slices.SortedFunc(maps.Keys(snapshot), keyshare.SessionID.Compare)
	for _, id := range ids {
		if err := fn(id, snapshot[id]); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
