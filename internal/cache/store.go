package cache

import (
	"sync"

	"chtl/internal/diag"
)

// Store is a two-level result cache: a bounded in-memory map in front of an
// optional DiskCache.
type Store struct {
	mu      sync.Mutex
	mem     map[Digest]Entry
	order   []Digest
	maxSize int
	disk    *DiskCache
}

// NewStore returns a store keeping at most maxSize entries in memory. disk
// may be nil.
func NewStore(maxSize int, disk *DiskCache) *Store {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &Store{
		mem:     make(map[Digest]Entry, maxSize),
		maxSize: maxSize,
		disk:    disk,
	}
}

// Get returns the cached records for key. A disk error is returned together
// with a miss; the caller decides whether it matters.
func (s *Store) Get(key Digest) ([]diag.Record, bool, error) {
	if s == nil {
		return nil, false, nil
	}
	s.mu.Lock()
	entry, ok := s.mem[key]
	s.mu.Unlock()
	if ok {
		return entry.Records, true, nil
	}
	if s.disk == nil {
		return nil, false, nil
	}
	ok, err := s.disk.Get(key, &entry)
	if err != nil || !ok {
		return nil, false, err
	}
	s.remember(key, entry)
	return entry.Records, true, nil
}

// Put records the outcome for key in memory and on disk.
func (s *Store) Put(key Digest, entry Entry) error {
	if s == nil {
		return nil
	}
	s.remember(key, entry)
	if s.disk == nil {
		return nil
	}
	return s.disk.Put(key, &entry)
}

func (s *Store) remember(key Digest, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mem[key]; !ok {
		s.order = append(s.order, key)
	}
	s.mem[key] = entry
	for len(s.order) > s.maxSize {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.mem, oldest)
	}
}

// Len returns the number of in-memory entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mem)
}
