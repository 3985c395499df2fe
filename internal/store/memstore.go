package store

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/heysubinoy/quotakv/pkg/kv"
)

// MemStore is an in-memory implementation of the kv.Store interface.
// It uses a map protected by a RWMutex. Every mutation performs its existence
// check, quota check and write under a single write lock.
type MemStore struct {
	mu    sync.RWMutex
	data  map[string]string
	quota Quota
}

// Compile-time check to ensure MemStore implements kv.Store.
var _ kv.Store = (*MemStore)(nil)

// NewMemStore creates an empty MemStore holding at most capacity entries.
func NewMemStore(capacity int) *MemStore {
	quota := NewQuota(capacity)
	return &MemStore{
		data:  make(map[string]string, quota.Capacity()),
		quota: quota,
	}
}

// List returns a copy of all entries, sorted by key.
func (s *MemStore) List() []kv.Entry {
	s.mu.RLock()
	entries := make([]kv.Entry, 0, len(s.data))
	for k, v := range s.data {
		entries = append(entries, kv.Entry{Key: k, Value: v})
	}
	s.mu.RUnlock()

	slices.SortFunc(entries, func(a, b kv.Entry) int {
		return strings.Compare(a.Key, b.Key)
	})
	return entries
}

// Get returns the entry for key, or ErrNotFound.
func (s *MemStore) Get(key string) (kv.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.data[key]
	if !ok {
		return kv.Entry{}, fmt.Errorf("%w: %s", kv.ErrNotFound, key)
	}
	return kv.Entry{Key: key, Value: val}, nil
}

// Insert creates a new entry, refusing existing keys and growth past the
// quota.
func (s *MemStore) Insert(key, value string) (kv.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; ok {
		return kv.Entry{}, fmt.Errorf("%w: %s", kv.ErrDuplicateKey, key)
	}
	return s.create(key, value)
}

// Upsert overwrites an existing key without consulting the quota, or creates
// the entry exactly as Insert would.
func (s *MemStore) Upsert(key, value string) (kv.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; ok {
		s.data[key] = value
		return kv.Entry{Key: key, Value: value}, nil
	}
	return s.create(key, value)
}

// create must be called with the write lock held.
func (s *MemStore) create(key, value string) (kv.Entry, error) {
	if err := s.quota.Admit(len(s.data)); err != nil {
		return kv.Entry{}, err
	}
	s.data[key] = value
	return kv.Entry{Key: key, Value: value}, nil
}

// Remove deletes the entry for key, or returns ErrNotFound if it is absent.
func (s *MemStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return fmt.Errorf("%w: %s", kv.ErrNotFound, key)
	}
	delete(s.data, key)
	return nil
}

// Len returns the number of stored entries.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Capacity returns the maximum number of entries the store admits.
func (s *MemStore) Capacity() int { return s.quota.Capacity() }
