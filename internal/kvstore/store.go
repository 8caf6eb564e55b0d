// Package kvstore is a small string key/value store with a size quota, the
// local stand-in for browser storage. It lives in memory and, when given a
// path, persists every change to a single JSON file written atomically.
package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/filex"
)

// DefaultQuota matches the usual browser storage allowance.
const DefaultQuota = 5 << 20

// Store is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	path  string
	quota int64
	items map[string]string
	size  int64
}

// Open loads the store at path, or creates an empty in-memory store when
// path is "". A quota <= 0 means DefaultQuota.
func Open(path string, quota int64) (*Store, error) {
	if quota <= 0 {
		quota = DefaultQuota
	}
	s := &Store{path: path, quota: quota, items: map[string]string{}}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", common.ErrStorage, path, err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.items); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", common.ErrStorage, path, err)
		}
	}
	s.size = sizeOf(s.items)
	return s, nil
}

func itemSize(k, v string) int64 {
	return int64(len(k) + len(v))
}

func sizeOf(items map[string]string) int64 {
	var n int64
	for k, v := range items {
		n += itemSize(k, v)
	}
	return n
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

// Set stores value under key. It fails with common.ErrQuotaExceeded when the
// store would grow past its quota, leaving the previous value in place.
func (s *Store) Set(key, value string) error {
	return s.Update(key, func(string, bool) (string, bool, error) {
		return value, true, nil
	})
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(key string) error {
	return s.Update(key, func(string, bool) (string, bool, error) {
		return "", false, nil
	})
}

// Update replaces the value under key with the result of fn, atomically with
// respect to other calls. fn receives the current value; returning keep=false
// deletes the key. An error from fn aborts the update.
func (s *Store) Update(key string, fn func(old string, ok bool) (value string, keep bool, err error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.items[key]
	value, keep, err := fn(old, ok)
	if err != nil {
		return err
	}

	next := s.size
	if ok {
		next -= itemSize(key, old)
	}
	if keep {
		next += itemSize(key, value)
	}
	if next > s.quota {
		return fmt.Errorf("%w: %d bytes over a %d byte quota", common.ErrQuotaExceeded, next, s.quota)
	}

	if keep {
		s.items[key] = value
	} else {
		delete(s.items, key)
	}
	if err := s.flush(); err != nil {
		if ok {
			s.items[key] = old
		} else {
			delete(s.items, key)
		}
		return err
	}
	s.size = next
	return nil
}

// SetItems writes several keys in one step: either every value is stored or
// none is. Keys mapped to nil are removed.
func (s *Store) SetItems(items map[string]*string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]string, len(s.items)+len(items))
	for k, v := range s.items {
		next[k] = v
	}
	for k, v := range items {
		if v == nil {
			delete(next, k)
			continue
		}
		next[k] = *v
	}

	size := sizeOf(next)
	if size > s.quota {
		return fmt.Errorf("%w: %d bytes over a %d byte quota", common.ErrQuotaExceeded, size, s.quota)
	}

	prev := s.items
	s.items = next
	if err := s.flush(); err != nil {
		s.items = prev
		return err
	}
	s.size = size
	return nil
}

// Keys returns the keys starting with prefix, sorted.
func (s *Store) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// Clear removes every key.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.items
	s.items = map[string]string{}
	if err := s.flush(); err != nil {
		s.items = prev
		return err
	}
	s.size = 0
	return nil
}

// Size returns the bytes in use and the quota.
func (s *Store) Size() (used, quota int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size, s.quota
}

// flush must be called with mu held.
func (s *Store) flush() error {
	if s.path == "" {
		return nil
	}
	data, err := json.Marshal(s.items)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", common.ErrStorage, err)
	}
	if err := filex.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return nil
}
