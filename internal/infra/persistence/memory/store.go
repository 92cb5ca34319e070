// Package memory provides an in-memory preference store. The sqlite and
// postgres stores embed it as their read cache.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"hemocount/pkg/domain"
)

var _ domain.PreferenceStore = (*Store)(nil)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("preference store closed")

// Store keeps preference slots in a map guarded by a RWMutex.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{values: make(map[string]string)}
}

// Get returns the stored value for key and whether it was present.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return errors.New("preference key required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.values[key] = value
	return nil
}

// Close marks the store closed. Further calls fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ExportState returns a copy of every stored slot.
func (s *Store) ExportState() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// ImportState replaces the stored slots with a copy of state.
func (s *Store) ImportState(state map[string]string) {
	values := make(map[string]string, len(state))
	for k, v := range state {
		values[k] = v
	}
	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
}
