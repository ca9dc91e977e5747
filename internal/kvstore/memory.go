package kvstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store for tests and ephemeral sessions.
// It is safe for concurrent use. Values are copied on the way in and out
// so callers cannot alias internal state.
type Memory struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{m: make(map[string][]byte)}
}

func (s *Memory) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.m[key]
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(v))
	copy(out, v)

	return out, nil
}

func (s *Memory) Set(_ context.Context, key string, value []byte) error {
	in := make([]byte, len(value))
	copy(in, value)

	s.mu.Lock()
	s.m[key] = in
	s.mu.Unlock()

	return nil
}

func (s *Memory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()

	return nil
}

func (s *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.m {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}

	sort.Strings(keys)

	return keys, nil
}

func (s *Memory) Close() error {
	return nil
}
