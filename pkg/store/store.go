// Package store provides the key-value store behind Herald's mutable
// state: last-ticket-per-channel, identity bindings, and notification
// timestamps. Backends are swappable (in-memory, sqlite, redis, or
// postgres) and callers treat every accessor as potentially failing.
package store

import (
	"context"
	"strings"
	"sync"
)

// Store is a flat string key-value store. Reading an absent key returns
// an empty value and a nil error; callers that need to distinguish
// absence store non-empty values.
type Store interface {
	// Get returns the value for key, or "" when absent.
	Get(ctx context.Context, key string) (string, error)

	// Set writes value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// All returns every key/value pair whose key starts with prefix.
	All(ctx context.Context, prefix string) (map[string]string, error)

	// Close releases the backend's resources.
	Close() error
}

// Memory is the in-process Store used by default and in tests.
// Safe for concurrent use.
type Memory struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{m: make(map[string]string)}
}

func (s *Memory) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[key], nil
}

func (s *Memory) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *Memory) All(ctx context.Context, prefix string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string)
	for k, v := range s.m {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func (s *Memory) Close() error { return nil }
