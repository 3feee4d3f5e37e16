package cache

import (
	"context"
	"time"
)

// Store is a byte-oriented cache that may live outside the process.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore is the in-process Store backed by a TTL map.
type MemoryStore struct {
	ttl *TTL[string, []byte]
}

// NewMemoryStore creates a MemoryStore whose entries default to ttl.
func NewMemoryStore(ttl time.Duration, now Clock) *MemoryStore {
	return &MemoryStore{ttl: NewTTL[string, []byte](ttl, now)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.ttl.Get(key)
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.ttl.SetWithTTL(key, value, ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.ttl.Delete(key)
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int { return s.ttl.Len() }
