package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is a concurrency-safe in-memory Store implementation. It is
// used as a fallback when the Valkey server is unreachable at boot; cached
// data then does not survive a restart, but the service stays functional.
type MemoryStore struct {
	mu sync.RWMutex

	values map[string]string
	hashes map[string]map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
		hashes: make(map[string]map[string]string),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *MemoryStore) GetObject(ctx context.Context, key string, v any) error {
	value, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	return decode(value, v)
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}

func (s *MemoryStore) SetObject(ctx context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, string(payload))
}

func (s *MemoryStore) HashGet(_ context.Context, hash, field string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.hashes[hash]
	if !ok {
		return "", ErrNotFound
	}
	value, ok := fields[field]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *MemoryStore) HashGetObject(ctx context.Context, hash, field string, v any) error {
	value, err := s.HashGet(ctx, hash, field)
	if err != nil {
		return err
	}
	return decode(value, v)
}

func (s *MemoryStore) HashSet(_ context.Context, hash, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, ok := s.hashes[hash]
	if !ok {
		fields = make(map[string]string)
		s.hashes[hash] = fields
	}
	fields[field] = value
	return nil
}

func (s *MemoryStore) HashSetObject(ctx context.Context, hash, field string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.HashSet(ctx, hash, field, string(payload))
}

var _ Store = (*MemoryStore)(nil)
