package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a key or hash field is absent from the store.
	ErrNotFound = errors.New("key not found in store")

	// ErrBadPayload is returned when a cached value cannot be decoded as JSON.
	ErrBadPayload = errors.New("malformed cached payload")
)

// Store is the contract for the persistent key/value cache.
// Scalar keys hold the city→coordinates mapping; hash fields hold
// per-city forecasts.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	GetObject(ctx context.Context, key string, v any) error
	Set(ctx context.Context, key, value string) error
	SetObject(ctx context.Context, key string, v any) error

	HashGet(ctx context.Context, hash, field string) (string, error)
	HashGetObject(ctx context.Context, hash, field string, v any) error
	HashSet(ctx context.Context, hash, field, value string) error
	HashSetObject(ctx context.Context, hash, field string, v any) error
}
