package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/valkey-io/valkey-go"
)

// ValkeyStore persists values in a Valkey/Redis-compatible server.
type ValkeyStore struct {
	client valkey.Client
}

// NewValkeyStore wraps an existing Valkey client.
func NewValkeyStore(client valkey.Client) *ValkeyStore {
	return &ValkeyStore{client: client}
}

func (s *ValkeyStore) Get(ctx context.Context, key string) (string, error) {
	resp := s.client.Do(ctx, s.client.B().Get().Key(key).Build())
	value, err := resp.ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (s *ValkeyStore) GetObject(ctx context.Context, key string, v any) error {
	value, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	return decode(value, v)
}

func (s *ValkeyStore) Set(ctx context.Context, key, value string) error {
	return s.client.Do(ctx, s.client.B().Set().Key(key).Value(value).Build()).Error()
}

func (s *ValkeyStore) SetObject(ctx context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, string(payload))
}

func (s *ValkeyStore) HashGet(ctx context.Context, hash, field string) (string, error) {
	resp := s.client.Do(ctx, s.client.B().Hget().Key(hash).Field(field).Build())
	value, err := resp.ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (s *ValkeyStore) HashGetObject(ctx context.Context, hash, field string, v any) error {
	value, err := s.HashGet(ctx, hash, field)
	if err != nil {
		return err
	}
	return decode(value, v)
}

func (s *ValkeyStore) HashSet(ctx context.Context, hash, field, value string) error {
	cmd := s.client.B().Hset().Key(hash).FieldValue().FieldValue(field, value).Build()
	return s.client.Do(ctx, cmd).Error()
}

func (s *ValkeyStore) HashSetObject(ctx context.Context, hash, field string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.HashSet(ctx, hash, field, string(payload))
}

func decode(value string, v any) error {
	if err := json.Unmarshal([]byte(value), v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

var _ Store = (*ValkeyStore)(nil)
