package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/viewkit/fetchcache"
)

// TypedStore stores JSON-serialized values of type V under a key prefix.
// It implements fetchcache.Persistent[V].
type TypedStore[V any] struct {
	client    *Client
	keyPrefix string
}

// NewTypedStore creates a TypedStore backed by client. Keys are written as
// "<client prefix>:<keyPrefix>:<key>".
func NewTypedStore[V any](client *Client, keyPrefix string) *TypedStore[V] {
	prefix := client.cfg.KeyPrefix
	if keyPrefix != "" {
		if prefix != "" {
			prefix += ":"
		}
		prefix += keyPrefix
	}
	return &TypedStore[V]{client: client, keyPrefix: prefix}
}

func (s *TypedStore[V]) fullKey(key string) string {
	if s.keyPrefix == "" {
		return key
	}
	return s.keyPrefix + ":" + key
}

// Load returns (nil, nil) if the key does not exist.
func (s *TypedStore[V]) Load(ctx context.Context, key string) (*V, error) {
	raw, err := s.client.Get(ctx, s.fullKey(key))
	if err != nil {
		if stderrors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("typed store load %q: %w", key, err)
	}

	var val V
	if err := json.Unmarshal(raw, &val); err != nil {
		return nil, fmt.Errorf("typed store unmarshal %q: %w", key, err)
	}
	return &val, nil
}

// Save stores val with ttl. A ttl of 0 means no expiration.
func (s *TypedStore[V]) Save(ctx context.Context, key string, val *V, ttl time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("typed store marshal %q: %w", key, err)
	}
	if err := s.client.Set(ctx, s.fullKey(key), data, ttl); err != nil {
		return fmt.Errorf("typed store save %q: %w", key, err)
	}
	return nil
}

// Delete removes the key.
func (s *TypedStore[V]) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.fullKey(key)); err != nil {
		return fmt.Errorf("typed store delete %q: %w", key, err)
	}
	return nil
}

// Purge removes every key under the store prefix and returns the count.
func (s *TypedStore[V]) Purge(ctx context.Context) (int, error) {
	keys, err := s.client.Keys(ctx, s.fullKey("*"))
	if err != nil {
		return 0, fmt.Errorf("typed store purge: %w", err)
	}
	if err := s.client.Del(ctx, keys...); err != nil {
		return 0, fmt.Errorf("typed store purge: %w", err)
	}
	return len(keys), nil
}

var _ fetchcache.Persistent[any] = (*TypedStore[any])(nil)
