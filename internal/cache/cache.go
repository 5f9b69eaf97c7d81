// Package cache memoizes external detection results in Redis, keyed by a
// hash of the analysed text.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zombar/aidetector/internal/analyzer"
	"github.com/zombar/aidetector/internal/models"
)

const (
	keyPrefix  = "aidetector:lookup:"
	DefaultTTL = 24 * time.Hour
)

// ErrMiss is returned by a Store when the key is absent
var ErrMiss = errors.New("cache miss")

// Store is the key/value backend used by LookupCache
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisStore implements Store on a go-redis client
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to addr and verifies the connection
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return v, err
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Close releases the connection pool
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// LookupCache wraps a Lookup and serves repeated texts from the store. Store
// failures are logged and fall through to the wrapped lookup.
type LookupCache struct {
	next      analyzer.Lookup
	store     Store
	namespace string
	ttl       time.Duration
	logger    *slog.Logger
}

// NewLookupCache wraps next. namespace separates providers/models sharing one
// store.
func NewLookupCache(next analyzer.Lookup, store Store, namespace string, ttl time.Duration) *LookupCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LookupCache{
		next:      next,
		store:     store,
		namespace: namespace,
		ttl:       ttl,
		logger:    slog.Default().With("component", "lookup_cache"),
	}
}

// Key returns the store key for text
func (c *LookupCache) Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return keyPrefix + c.namespace + ":" + hex.EncodeToString(sum[:])
}

// DetectAIContent implements analyzer.Lookup
func (c *LookupCache) DetectAIContent(ctx context.Context, text string) (*models.ExternalAnalysis, error) {
	key := c.Key(text)

	cached, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var result models.ExternalAnalysis
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			return &result, nil
		}
		c.logger.Warn("discarding undecodable cache entry", "key", key)
	case !errors.Is(err, ErrMiss):
		c.logger.Warn("cache read failed", "error", err)
	}

	result, err := c.next.DetectAIContent(ctx, text)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return result, nil
	}
	if err := c.store.Set(ctx, key, string(data), c.ttl); err != nil {
		c.logger.Warn("cache write failed", "error", err)
	}
	return result, nil
}
