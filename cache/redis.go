package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/agentrt/core"
)

const defaultRedisPrefix = "agentrt:result:"

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	TTL    time.Duration
	Prefix string
}

// RedisStore shares cached results between runtime replicas through Redis.
// Expiry is delegated to Redis key TTLs.
type RedisStore struct {
	rdb  redis.UniversalClient
	opts RedisOptions
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb redis.UniversalClient, optFns ...func(o *RedisOptions)) *RedisStore {
	opts := RedisOptions{TTL: DefaultTTL, Prefix: defaultRedisPrefix}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &RedisStore{rdb: rdb, opts: opts}
}

// NewRedisStoreFromURL parses a redis:// URL and connects lazily.
func NewRedisStoreFromURL(url string, optFns ...func(o *RedisOptions)) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	return NewRedisStore(redis.NewClient(opt), optFns...), nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (*core.Result, bool, error) {
	b, err := s.rdb.Get(ctx, s.opts.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	var res core.Result
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, false, fmt.Errorf("decode cached result: %w", err)
	}

	return &res, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, res *core.Result) error {
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	return s.rdb.Set(ctx, s.opts.Prefix+key, b, s.opts.TTL).Err()
}

// Close releases the underlying client.
func (s *RedisStore) Close() error { return s.rdb.Close() }
