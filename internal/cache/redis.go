package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clustermaster/clustermaster/internal/logging"
)

const defaultRedisPrefix = "_clustermaster_cache_"

// RedisStore is a Store shared between coordinator replicas. Redis expires
// the keys, so an entry past its TTL is never returned.
type RedisStore struct {
	cli    *redis.Client
	prefix string
}

// NewRedisStore returns a Store using cli. An empty prefix selects the default.
func NewRedisStore(cli *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{cli: cli, prefix: prefix}
}

// NewRedisClient connects to addr and pings it.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	cli := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := cli.Ping(ctx).Err(); err != nil {
		cli.Close()
		return nil, err
	}
	return cli, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := s.cli.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.FromContext(ctx).Warn(ctx, "redis cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := s.cli.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		logging.FromContext(ctx).Warn(ctx, "redis cache set failed", "key", key, "error", err)
	}
}

// InvalidateAll deletes every key under the prefix.
func (s *RedisStore) InvalidateAll(ctx context.Context) {
	iter := s.cli.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logging.FromContext(ctx).Warn(ctx, "redis cache scan failed", "error", err)
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cli.Del(ctx, keys...).Err(); err != nil {
		logging.FromContext(ctx).Warn(ctx, "redis cache invalidate failed", "error", err)
	}
}

var _ Store = (*RedisStore)(nil)
