// Package cache is the short-TTL read-side cache in front of the cluster
// list and detail aggregation.
package cache

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/clustermaster/clustermaster/internal/logging"
)

// Class selects the TTL of an entry.
type Class int

const (
	// Fast is used for the cheap list view.
	Fast Class = iota
	// Full is used for detail views that query every node.
	Full
)

func (c Class) String() string {
	if c == Fast {
		return "fast"
	}
	return "full"
}

const (
	DefaultFastTTL = 2 * time.Second
	DefaultFullTTL = 3 * time.Second
)

// Store holds encoded entries. An expired entry must never be returned.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// InvalidateAll drops every entry.
	InvalidateAll(ctx context.Context)
}

// Cache encodes values as JSON and applies the TTL class of each key.
// Concurrent loads of the same key are collapsed.
type Cache struct {
	store   Store
	fastTTL time.Duration
	fullTTL time.Duration
	group   singleflight.Group
	gen     atomic.Uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the TTL of both classes. Zero keeps the default.
func WithTTL(fast, full time.Duration) Option {
	return func(c *Cache) {
		if fast > 0 {
			c.fastTTL = fast
		}
		if full > 0 {
			c.fullTTL = full
		}
	}
}

// New returns a Cache over store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{store: store, fastTTL: DefaultFastTTL, fullTTL: DefaultFullTTL}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TTL returns the time to live of class.
func (c *Cache) TTL(class Class) time.Duration {
	if class == Fast {
		return c.fastTTL
	}
	return c.fullTTL
}

// Get decodes the entry of key into v and reports a hit.
func (c *Cache) Get(ctx context.Context, key string, v any) bool {
	data, ok := c.store.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		logging.FromContext(ctx).Warn(ctx, "dropping undecodable cache entry", "key", key, "error", err)
		return false
	}
	return true
}

// Set stores v under key with the TTL of class.
func (c *Cache) Set(ctx context.Context, key string, class Class, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.FromContext(ctx).Warn(ctx, "cache value not encodable", "key", key, "error", err)
		return
	}
	c.store.Set(ctx, key, data, c.TTL(class))
}

// InvalidateAll clears every key regardless of its age.
func (c *Cache) InvalidateAll(ctx context.Context) {
	c.gen.Add(1)
	c.store.InvalidateAll(ctx)
}

// GetOrLoad returns the cached value of key or calls load and caches its
// result. Errors are not cached, and neither are results of loads that
// started before an InvalidateAll. A nil cache calls load every time.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, class Class, load func(context.Context) (T, error)) (T, error) {
	var out T
	if c == nil {
		return load(ctx)
	}
	if c.Get(ctx, key, &out) {
		return out, nil
	}
	gen := c.gen.Load()
	// The shared load outlives any single caller; each caller still stops
	// waiting when its own context ends.
	lctx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(strconv.FormatUint(gen, 10)+"/"+key, func() (any, error) {
		val, err := load(lctx)
		if err != nil {
			return val, err
		}
		if c.gen.Load() == gen {
			c.Set(lctx, key, class, val)
		}
		return val, nil
	})
	select {
	case <-ctx.Done():
		return out, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return out, r.Err
		}
		return r.Val.(T), nil
	}
}
