package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"fitidea/internal/adapters/observability"
)

// Cache is the cache-aside gateway. A Cache without a client is "unavailable":
// reads miss and writes are dropped, so ingestion keeps working without Redis.
type Cache struct{ c *redis.Client }

func New(addr, pass string, db int) *Cache {
	if addr == "" {
		log.Warn().Msg("REDIS_ADDR is empty; cache disabled")
		return &Cache{}
	}
	return &Cache{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

// NewWithClient wraps an existing client; nil yields an unavailable cache.
func NewWithClient(c *redis.Client) *Cache { return &Cache{c: c} }

func (r *Cache) Available() bool { return r != nil && r.c != nil }

// Get loads key into dst. Structured values are JSON decoded. When dst is a *string
// and the stored value is not JSON, the raw stored text is returned instead.
func (r *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if !r.Available() {
		return false, nil
	}
	v, err := r.c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveCache("redis", "miss")
		return false, nil
	}
	if err != nil {
		observability.ObserveCache("redis", "error")
		log.Warn().Err(err).Str("key", key).Msg("cache get failed; treating as miss")
		return false, nil
	}
	if err := json.Unmarshal(v, dst); err != nil {
		if s, ok := dst.(*string); ok {
			*s = string(v)
			observability.ObserveCache("redis", "hit")
			return true, nil
		}
		observability.ObserveCache("redis", "miss")
		return false, err
	}
	observability.ObserveCache("redis", "hit")
	return true, nil
}

// Set stores v for ttl (0 keeps it until evicted). Strings are stored verbatim.
func (r *Cache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !r.Available() {
		return nil
	}
	var payload any
	switch t := v.(type) {
	case string:
		payload = t
	case []byte:
		payload = t
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		payload = b
	}
	observability.ObserveCache("redis", "set")
	if err := r.c.Set(ctx, key, payload, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
	return nil
}

func (r *Cache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if !r.Available() {
		return nil
	}
	observability.ObserveCache("redis", "expire")
	if err := r.c.Expire(ctx, key, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache expire failed")
	}
	return nil
}

func (r *Cache) Close() error {
	if !r.Available() {
		return nil
	}
	return r.c.Close()
}
