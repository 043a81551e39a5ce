package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the caching interface. All cache operations go through here.
// Implementations must be safe for concurrent use.
type Cache interface {
	Ping(ctx context.Context) error
	MarkCounted(ctx context.Context, sessionID, jobID string, ttl time.Duration) (bool, error)
	IsCounted(ctx context.Context, sessionID, jobID string) (bool, error)
	SetJobStatus(ctx context.Context, jobID string, status string, ttl time.Duration) error
	GetJobStatus(ctx context.Context, jobID string) (string, bool, error)
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
	Close() error
}

// RedisCache implements the Cache interface using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// MarkCounted claims jobID for crediting within a session. It returns true
// only for the first caller; the claim is a single SETNX.
func (c *RedisCache) MarkCounted(ctx context.Context, sessionID, jobID string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, CountedKey(sessionID, jobID), "1", ttl).Result()
}

func (c *RedisCache) IsCounted(ctx context.Context, sessionID, jobID string) (bool, error) {
	n, err := c.client.Exists(ctx, CountedKey(sessionID, jobID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisCache) SetJobStatus(ctx context.Context, jobID string, status string, ttl time.Duration) error {
	return c.client.Set(ctx, JobStatusKey(jobID), status, ttl).Err()
}

func (c *RedisCache) GetJobStatus(ctx context.Context, jobID string) (string, bool, error) {
	val, err := c.client.Get(ctx, JobStatusKey(jobID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// IncrWithExpiry increments key and refreshes its expiry in one transaction.
func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// CountedSet binds a Cache to one session so that it can serve as the
// orchestrator's counted set.
type CountedSet struct {
	cache     Cache
	sessionID string
	ttl       time.Duration
}

// NewCountedSet creates a session-scoped counted set. A zero ttl keeps claims
// forever.
func NewCountedSet(c Cache, sessionID string, ttl time.Duration) *CountedSet {
	return &CountedSet{cache: c, sessionID: sessionID, ttl: ttl}
}

func (s *CountedSet) MarkCounted(ctx context.Context, jobID string) (bool, error) {
	return s.cache.MarkCounted(ctx, s.sessionID, jobID, s.ttl)
}

func (s *CountedSet) IsCounted(ctx context.Context, jobID string) (bool, error) {
	return s.cache.IsCounted(ctx, s.sessionID, jobID)
}

// Compile-time check that RedisCache implements Cache.
var _ Cache = (*RedisCache)(nil)
