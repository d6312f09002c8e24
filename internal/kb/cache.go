package kb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is the answer cache entry lifetime when none is configured.
const DefaultCacheTTL = 15 * time.Minute

// cacheKeyPrefix namespaces ragcore keys in a shared Redis instance.
const cacheKeyPrefix = "ragcore:answer:"

// RedisCacheConfig configures the Redis answer cache.
type RedisCacheConfig struct {
	Addr     string        // Redis server address (e.g., "localhost:6379")
	Password string        // Redis password (if any)
	DB       int           // Redis database number
	TTL      time.Duration // Entry lifetime (0 uses DefaultCacheTTL)
}

// RedisAnswerCache implements AnswerCache on Redis. Cache misses and Redis
// outages degrade to uncached behavior; the pipeline never fails because the
// cache is down.
type RedisAnswerCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ AnswerCache = (*RedisAnswerCache)(nil)

// NewRedisAnswerCache creates a Redis-backed answer cache.
func NewRedisAnswerCache(cfg RedisCacheConfig) *RedisAnswerCache {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisAnswerCache{
		client: client,
		ttl:    cfg.TTL,
		logger: slog.Default(),
	}
}

// Get fetches a cached result. A Redis error reads as a miss.
func (c *RedisAnswerCache) Get(ctx context.Context, key string) (*QueryResult, bool) {
	data, err := c.client.Get(ctx, c.redisKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("answer cache get failed", slog.String("error", err.Error()))
		}
		return nil, false
	}

	var result QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("answer cache entry corrupt, ignoring", slog.String("error", err.Error()))
		return nil, false
	}
	return &result, true
}

// Set stores a result under the key with the configured TTL.
func (c *RedisAnswerCache) Set(ctx context.Context, key string, result *QueryResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal cached result: %w", err)
	}
	return c.client.Set(ctx, c.redisKey(key), data, c.ttl).Err()
}

// Close releases the Redis connection.
func (c *RedisAnswerCache) Close() error {
	return c.client.Close()
}

// redisKey hashes the question so arbitrarily long questions produce bounded
// keys.
func (c *RedisAnswerCache) redisKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
