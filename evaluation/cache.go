package evaluation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	// RedisKeyPrefix namespaces every cached analysis result.
	RedisKeyPrefix = "screentime-wellbeing:"
	// DefaultCacheTTL bounds how long a cached report is reused.
	DefaultCacheTTL = 24 * time.Hour
)

// ResultCache stores analysis reports keyed by input checksum and
// parameters. Get reports whether the key was found.
type ResultCache interface {
	Get(ctx context.Context, key string, v interface{}) (bool, error)
	Set(ctx context.Context, key string, v interface{}) error
}

// CacheKey derives a deterministic key from the dataset checksum, the
// component name and the parameters that affect its output.
func CacheKey(checksum string, component Component, params ...interface{}) string {
	h := sha256.New()
	for _, p := range params {
		data, err := json.Marshal(p)
		if err != nil {
			data = []byte(fmt.Sprint(p))
		}
		h.Write(data)
		h.Write([]byte{0})
	}
	return strings.Join([]string{string(component), checksum, hex.EncodeToString(h.Sum(nil))[:16]}, ":")
}

// RedisResultCache keeps reports in Redis as JSON.
type RedisResultCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisResultCache connects to addr and verifies the connection.
func NewRedisResultCache(ctx context.Context, addr string, ttl time.Duration, logger *zap.Logger) (*RedisResultCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	logger.Info("Connected to result cache", zap.String("addr", addr), zap.Duration("ttl", ttl))
	return NewRedisResultCacheFromClient(client, ttl, logger), nil
}

// NewRedisResultCacheFromClient wraps an existing client.
func NewRedisResultCacheFromClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisResultCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisResultCache{client: client, ttl: ttl, logger: logger}
}

// Get decodes a cached report into v. A missing key is not an error.
func (c *RedisResultCache) Get(ctx context.Context, key string, v interface{}) (bool, error) {
	data, err := c.client.Get(ctx, RedisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cached result %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached result %s: %w", key, err)
	}
	return true, nil
}

// Set stores v under key for the configured TTL.
func (c *RedisResultCache) Set(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal result %s: %w", key, err)
	}
	if err := c.client.Set(ctx, RedisKeyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache result %s: %w", key, err)
	}
	c.logger.Debug("Cached analysis result",
		zap.String("key", key),
		zap.Duration("ttl", c.ttl),
		zap.Int("bytes", len(data)))
	return nil
}

// Close releases the Redis connection pool.
func (c *RedisResultCache) Close() error {
	return c.client.Close()
}

// MemoryResultCache is an in-process ResultCache. Entries are stored as
// JSON so hits return independent copies.
type MemoryResultCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryResultCache creates an empty cache.
func NewMemoryResultCache() *MemoryResultCache {
	return &MemoryResultCache{entries: make(map[string][]byte)}
}

func (c *MemoryResultCache) Get(_ context.Context, key string, v interface{}) (bool, error) {
	c.mu.RLock()
	data, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached result %s: %w", key, err)
	}
	return true, nil
}

func (c *MemoryResultCache) Set(_ context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal result %s: %w", key, err)
	}
	c.mu.Lock()
	c.entries[key] = data
	c.mu.Unlock()
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
