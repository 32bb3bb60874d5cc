package session

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreOption is a functional option for configuring a session store.
type StoreOption func(*storeConfig)

// storeConfig holds configuration for session stores.
type storeConfig struct {
	dir         string
	dsn         string
	redisClient *redis.Client
	redisTTL    time.Duration
}

// WithDir sets the directory used by the file store.
func WithDir(dir string) StoreOption {
	return func(c *storeConfig) {
		c.dir = dir
	}
}

// WithDSN sets the data source name for the sqlite and postgres stores.
func WithDSN(dsn string) StoreOption {
	return func(c *storeConfig) {
		c.dsn = dsn
	}
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithRedisTTL sets the TTL for Redis keys. Zero keeps sessions indefinitely.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.redisTTL = ttl
	}
}
