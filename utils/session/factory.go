package session

import (
	"github.com/kris-hansen/summaprompt/utils/config"
	"github.com/redis/go-redis/v9"
)

// StoreType represents the type of session store.
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeFile     StoreType = "file"
	StoreTypeSQLite   StoreType = "sqlite"
	StoreTypePostgres StoreType = "postgres"
	StoreTypeRedis    StoreType = "redis"
)

// NewStore creates a new Store based on the given type.
// The file store requires WithDir, sqlite and postgres require WithDSN and
// redis requires WithRedisClient.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch storeType {
	case StoreTypeMemory:
		return NewMemoryStore(), nil

	case StoreTypeFile:
		if cfg.dir == "" {
			return nil, ErrInvalidConfig
		}
		return NewFileStore(cfg.dir)

	case StoreTypeSQLite:
		if cfg.dsn == "" {
			return nil, ErrInvalidConfig
		}
		return OpenSQLStore(DialectSQLite, cfg.dsn)

	case StoreTypePostgres:
		if cfg.dsn == "" {
			return nil, ErrInvalidConfig
		}
		return OpenSQLStore(DialectPostgres, cfg.dsn)

	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return NewRedisStore(cfg.redisClient, cfg.redisTTL), nil

	default:
		return nil, ErrInvalidStoreType
	}
}

// NewStoreFromConfig builds the store selected in the env file
func NewStoreFromConfig(c config.StoreConfig) (Store, error) {
	config.VerboseLog("Opening %s session store", c.Driver)

	opts := []StoreOption{WithDir(c.Dir), WithDSN(c.DSN), WithRedisTTL(c.RedisTTL)}
	if StoreType(c.Driver) == StoreTypeRedis {
		addr := c.RedisAddr
		if addr == "" {
			addr = "localhost:6379"
		}
		opts = append(opts, WithRedisClient(redis.NewClient(&redis.Options{Addr: addr, DB: c.RedisDB})))
	}
	return NewStore(StoreType(c.Driver), opts...)
}
