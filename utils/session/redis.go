package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key prefix for sessions
const sessionKeyPrefix = "summaprompt:session:"

// RedisStore keeps encoded sessions under one key each. SET replaces the
// whole value atomically.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a new Redis-based session store. A zero ttl keeps
// sessions until they are deleted.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context) (string, error) {
	return NewID(), nil
}

// Load implements Store.
// Refreshes TTL on every read when one is configured.
func (s *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	key := s.key(id)
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("load", id, err)
	}

	sess, err := Decode(val)
	if err != nil {
		return nil, storageErr("load", id, err)
	}

	if s.ttl > 0 {
		// A failed refresh only shortens the session's life.
		_ = s.client.Expire(ctx, key, s.ttl).Err()
	}
	return sess, nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	if err := ValidateID(sess.ID); err != nil {
		return storageErr("save", sess.ID, err)
	}
	data, err := Encode(sess)
	if err != nil {
		return storageErr("save", sess.ID, err)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), data, s.ttl).Err(); err != nil {
		return storageErr("save", sess.ID, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return storageErr("delete", id, err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// key constructs the Redis key for a session ID.
func (s *RedisStore) key(id string) string {
	return sessionKeyPrefix + id
}
