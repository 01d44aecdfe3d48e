// Package lock implements the run lock on Redis so that several fieldops
// instances never run the same date concurrently.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	corelock "github.com/kilianp07/fieldops/core/lock"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Config holds the Redis connection settings.
type Config struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// RedisLocker acquires locks with SET NX and a random token.
type RedisLocker struct {
	rdb goredis.UniversalClient
}

// NewRedisLocker connects to Redis and checks it answers.
func NewRedisLocker(ctx context.Context, cfg Config) (*RedisLocker, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisLocker{rdb: rdb}, nil
}

// NewRedisLockerWithClient wraps an existing client.
func NewRedisLockerWithClient(rdb goredis.UniversalClient) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

// Acquire sets key when absent. It returns corelock.ErrLockHeld otherwise.
func (r *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (corelock.Lock, error) {
	token := uuid.NewString()
	ok, err := r.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", corelock.ErrLockHeld, key)
	}
	return &redisLock{rdb: r.rdb, key: key, token: token}, nil
}

// Close closes the client.
func (r *RedisLocker) Close() error { return r.rdb.Close() }

type redisLock struct {
	rdb   goredis.UniversalClient
	key   string
	token string
}

// Release removes the key unless it expired and was taken by someone else.
func (l *redisLock) Release(ctx context.Context) error {
	err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}

var _ corelock.Locker = (*RedisLocker)(nil)
