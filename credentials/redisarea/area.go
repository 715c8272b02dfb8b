// Package redisarea keeps a credential area in a Redis hash, so several
// processes on one machine (or one user's devices) can share a persistent session.
package redisarea

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrsteele09/lms-session/credentials"
	"github.com/redis/go-redis/v9"
)

// DefaultNamespace is the hash key used when none is configured.
const DefaultNamespace = "lms:credentials"

var _ credentials.Area = (*Area)(nil)

// Area is a credentials.Area stored as the fields of a single Redis hash.
// HSET with several fields is atomic, which gives Set its all-or-nothing behaviour.
type Area struct {
	rc  redis.Cmdable
	key string
}

// New creates an area over the hash stored at key.
func New(rc redis.Cmdable, key string) *Area {
	if key == "" {
		key = DefaultNamespace
	}
	return &Area{rc: rc, key: key}
}

// Dial connects to the Redis server at addr and verifies the connection.
func Dial(ctx context.Context, addr, key string) (*Area, *redis.Client, error) {
	rc := redis.NewClient(&redis.Options{Addr: addr})
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, nil, fmt.Errorf("redisarea.Dial %s: %w", addr, err)
	}
	return New(rc, key), rc, nil
}

func (a *Area) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := a.rc.HGet(ctx, a.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redisarea.Get %s: %w", key, err)
	}
	return value, true, nil
}

func (a *Area) Set(ctx context.Context, items map[string]string) error {
	if len(items) == 0 {
		return nil
	}
	values := make(map[string]any, len(items))
	for k, v := range items {
		if k == "" {
			return credentials.ErrEmptyItemName
		}
		values[k] = v
	}
	if err := a.rc.HSet(ctx, a.key, values).Err(); err != nil {
		return fmt.Errorf("redisarea.Set: %w", err)
	}
	return nil
}

func (a *Area) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := a.rc.HDel(ctx, a.key, keys...).Err(); err != nil {
		return fmt.Errorf("redisarea.Delete: %w", err)
	}
	return nil
}
