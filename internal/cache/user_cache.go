package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	dom "UserService/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyUserByID   = "user:id:"
	keyUserByName = "user:name:"
)

// UserCache caches user profiles in Redis. Password digests are never
// written: dom.User drops them when encoded.
type UserCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewUserCache returns a new UserCache.
func NewUserCache(rdb *redis.Client, ttl time.Duration) *UserCache {
	return &UserCache{rdb: rdb, ttl: ttl}
}

// GetByID returns the cached user, or ok=false on a miss.
func (c *UserCache) GetByID(ctx context.Context, id uuid.UUID) (dom.User, bool, error) {
	return c.get(ctx, keyUserByID+id.String())
}

// GetByUsername returns the cached user, or ok=false on a miss.
func (c *UserCache) GetByUsername(ctx context.Context, username string) (dom.User, bool, error) {
	return c.get(ctx, keyUserByName+username)
}

// Set stores u under both its id and its username.
func (c *UserCache) Set(ctx context.Context, u dom.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	_, err = c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, keyUserByID+u.ID.String(), b, c.ttl)
		p.Set(ctx, keyUserByName+u.Username, b, c.ttl)
		return nil
	})
	return err
}

// Invalidate removes u from the cache (cache invalidation on write).
func (c *UserCache) Invalidate(ctx context.Context, u dom.User) error {
	return c.rdb.Del(ctx, keyUserByID+u.ID.String(), keyUserByName+u.Username).Err()
}

func (c *UserCache) get(ctx context.Context, key string) (dom.User, bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return dom.User{}, false, nil
	}
	if err != nil {
		return dom.User{}, false, err
	}
	var u dom.User
	if err := json.Unmarshal(b, &u); err != nil {
		return dom.User{}, false, err
	}
	return u, true, nil
}
