package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"UserService/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "session:"

// RedisStore manages sessions in Redis. It is the backend to use whenever
// more than one instance serves traffic.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	opts   Options
	now    func() time.Time
}

// NewRedisStore returns a new session store. The client is not closed by Close.
func NewRedisStore(rdb *redis.Client, prefix string, opts Options) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix, opts: opts, now: time.Now}
}

func (s *RedisStore) key(token string) string {
	return s.prefix + HashToken(token)
}

// Create stores a new session and returns its token.
func (s *RedisStore) Create(ctx context.Context, userID uuid.UUID, username string) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	sess := newSession(userID, username, s.now(), s.opts)
	b, err := json.Marshal(sess)
	if err != nil {
		return "", storageErr("encode", err)
	}
	// SetNX guards against the astronomically unlikely token collision.
	ok, err := s.rdb.SetNX(ctx, s.key(token), b, s.ttl()).Result()
	if err != nil {
		return "", storageErr("create", err)
	}
	if !ok {
		return "", storageErr("create", errors.New("token collision"))
	}
	return token, nil
}

// Validate loads the session for token.
func (s *RedisStore) Validate(ctx context.Context, token string) (domain.Session, error) {
	if !wellFormed(token) {
		return domain.Session{}, domain.ErrInvalidSession
	}
	key := s.key(token)
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, domain.ErrInvalidSession
	}
	if err != nil {
		return domain.Session{}, storageErr("validate", err)
	}
	var sess domain.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return domain.Session{}, domain.ErrInvalidSession
	}
	now := s.now()
	if !sess.Usable(now) {
		return domain.Session{}, domain.ErrInvalidSession
	}
	if s.opts.Sliding && !sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = s.opts.expiry(now).UTC()
		b, err := json.Marshal(sess)
		if err != nil {
			return domain.Session{}, storageErr("encode", err)
		}
		// XX: never resurrect a session destroyed since the GET.
		if err := s.rdb.SetXX(ctx, key, b, s.ttl()).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return domain.Session{}, storageErr("touch", err)
		}
	}
	return sess, nil
}

// Destroy removes a session by token.
func (s *RedisStore) Destroy(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, s.key(token)).Err(); err != nil {
		return storageErr("destroy", err)
	}
	return nil
}

// Ping checks connectivity to Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error { return nil }

// ttl of 0 tells Redis to keep the key without expiry.
func (s *RedisStore) ttl() time.Duration {
	if s.opts.TTL <= 0 {
		return 0
	}
	return s.opts.TTL
}
