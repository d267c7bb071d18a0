package session

import (
	"context"
	"testing"
	"time"

	"UserService/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisStore(t *testing.T, opts Options) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	m := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: m.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, "", opts), m
}

func TestRedisStore_KeyTTL(t *testing.T) {
	ctx := context.Background()
	s, m := newMiniredisStore(t, Options{TTL: time.Hour})

	token, err := s.Create(ctx, uuid.New(), "alice")
	require.NoError(t, err)

	key := defaultKeyPrefix + HashToken(token)
	require.True(t, m.Exists(key))
	assert.Equal(t, time.Hour, m.TTL(key))
	assert.NotContains(t, m.Keys()[0], token)

	// absolute expiry: validation does not extend the key
	m.FastForward(30 * time.Minute)
	_, err = s.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, m.TTL(key))

	m.FastForward(31 * time.Minute)
	assert.False(t, m.Exists(key))
	_, err = s.Validate(ctx, token)
	assert.Equal(t, domain.ErrInvalidSession, err)
}

func TestRedisStore_SlidingRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	s, m := newMiniredisStore(t, Options{TTL: time.Hour, Sliding: true})

	token, err := s.Create(ctx, uuid.New(), "bob")
	require.NoError(t, err)
	key := defaultKeyPrefix + HashToken(token)

	m.FastForward(45 * time.Minute)
	_, err = s.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, m.TTL(key))

	require.NoError(t, s.Destroy(ctx, token))
	_, err = s.Validate(ctx, token)
	assert.Equal(t, domain.ErrInvalidSession, err)
	assert.False(t, m.Exists(key), "a destroyed session is not brought back")
}

func TestRedisStore_NoTTLKeepsKey(t *testing.T) {
	ctx := context.Background()
	s, m := newMiniredisStore(t, Options{})

	token, err := s.Create(ctx, uuid.New(), "carol")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), m.TTL(defaultKeyPrefix+HashToken(token)))
}

func TestRedisStore_CorruptValuesAreInvalid(t *testing.T) {
	ctx := context.Background()
	s, m := newMiniredisStore(t, Options{TTL: time.Hour})

	values := map[string]string{
		"garbage":       "not json",
		"logged out":    `{"user_id":"` + uuid.NewString() + `","username":"dave","logged_in":false}`,
		"no user id":    `{"user_id":"00000000-0000-0000-0000-000000000000","username":"dave","logged_in":true}`,
		"no username":   `{"user_id":"` + uuid.NewString() + `","username":"","logged_in":true}`,
		"wrong user id": `{"user_id":42,"username":"dave","logged_in":true}`,
	}
	for label, value := range values {
		token, err := NewToken()
		require.NoError(t, err)
		require.NoError(t, m.Set(defaultKeyPrefix+HashToken(token), value))

		_, err = s.Validate(ctx, token)
		assert.Equal(t, domain.ErrInvalidSession, err, label)
	}
}

func TestRedisStore_ServerDownIsStorageError(t *testing.T) {
	ctx := context.Background()
	s, m := newMiniredisStore(t, Options{TTL: time.Hour})

	token, err := s.Create(ctx, uuid.New(), "erin")
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))

	m.Close()

	_, err = s.Validate(ctx, token)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.NotErrorIs(t, err, domain.ErrInvalidSession)

	_, err = s.Create(ctx, uuid.New(), "erin")
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorIs(t, s.Destroy(ctx, token), domain.ErrStorage)
	assert.Error(t, s.Ping(ctx))
}
