package service

import (
	"context"
	"testing"
	"time"

	"UserService/internal/auth"
	"UserService/internal/cache"
	dom "UserService/internal/domain"
	"UserService/internal/events"
	"UserService/internal/repo"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newUserFixture(t *testing.T) (*UserService, *repo.MemoryUserRepo, *recordingPublisher) {
	t.Helper()
	users := repo.NewMemoryUserRepo()
	pub := &recordingPublisher{}
	svc := NewUserService(users, auth.NewHasher(auth.AlgorithmBcrypt, bcrypt.MinCost), nil, Options{Events: pub})
	return svc, users, pub
}

func ptr(s string) *string { return &s }

func TestUserService_Get(t *testing.T) {
	svc, users, _ := newUserFixture(t)
	ctx := context.Background()
	u, err := users.Create(ctx, "alice", "digest")
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	got, err = svc.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, dom.ErrNotFound)
	_, err = svc.GetByUsername(ctx, "ALICE")
	assert.ErrorIs(t, err, dom.ErrNotFound)
}

func TestUserService_ListClampsPage(t *testing.T) {
	svc, users, _ := newUserFixture(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		_, err := users.Create(ctx, name, "digest")
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := svc.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, all[1].ID, page[0].ID)

	_, err = svc.List(ctx, 10, -1)
	assert.ErrorIs(t, err, dom.ErrValidation)
}

func TestEffectiveLimit(t *testing.T) {
	assert.Equal(t, 50, EffectiveLimit(0))
	assert.Equal(t, 50, EffectiveLimit(-3))
	assert.Equal(t, 7, EffectiveLimit(7))
	assert.Equal(t, 100, EffectiveLimit(100))
	assert.Equal(t, 100, EffectiveLimit(500))
}

func TestUserService_UpdateOwnAccount(t *testing.T) {
	svc, users, pub := newUserFixture(t)
	ctx := context.Background()
	u, err := users.Create(ctx, "alice", "digest")
	require.NoError(t, err)

	got, err := svc.Update(ctx, u.ID, u.ID, UpdateInput{Username: ptr(" alicia "), Password: ptr("new")})
	require.NoError(t, err)
	assert.Equal(t, "alicia", got.Username)

	stored, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("new")))

	_, err = svc.GetByUsername(ctx, "alice")
	assert.ErrorIs(t, err, dom.ErrNotFound)
	assert.Equal(t, []string{events.TypeUserUpdated}, pub.types())
}

func TestUserService_UpdateRules(t *testing.T) {
	svc, users, _ := newUserFixture(t)
	ctx := context.Background()
	alice, err := users.Create(ctx, "alice", "digest")
	require.NoError(t, err)
	bob, err := users.Create(ctx, "bob", "digest")
	require.NoError(t, err)

	_, err = svc.Update(ctx, bob.ID, alice.ID, UpdateInput{Username: ptr("x")})
	assert.ErrorIs(t, err, dom.ErrForbidden)

	_, err = svc.Update(ctx, alice.ID, alice.ID, UpdateInput{Username: ptr("bob")})
	assert.ErrorIs(t, err, dom.ErrDuplicateUsername)

	_, err = svc.Update(ctx, alice.ID, alice.ID, UpdateInput{})
	assert.ErrorIs(t, err, dom.ErrValidation)

	_, err = svc.Update(ctx, alice.ID, alice.ID, UpdateInput{Password: ptr("")})
	assert.ErrorIs(t, err, dom.ErrValidation)
}

func TestUserService_Delete(t *testing.T) {
	svc, users, pub := newUserFixture(t)
	ctx := context.Background()
	alice, err := users.Create(ctx, "alice", "digest")
	require.NoError(t, err)
	bob, err := users.Create(ctx, "bob", "digest")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, bob.ID, alice.ID), dom.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, alice.ID, alice.ID))
	assert.ErrorIs(t, svc.Delete(ctx, alice.ID, alice.ID), dom.ErrNotFound)

	_, err = svc.GetByID(ctx, alice.ID)
	assert.ErrorIs(t, err, dom.ErrNotFound)
	assert.Equal(t, []string{events.TypeUserDeleted}, pub.types())
}

func TestUserService_CacheFollowsWrites(t *testing.T) {
	m := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	users := repo.NewMemoryUserRepo()
	svc := NewUserService(users, auth.NewHasher(auth.AlgorithmBcrypt, bcrypt.MinCost),
		cache.NewUserCache(rdb, time.Minute), Options{Events: &recordingPublisher{}})
	ctx := context.Background()

	u, err := users.Create(ctx, "alice", "digest")
	require.NoError(t, err)

	_, err = svc.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, m.Exists("user:name:alice"))
	assert.True(t, m.Exists("user:id:"+u.ID.String()))

	_, err = svc.Update(ctx, u.ID, u.ID, UpdateInput{Username: ptr("alicia")})
	require.NoError(t, err)
	assert.False(t, m.Exists("user:name:alice"), "old name evicted on rename")

	_, err = svc.GetByUsername(ctx, "alice")
	assert.ErrorIs(t, err, dom.ErrNotFound)
	got, err := svc.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alicia", got.Username)

	require.NoError(t, svc.Delete(ctx, u.ID, u.ID))
	assert.False(t, m.Exists("user:id:"+u.ID.String()))
	_, err = svc.GetByID(ctx, u.ID)
	assert.ErrorIs(t, err, dom.ErrNotFound)
}

func TestUserService_CacheOutageFallsBackToRepo(t *testing.T) {
	m := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: m.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	users := repo.NewMemoryUserRepo()
	svc := NewUserService(users, auth.NewHasher(auth.AlgorithmBcrypt, bcrypt.MinCost),
		cache.NewUserCache(rdb, time.Minute), Options{Events: &recordingPublisher{}})
	ctx := context.Background()
	u, err := users.Create(ctx, "alice", "digest")
	require.NoError(t, err)

	m.Close()
	got, err := svc.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}
