package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"UserService/internal/auth"
	"UserService/internal/cache"
	dom "UserService/internal/domain"
	"UserService/internal/events"
	"UserService/internal/repo"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// UserService manages accounts after registration: lookups, profile
// changes and deletion.
type UserService struct {
	repo   repo.UserRepo
	hasher auth.PasswordHasher
	cache  *cache.UserCache
	sf     singleflight.Group

	events events.Publisher
	log    *slog.Logger
	opts   Options
}

// NewUserService returns a new UserService. If c is nil, caching is disabled.
func NewUserService(r repo.UserRepo, hasher auth.PasswordHasher, c *cache.UserCache, opts Options) *UserService {
	opts = opts.withDefaults()
	return &UserService{
		repo:   r,
		hasher: hasher,
		cache:  c,
		events: opts.Events,
		log:    opts.Logger.With("module", "users"),
		opts:   opts,
	}
}

// UpdateInput holds the fields a caller may change. Nil means unchanged.
type UpdateInput struct {
	Username *string
	Password *string
}

func (s *UserService) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.StorageTimeout)
}

// EffectiveLimit is the page size List applies for a requested limit:
// 50 when unset, at most 100.
func EffectiveLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

// List returns a page of users ordered by creation time. limit goes through
// EffectiveLimit.
func (s *UserService) List(ctx context.Context, limit, offset int) ([]dom.User, error) {
	limit = EffectiveLimit(limit)
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", dom.ErrValidation)
	}
	ctx2, cancel := s.storageCtx(ctx)
	defer cancel()
	users, err := s.repo.List(ctx2, limit, offset)
	if err != nil {
		return nil, internalError(ctx, s.log, "users.list", err)
	}
	return users, nil
}

// GetByID returns one user (cache-aside, singleflight on miss).
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (dom.User, error) {
	if s.cache != nil {
		if u, ok, err := s.cache.GetByID(ctx, id); err == nil && ok {
			return u, nil
		}
	}
	return s.load(ctx, "id:"+id.String(), func(ctx context.Context) (dom.User, error) {
		return s.repo.GetByID(ctx, id)
	})
}

// GetByUsername returns one user by exact username.
func (s *UserService) GetByUsername(ctx context.Context, username string) (dom.User, error) {
	if username == "" {
		return dom.User{}, fmt.Errorf("%w: username is required", dom.ErrValidation)
	}
	if s.cache != nil {
		if u, ok, err := s.cache.GetByUsername(ctx, username); err == nil && ok {
			return u, nil
		}
	}
	return s.load(ctx, "name:"+username, func(ctx context.Context) (dom.User, error) {
		return s.repo.GetByUsername(ctx, username)
	})
}

func (s *UserService) load(ctx context.Context, key string, fetch func(context.Context) (dom.User, error)) (dom.User, error) {
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		ctx2, cancel := s.storageCtx(ctx)
		defer cancel()
		u, err := fetch(ctx2)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx2, u); err != nil {
				s.log.WarnContext(ctx, "cache set failed", "user_id", u.ID, "error", err)
			}
		}
		return u, nil
	})
	if err != nil {
		if errors.Is(err, dom.ErrNotFound) {
			return dom.User{}, dom.ErrNotFound
		}
		return dom.User{}, internalError(ctx, s.log, "users.get", err)
	}
	return v.(dom.User), nil
}

// Update changes the caller's own account. Changing someone else's account
// returns dom.ErrForbidden.
func (s *UserService) Update(ctx context.Context, actor, id uuid.UUID, in UpdateInput) (dom.User, error) {
	if actor != id {
		return dom.User{}, dom.ErrForbidden
	}
	var patch dom.UserPatch
	if in.Username != nil {
		name, err := normalizeUsername(*in.Username)
		if err != nil {
			return dom.User{}, err
		}
		patch.Username = &name
	}
	if in.Password != nil {
		digest, err := s.hasher.Hash(*in.Password)
		if err != nil {
			if errors.Is(err, dom.ErrValidation) {
				return dom.User{}, err
			}
			return dom.User{}, internalError(ctx, s.log, "users.update.hash", err)
		}
		patch.PasswordHash = &digest
	}
	if patch.Username == nil && patch.PasswordHash == nil {
		return dom.User{}, fmt.Errorf("%w: nothing to update", dom.ErrValidation)
	}

	ctx2, cancel := s.storageCtx(ctx)
	defer cancel()
	before, err := s.repo.GetByID(ctx2, id)
	if err != nil {
		if errors.Is(err, dom.ErrNotFound) {
			return dom.User{}, dom.ErrNotFound
		}
		return dom.User{}, internalError(ctx, s.log, "users.update.lookup", err)
	}
	u, err := s.repo.Update(ctx2, id, patch)
	switch {
	case errors.Is(err, dom.ErrDuplicateUsername):
		return dom.User{}, dom.ErrDuplicateUsername
	case errors.Is(err, dom.ErrNotFound):
		return dom.User{}, dom.ErrNotFound
	case err != nil:
		return dom.User{}, internalError(ctx, s.log, "users.update", err)
	}
	s.invalidate(ctx2, before)
	s.invalidate(ctx2, u)

	s.log.InfoContext(ctx, "user updated", "user_id", u.ID, "outcome", "success")
	publish(ctx, s.log, s.events, events.New(events.TypeUserUpdated, u.ID, u.Username))
	return u, nil
}

// Delete removes the caller's own account.
func (s *UserService) Delete(ctx context.Context, actor, id uuid.UUID) error {
	if actor != id {
		return dom.ErrForbidden
	}
	ctx2, cancel := s.storageCtx(ctx)
	defer cancel()
	u, err := s.repo.GetByID(ctx2, id)
	if err != nil {
		if errors.Is(err, dom.ErrNotFound) {
			return dom.ErrNotFound
		}
		return internalError(ctx, s.log, "users.delete.lookup", err)
	}
	if err := s.repo.Delete(ctx2, id); err != nil {
		if errors.Is(err, dom.ErrNotFound) {
			return dom.ErrNotFound
		}
		return internalError(ctx, s.log, "users.delete", err)
	}
	s.invalidate(ctx2, u)

	s.log.InfoContext(ctx, "user deleted", "user_id", u.ID, "outcome", "success")
	publish(ctx, s.log, s.events, events.New(events.TypeUserDeleted, u.ID, u.Username))
	return nil
}

func (s *UserService) invalidate(ctx context.Context, u dom.User) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, u); err != nil {
		s.log.WarnContext(ctx, "cache invalidate failed", "user_id", u.ID, "error", err)
	}
}
