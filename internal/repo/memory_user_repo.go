package repo

import (
	"context"
	"slices"
	"sync"
	"time"

	dom "UserService/internal/domain"

	"github.com/google/uuid"
)

// MemoryUserRepo is a process-local UserRepo. The username index is checked
// and written under one lock, which gives the same guarantee as a unique index.
type MemoryUserRepo struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]dom.User
	byUsername map[string]uuid.UUID
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byID:       make(map[uuid.UUID]dom.User),
		byUsername: make(map[string]uuid.UUID),
	}
}

func (r *MemoryUserRepo) GetByUsername(_ context.Context, username string) (dom.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUsername[username]
	if !ok {
		return dom.User{}, dom.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryUserRepo) GetByID(_ context.Context, id uuid.UUID) (dom.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return dom.User{}, dom.ErrNotFound
	}
	return u, nil
}

func (r *MemoryUserRepo) Create(_ context.Context, username, passwordHash string) (dom.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byUsername[username]; taken {
		return dom.User{}, dom.ErrDuplicateUsername
	}
	now := time.Now().UTC()
	u := dom.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byID[u.ID] = u
	r.byUsername[username] = u.ID
	return u, nil
}

func (r *MemoryUserRepo) List(_ context.Context, limit, offset int) ([]dom.User, error) {
	r.mu.RLock()
	list := make([]dom.User, 0, len(r.byID))
	for _, u := range r.byID {
		list = append(list, u)
	}
	r.mu.RUnlock()

	slices.SortFunc(list, func(a, b dom.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	if offset >= len(list) {
		return []dom.User{}, nil
	}
	list = list[offset:]
	if limit >= 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

func (r *MemoryUserRepo) Update(_ context.Context, id uuid.UUID, patch dom.UserPatch) (dom.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return dom.User{}, dom.ErrNotFound
	}
	if patch.Username != nil && *patch.Username != u.Username {
		if _, taken := r.byUsername[*patch.Username]; taken {
			return dom.User{}, dom.ErrDuplicateUsername
		}
		delete(r.byUsername, u.Username)
		u.Username = *patch.Username
		r.byUsername[u.Username] = id
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	u.UpdatedAt = time.Now().UTC()
	r.byID[id] = u
	return u, nil
}

func (r *MemoryUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return dom.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byUsername, u.Username)
	return nil
}
