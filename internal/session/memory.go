package session

import (
	"context"
	"sync"
	"time"

	"UserService/internal/domain"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions in process. Only suitable for a single instance.
type MemoryStore struct {
	opts Options
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]domain.Session

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryStore starts a store whose janitor purges expired sessions every
// sweep. A non-positive sweep disables the janitor.
func NewMemoryStore(opts Options, sweep time.Duration) *MemoryStore {
	s := &MemoryStore{
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]domain.Session),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if sweep > 0 {
		go s.janitor(sweep)
	} else {
		close(s.done)
	}
	return s
}

func (s *MemoryStore) Create(_ context.Context, userID uuid.UUID, username string) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	sess := newSession(userID, username, s.now(), s.opts)

	s.mu.Lock()
	s.sessions[HashToken(token)] = sess
	s.mu.Unlock()
	return token, nil
}

func (s *MemoryStore) Validate(_ context.Context, token string) (domain.Session, error) {
	if !wellFormed(token) {
		return domain.Session{}, domain.ErrInvalidSession
	}
	key := HashToken(token)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return domain.Session{}, domain.ErrInvalidSession
	}
	if !sess.Usable(now) {
		delete(s.sessions, key)
		return domain.Session{}, domain.ErrInvalidSession
	}
	if s.opts.Sliding && !sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = s.opts.expiry(now).UTC()
		s.sessions[key] = sess
	}
	return sess, nil
}

func (s *MemoryStore) Destroy(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, HashToken(token))
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// PurgeExpired removes expired sessions and returns how many were removed.
func (s *MemoryStore) PurgeExpired() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, sess := range s.sessions {
		if !sess.Usable(now) {
			delete(s.sessions, k)
			n++
		}
	}
	return n
}

// Close stops the janitor. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

func (s *MemoryStore) janitor(every time.Duration) {
	defer close(s.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.PurgeExpired()
		}
	}
}
