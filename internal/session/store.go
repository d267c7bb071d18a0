// Package session keeps server-side session state behind opaque tokens.
//
// Tokens are never stored: every backend keys its records by the SHA-256 of
// the token, so reading the store does not yield usable cookies.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"UserService/internal/domain"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

const tokenBytes = 32

// Store is a session store. Implementations are safe for concurrent use.
type Store interface {
	// Create stores a logged-in session and returns its token.
	Create(ctx context.Context, userID uuid.UUID, username string) (string, error)
	// Validate returns the session for token, domain.ErrInvalidSession when the
	// token does not resolve to a usable session, or a domain.ErrStorage error.
	Validate(ctx context.Context, token string) (domain.Session, error)
	// Destroy removes the session. Unknown tokens are not an error.
	Destroy(ctx context.Context, token string) error
	Close() error
}

// Options controls expiry. A zero TTL means sessions never expire on their own.
type Options struct {
	TTL     time.Duration
	Sliding bool
}

func (o Options) expiry(now time.Time) time.Time {
	if o.TTL <= 0 {
		return time.Time{}
	}
	return now.Add(o.TTL)
}

// NewToken returns 32 random bytes, base64url encoded.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("requested_bytes", tokenBytes).
			Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken is the storage key for a token.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// wellFormed rejects values that could never have come from NewToken.
func wellFormed(token string) bool {
	if len(token) != base64.RawURLEncoding.EncodedLen(tokenBytes) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(token)
	return err == nil
}

func newSession(userID uuid.UUID, username string, now time.Time, opts Options) domain.Session {
	return domain.Session{
		UserID:    userID,
		Username:  username,
		LoggedIn:  true,
		LoginTime: now.UTC(),
		ExpiresAt: opts.expiry(now).UTC(),
	}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: session %s: %w", domain.ErrStorage, op, err)
}
