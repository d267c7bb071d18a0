package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session is the server-side state behind a session token.
// Zero ExpiresAt means the session has no fixed expiry.
type Session struct {
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	LoggedIn  bool      `json:"logged_in"`
	LoginTime time.Time `json:"login_time"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Usable reports whether the session can authenticate a request at now.
func (s Session) Usable(now time.Time) bool {
	if !s.LoggedIn || s.UserID == uuid.Nil || s.Username == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}
