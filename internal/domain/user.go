package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the domain entity for a user account.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string `json:"-"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public returns the fields that may leave the service.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username}
}

// PublicUser is the client-facing view of a User. It never carries the digest.
type PublicUser struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// UserPatch holds optional changes for a user. Nil fields are left untouched.
type UserPatch struct {
	Username     *string
	PasswordHash *string
}
