package domain

import "errors"

var (
	// ErrValidation is returned for missing or malformed input. Nothing was changed.
	ErrValidation = errors.New("invalid input")
	// ErrDuplicateUsername is returned when the username is already claimed.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidSession is the single result for absent, expired, malformed
	// or tampered session tokens.
	ErrInvalidSession = errors.New("invalid or expired session")
	// ErrStorage wraps backend failures. Its detail is for logs only.
	ErrStorage   = errors.New("storage failure")
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)
