package auth

import (
	"fmt"
	"time"

	"UserService/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// TokenCodec turns a session token into the cookie value and back.
type TokenCodec interface {
	Encode(token string) (string, error)
	// Decode returns domain.ErrInvalidSession for anything it cannot trust.
	Decode(value string) (string, error)
}

// NewTokenCodec returns a signing codec when secret is set, otherwise the
// token is used as the cookie value as is.
func NewTokenCodec(secret []byte) TokenCodec {
	if len(secret) == 0 {
		return plainCodec{}
	}
	return &TokenSigner{key: secret}
}

type plainCodec struct{}

func (plainCodec) Encode(token string) (string, error) { return token, nil }

func (plainCodec) Decode(value string) (string, error) {
	if value == "" {
		return "", domain.ErrInvalidSession
	}
	return value, nil
}

// TokenSigner wraps the opaque token in an HS256 JWT. The only payload is the
// token itself (jti), so nothing about the user can be read from the cookie.
type TokenSigner struct {
	key []byte
}

func (s *TokenSigner) Encode(token string) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:       token,
		IssuedAt: jwt.NewNumericDate(time.Now()),
	})
	signed, err := t.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

func (s *TokenSigner) Decode(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	t, err := jwt.ParseWithClaims(value, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !t.Valid || claims.ID == "" {
		return "", domain.ErrInvalidSession
	}
	return claims.ID, nil
}
