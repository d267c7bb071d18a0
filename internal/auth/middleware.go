package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"UserService/internal/domain"
	"UserService/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "session_id"

const contextKeyIdentity = "auth.identity"

// Identity is the authenticated caller attached to the request by RequireSession.
type Identity struct {
	UserID    uuid.UUID
	Username  string
	LoginTime time.Time
}

// Authenticator resolves a session cookie value to a session.
type Authenticator interface {
	Authenticate(ctx context.Context, cookie string) (domain.Session, error)
}

// IdentityFromContext returns the identity set by RequireSession.
func IdentityFromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(contextKeyIdentity)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// RequireSession returns a middleware that checks for a valid session cookie
// and sets the caller's Identity in context. If missing or invalid, responds with 401.
func RequireSession(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(SessionCookieName)
		if err != nil || cookie == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		sess, err := authn.Authenticate(c.Request.Context(), cookie)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidSession) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
				return
			}
			logging.FromContext(c).ErrorContext(c.Request.Context(), "session lookup failed",
				"module", "auth",
				"path", c.Request.URL.Path,
				"error", err,
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.Set(contextKeyIdentity, Identity{
			UserID:    sess.UserID,
			Username:  sess.Username,
			LoginTime: sess.LoginTime,
		})
		c.Next()
	}
}
