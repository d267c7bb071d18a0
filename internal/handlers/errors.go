package handlers

import (
	"errors"
	"net/http"

	dom "UserService/internal/domain"
	"UserService/internal/logging"

	"github.com/gin-gonic/gin"
)

// writeError maps service errors to status codes. 5xx bodies never carry detail.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, dom.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, dom.ErrDuplicateUsername):
		c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
	case errors.Is(err, dom.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
	case errors.Is(err, dom.ErrInvalidSession):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	case errors.Is(err, dom.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, dom.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	default:
		if !errors.Is(err, dom.ErrStorage) {
			logging.FromContext(c).ErrorContext(c.Request.Context(), "unhandled error",
				"path", c.FullPath(),
				"error", err,
			)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// bindError answers a request whose body or query could not be bound.
func bindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
}
