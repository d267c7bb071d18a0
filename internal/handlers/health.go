package handlers

import (
	"context"
	"net/http"
	"time"

	"UserService/internal/dto"

	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

// Pinger is a dependency whose reachability is reported by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependency names a Pinger. A nil Pinger is an in-process component that is
// always reported with its name.
type Dependency struct {
	Name   string
	Pinger Pinger
}

type HealthHandler struct {
	database Dependency
	sessions Dependency
}

func NewHealthHandler(database, sessions Dependency) *HealthHandler {
	return &HealthHandler{database: database, sessions: sessions}
}

func (d Dependency) status(ctx context.Context) (string, bool) {
	if d.Pinger == nil {
		return d.Name, true
	}
	if err := d.Pinger.Ping(ctx); err != nil {
		return "unavailable", false
	}
	return "connected", true
}

// Health godoc
// @Summary      Liveness and dependency status
// @Tags         health
// @Produce      json
// @Success      200  {object}  dto.HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	db, dbOK := h.database.status(ctx)
	sess, sessOK := h.sessions.status(ctx)
	status := "ok"
	if !dbOK || !sessOK {
		status = "degraded"
	}
	c.JSON(http.StatusOK, dto.HealthResponse{Status: status, Database: db, Sessions: sess})
}
