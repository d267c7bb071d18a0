package handlers

import (
	"net/http"

	"UserService/internal/auth"
	"UserService/internal/dto"
	"UserService/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserHandler serves the account endpoints under /api/users. Every route
// sits behind auth.RequireSession.
type UserHandler struct {
	svc      *service.UserService
	sessions *AuthHandler
}

func NewUserHandler(svc *service.UserService, sessions *AuthHandler) *UserHandler {
	return &UserHandler{svc: svc, sessions: sessions}
}

// List godoc
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     CookieAuth
// @Param        limit   query     int  false  "Page size (1-100, default 50)"
// @Param        offset  query     int  false  "Offset"
// @Success      200     {object}  dto.ListUsersResponse
// @Failure      400     {object}  dto.ErrorResponse
// @Failure      401     {object}  dto.ErrorResponse
// @Router       /api/users [get]
func (h *UserHandler) List(c *gin.Context) {
	var q dto.ListUsersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	list, err := h.svc.List(c.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]dto.UserDetailResponse, 0, len(list))
	for _, u := range list {
		out = append(out, dto.NewUserDetail(u))
	}
	c.JSON(http.StatusOK, dto.ListUsersResponse{Users: out, Limit: service.EffectiveLimit(q.Limit), Offset: q.Offset})
}

// GetByID godoc
// @Summary      Get a user by ID
// @Tags         users
// @Produce      json
// @Security     CookieAuth
// @Param        id   path      string  true  "User ID (UUID)"
// @Success      200  {object}  dto.UserDetailEnvelope
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/users/{id} [get]
func (h *UserHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	u, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.UserDetailEnvelope{User: dto.NewUserDetail(u)})
}

// GetByUsername godoc
// @Summary      Get a user by username
// @Tags         users
// @Produce      json
// @Security     CookieAuth
// @Param        username  path      string  true  "Username"
// @Success      200       {object}  dto.UserDetailEnvelope
// @Failure      404       {object}  dto.ErrorResponse
// @Router       /api/users/username/{username} [get]
func (h *UserHandler) GetByUsername(c *gin.Context) {
	u, err := h.svc.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.UserDetailEnvelope{User: dto.NewUserDetail(u)})
}

// Update godoc
// @Summary      Update your account
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        id    path      string                 true  "User ID (UUID)"
// @Param        body  body      dto.UpdateUserRequest  true  "Fields to change"
// @Success      200   {object}  dto.UserDetailEnvelope
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/users/{id} [patch]
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	who, _ := auth.IdentityFromContext(c)
	u, err := h.svc.Update(c.Request.Context(), who.UserID, id, service.UpdateInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.UserDetailEnvelope{User: dto.NewUserDetail(u)})
}

// Delete godoc
// @Summary      Delete your account
// @Description  Also ends the current session.
// @Tags         users
// @Produce      json
// @Security     CookieAuth
// @Param        id   path      string  true  "User ID (UUID)"
// @Success      200  {object}  dto.MessageResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	who, _ := auth.IdentityFromContext(c)
	if err := h.svc.Delete(c.Request.Context(), who.UserID, id); err != nil {
		writeError(c, err)
		return
	}
	if err := h.sessions.endSession(c, who); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "User deleted successfully"})
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}
