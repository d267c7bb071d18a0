package dto

import (
	"time"

	dom "UserService/internal/domain"

	"github.com/google/uuid"
)

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,max=100"`
	Password string `json:"password" binding:"required"`
}

// UpdateUserRequest is the JSON body for PATCH /api/users/:id. Omitted fields are unchanged.
type UpdateUserRequest struct {
	Username *string `json:"username" binding:"omitempty,max=100"`
	Password *string `json:"password"`
}

// ListUsersQuery binds GET /api/users?limit=&offset=.
type ListUsersQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// UserResponse is the public shape of a user. It never carries the password digest.
type UserResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// UserDetailResponse adds timestamps for the account endpoints.
type UserDetailResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type UserEnvelope struct {
	User UserResponse `json:"user"`
}

type SessionResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

type UserDetailEnvelope struct {
	User UserDetailResponse `json:"user"`
}

type ListUsersResponse struct {
	Users  []UserDetailResponse `json:"users"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Sessions string `json:"sessions"`
}

func NewUserResponse(u dom.PublicUser) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username}
}

func NewUserDetail(u dom.User) UserDetailResponse {
	return UserDetailResponse{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}
}
