package handlers

import (
	"net/http"
	"time"

	"UserService/internal/auth"
	dom "UserService/internal/domain"
	"UserService/internal/dto"
	"UserService/internal/service"

	"github.com/gin-gonic/gin"
)

// CookieConfig controls the attributes of the session cookie.
type CookieConfig struct {
	Secure bool
	Domain string
	// TTL is the session lifetime. Zero issues a browser-session cookie.
	TTL time.Duration
}

// AuthHandler handles register, login, logout and session introspection.
type AuthHandler struct {
	svc    *service.AuthService
	cookie CookieConfig
}

// NewAuthHandler returns a new AuthHandler.
func NewAuthHandler(svc *service.AuthService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{svc: svc, cookie: cookie}
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, value string) {
	maxAge := 0
	if h.cookie.TTL > 0 {
		maxAge = int(h.cookie.TTL / time.Second)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.SessionCookieName, value, maxAge, "/", h.cookie.Domain, h.cookie.Secure, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.SessionCookieName, "", -1, "/", h.cookie.Domain, h.cookie.Secure, true)
}

// endSession destroys the caller's session and clears the cookie.
func (h *AuthHandler) endSession(c *gin.Context, who auth.Identity) error {
	cookie, _ := c.Cookie(auth.SessionCookieName)
	err := h.svc.Logout(c.Request.Context(), cookie, dom.PublicUser{ID: who.UserID, Username: who.Username})
	h.clearSessionCookie(c)
	return err
}

// Register godoc
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      dto.RegisterRequest  true  "Credentials"
// @Success      201   {object}  dto.MessageResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if _, err := h.svc.Register(c.Request.Context(), req.Username, req.Password); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.MessageResponse{Message: "Registration successful"})
}

// Login godoc
// @Summary      Log in
// @Description  Opens a new session and sets the session_id cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      dto.LoginRequest  true  "Credentials"
// @Success      200   {object}  dto.UserEnvelope
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	h.setSessionCookie(c, res.Cookie)
	c.JSON(http.StatusOK, dto.UserEnvelope{User: dto.NewUserResponse(res.User)})
}

// Logout godoc
// @Summary      Log out
// @Tags         auth
// @Produce      json
// @Security     CookieAuth
// @Success      200  {object}  dto.MessageResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	who, _ := auth.IdentityFromContext(c)
	if err := h.endSession(c, who); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Logged out successfully"})
}

// VerifySession godoc
// @Summary      Check the session cookie
// @Tags         auth
// @Produce      json
// @Security     CookieAuth
// @Success      200  {object}  dto.SessionResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Router       /auth/verify-session [get]
func (h *AuthHandler) VerifySession(c *gin.Context) {
	who, _ := auth.IdentityFromContext(c)
	c.JSON(http.StatusOK, dto.SessionResponse{
		Message: "Session valid",
		User:    dto.UserResponse{ID: who.UserID, Username: who.Username},
	})
}

// CurrentUser godoc
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     CookieAuth
// @Success      200  {object}  dto.UserEnvelope
// @Failure      401  {object}  dto.ErrorResponse
// @Router       /auth/current-user [get]
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	who, _ := auth.IdentityFromContext(c)
	c.JSON(http.StatusOK, dto.UserEnvelope{User: dto.UserResponse{ID: who.UserID, Username: who.Username}})
}
