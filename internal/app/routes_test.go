package app

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"UserService/internal/auth"
	"UserService/internal/config"
	"UserService/internal/events"
	"UserService/internal/handlers"
	"UserService/internal/logging"
	"UserService/internal/metrics"
	"UserService/internal/repo"
	"UserService/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t *testing.T
	r *gin.Engine
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("APP_ENV", "dev")
	t.Setenv("AUTH_BCRYPT_COST", "4")
	t.Setenv("HTTP_MAX_BODY_BYTES", "1024")
	cfg, err := config.Load()
	require.NoError(t, err)

	log := logging.New(io.Discard, "error", "text")
	sessions := session.NewMemoryStore(session.Options{TTL: time.Hour}, 0)
	t.Cleanup(func() { _ = sessions.Close() })

	r, err := NewRouter(cfg, Deps{
		Log:      log,
		Users:    repo.NewMemoryUserRepo(),
		Sessions: sessions,
		Events:   events.NewLogPublisher(log),
		Metrics:  metrics.New(),
		Database: handlers.Dependency{Name: "in-memory"},
		Session:  handlers.Dependency{Name: session.BackendMemory},
	})
	require.NoError(t, err)
	return testServer{t: t, r: r}
}

func (s testServer) do(method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	s.t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.r.ServeHTTP(rec, req)
	return rec
}

func (s testServer) login(username, password string) *http.Cookie {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/auth/login", `{"username":"`+username+`","password":"`+password+`"}`, nil)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookie(s.t, rec)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", auth.SessionCookieName)
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestRouter_AliceFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/auth/register", `{"username":"alice","password":"pw1"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode(t, rec)["message"])
	assert.Empty(t, rec.Result().Cookies(), "register does not log in")

	rec = s.do(http.MethodPost, "/auth/register", `{"username":"alice","password":"pw2"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/auth/login", `{"username":"alice","password":"pw1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	user := decode(t, rec)["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.NotEmpty(t, user["id"])
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do(http.MethodGet, "/auth/verify-session", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Session valid", body["message"])
	assert.Equal(t, user, body["user"])

	rec = s.do(http.MethodGet, "/auth/current-user", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user, decode(t, rec)["user"])

	rec = s.do(http.MethodPost, "/auth/logout", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Less(t, sessionCookie(t, rec).MaxAge, 0)

	rec = s.do(http.MethodGet, "/auth/current-user", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"authentication required"}`, rec.Body.String())
}

func TestRouter_LoginFailuresLookTheSame(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/auth/register", `{"username":"alice","password":"pw1"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	wrong := s.do(http.MethodPost, "/auth/login", `{"username":"alice","password":"nope"}`, nil)
	unknown := s.do(http.MethodPost, "/auth/login", `{"username":"nobody","password":"pw1"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.Empty(t, wrong.Result().Cookies())

	rec = s.do(http.MethodPost, "/auth/login", `{"username":"alice"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_GuardRejects(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/auth/verify-session", "/auth/current-user", "/api/users"} {
		rec := s.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		rec = s.do(http.MethodGet, path, "", &http.Cookie{Name: auth.SessionCookieName, Value: "forged"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := s.do(http.MethodPost, "/auth/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_RegisterValidation(t *testing.T) {
	s := newTestServer(t)
	cases := map[string]string{
		"missing password": `{"username":"bob"}`,
		"empty username":   `{"username":"","password":"pw"}`,
		"blank username":   `{"username":"   ","password":"pw"}`,
		"long username":    `{"username":"` + strings.Repeat("x", 101) + `","password":"pw"}`,
		"not json":         `username=bob`,
	}
	for name, body := range cases {
		rec := s.do(http.MethodPost, "/auth/register", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}

	big := `{"username":"bob","password":"` + strings.Repeat("p", 2048) + `"}`
	rec := s.do(http.MethodPost, "/auth/register", big, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRouter_UserEndpoints(t *testing.T) {
	s := newTestServer(t)
	for _, name := range []string{"alice", "bob"} {
		rec := s.do(http.MethodPost, "/auth/register", `{"username":"`+name+`","password":"pw"}`, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	cookie := s.login("alice", "pw")

	rec := s.do(http.MethodGet, "/api/users?limit=10", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode(t, rec)["users"].([]any)
	require.Len(t, users, 2)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.EqualValues(t, 10, decode(t, rec)["limit"])

	rec = s.do(http.MethodGet, "/api/users", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode(t, rec)
	assert.EqualValues(t, 50, page["limit"])
	assert.EqualValues(t, 0, page["offset"])
	assert.Len(t, page["users"], 2)

	rec = s.do(http.MethodGet, "/api/users/username/bob", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	bobID := decode(t, rec)["user"].(map[string]any)["id"].(string)

	rec = s.do(http.MethodGet, "/api/users/"+bobID, "", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/api/users/not-a-uuid", "", cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(http.MethodGet, "/api/users/username/carol", "", cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPatch, "/api/users/"+bobID, `{"username":"robert"}`, cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(http.MethodDelete, "/api/users/"+bobID, "", cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/auth/current-user", "", cookie)
	aliceID := decode(t, rec)["user"].(map[string]any)["id"].(string)

	rec = s.do(http.MethodPatch, "/api/users/"+aliceID, `{"username":"bob"}`, cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = s.do(http.MethodPatch, "/api/users/"+aliceID, `{"password":"pw2"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	s.login("alice", "pw2")

	rec = s.do(http.MethodDelete, "/api/users/"+aliceID, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/auth/current-user", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/auth/login", `{"username":"alice","password":"pw2"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_AmbientRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"in-memory","sessions":"memory"}`, rec.Body.String())

	rec = s.do(http.MethodPost, "/auth/login", `{"username":"x","password":"y"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(logging.RequestIDHeader))

	rec = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `auth_logins_total{outcome="rejected"} 1`)

	rec = s.do(http.MethodGet, "/version", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/swagger-doc.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, json.Valid(bytes.TrimSpace(rec.Body.Bytes())))
}
