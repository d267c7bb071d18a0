package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"UserService/internal/config"
	"UserService/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestApp_SQLiteSessionsAndClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	gin.SetMode(gin.TestMode)
	t.Setenv("APP_ENV", "dev")
	t.Setenv("AUTH_BCRYPT_COST", "4")
	t.Setenv("SESSION_BACKEND", "sqlite")
	t.Setenv("SESSION_SQLITE_PATH", filepath.Join(t.TempDir(), "data", "sessions.db"))
	t.Setenv("SESSION_SWEEP_INTERVAL", "10ms")
	cfg, err := config.Load()
	require.NoError(t, err)

	a, err := New(context.Background(), cfg, logging.New(io.Discard, "error", "text"))
	require.NoError(t, err)

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		a.Router().ServeHTTP(rec, req)
		return rec
	}
	require.Equal(t, http.StatusCreated, post("/auth/register", `{"username":"alice","password":"pw"}`).Code)
	rec := post("/auth/login", `{"username":"alice","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)

	req := httptest.NewRequest(http.MethodGet, "/auth/verify-session", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// let the sweeper tick at least once
	time.Sleep(30 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, a.Close(ctx))
}

func TestApp_CloseWithoutSweep(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	cfg, err := config.Load()
	require.NoError(t, err)

	a, err := New(context.Background(), cfg, logging.New(io.Discard, "error", "text"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, a.Close(ctx), "nothing to wait for")
}
