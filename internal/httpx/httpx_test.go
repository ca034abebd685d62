package httpx

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	log.SetOutput(io.Discard)
}

func newEngine(mw ...gin.HandlerFunc) (*gin.Engine, *struct {
	rid string
	uid *string
}) {
	seen := &struct {
		rid string
		uid *string
	}{}
	r := gin.New()
	r.Use(mw...)
	r.GET("/x", func(c *gin.Context) {
		seen.rid = GetRequestID(c)
		seen.uid = GetUserID(c)
		c.Status(http.StatusNoContent)
	})
	return r, seen
}

func TestRequestID(t *testing.T) {
	r, seen := newEngine(RequestID())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.NotEmpty(t, seen.rid)
	assert.Equal(t, seen.rid, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", seen.rid)
}

func TestUserContext(t *testing.T) {
	r, seen := newEngine(UserContext())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Nil(t, seen.uid)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-User-ID", " user-9 ")
	r.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, seen.uid)
	assert.Equal(t, "user-9", *seen.uid)
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"))
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.Allow("1.1.1.1")
	assert.Equal(t, 0, rl.Cleanup(time.Now()))
	assert.Equal(t, 1, rl.Cleanup(time.Now().Add(time.Hour)))
	assert.Empty(t, rl.limiters)
}

func TestRateLimiterMiddleware(t *testing.T) {
	r, _ := newEngine(NewRateLimiter(0.001, 1).Middleware())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"too many requests"}`, w.Body.String())
}
