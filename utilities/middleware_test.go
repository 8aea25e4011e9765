package utilities

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizcoach-backend/internal/config"
)

func newTestRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	whoami := func(c *gin.Context) {
		id, ok := UserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id, "known": ok})
	}
	r.GET("/whoami", whoami)
	r.GET("/health", whoami)
	return r
}

func TestAuthMiddlewareHeaderIdentity(t *testing.T) {
	r := newTestRouter(AuthMiddleware(false))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderUserID, "  alice ")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"alice","known":true}`, w.Body.String())
}

func TestAuthMiddlewareBearer(t *testing.T) {
	configureTestTokens(t)
	r := newTestRouter(AuthMiddleware(true))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	access, _, err := GenerateTokens("bob")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	req.Header.Set(HeaderUserID, "mallory")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"bob","known":true}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})
	r := newTestRouter(AuthMiddleware(false), RateLimitMiddleware(rl))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(HeaderUserID, "carol")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// A different caller has its own bucket.
	assert.True(t, rl.Allow("dave"))
}

func TestEventBusDeliversAndRecovers(t *testing.T) {
	bus := NewEventBus()
	got := make(chan interface{}, 2)
	bus.Subscribe(EventAttemptRecorded, func(v interface{}) { got <- v })
	bus.Subscribe(EventAttemptRecorded, func(interface{}) { panic("boom") })

	bus.Publish(EventAttemptRecorded, 42)
	bus.Publish(EventAssessmentFinished, "nobody listens")
	bus.Wait()

	require.Len(t, got, 1)
	assert.Equal(t, 42, <-got)
}

func TestRedactHidesSecrets(t *testing.T) {
	out := redact([]interface{}{"user_id", "u1", "access_token", "abc", "ClientKey", "k"})
	assert.Equal(t, []interface{}{"user_id", "u1", "access_token", "[REDACTED]", "ClientKey", "k"}, out)

	out = redact([]interface{}{"client_key", "k", "dangling"})
	assert.Equal(t, []interface{}{"client_key", "[REDACTED]", "dangling"}, out)
}

func TestNewLoggerWritesToDir(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(config.LoggingConfig{Mode: "prod", Dir: dir, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	require.NoError(t, err)
	l.With("component", "test").Info("hello", "n", 1)
	l.Sync()
	assert.FileExists(t, dir+"/quizcoach.log")
}
