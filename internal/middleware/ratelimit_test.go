package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterRefillsWholeIntervals(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	ok, _ := rl.Allow("1.2.3.4")
	assert.True(t, ok)
	ok, _ = rl.Allow("1.2.3.4")
	assert.True(t, ok)

	ok, wait := rl.Allow("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, wait)

	ok, _ = rl.Allow("5.6.7.8")
	assert.True(t, ok, "buckets are per key")

	now = now.Add(90 * time.Second)
	ok, _ = rl.Allow("1.2.3.4")
	assert.True(t, ok)
	ok, _ = rl.Allow("1.2.3.4")
	assert.True(t, ok)
	ok, wait = rl.Allow("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, 30*time.Second, wait)
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()

	r := gin.New()
	r.POST("/login", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		return w
	}

	assert.Equal(t, http.StatusOK, do().Code)
	w := do()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}
