package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowsBurstThenBlocks(t *testing.T) {
	rl := NewRateLimiter(6) // burst of 5

	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("key"), "request %d should pass", i)
	}
	assert.False(t, rl.Allow("key"))
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(6)

	for i := 0; i < 5; i++ {
		rl.Allow("a")
	}
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
}

func TestRateLimiter_MinimumBurst(t *testing.T) {
	// 1/min still gets the floor burst of 5
	rl := NewRateLimiter(1)

	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("key"))
	}
	assert.False(t, rl.Allow("key"))
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(6)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/setname", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	require.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "1", last.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded, please try again later"}`, last.Body.String())
}

func TestRateLimiter_CleanupDropsIdleKeys(t *testing.T) {
	rl := NewRateLimiter(600)

	rl.Allow("busy")
	rl.Cleanup()

	rl.mu.RLock()
	_, exists := rl.limiters["busy"]
	rl.mu.RUnlock()
	assert.True(t, exists, "a key below full burst survives cleanup")
}
