package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// Integration-style test: runs only if REDIS_ADDR is set.
func TestRateLimitIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			db = n
		}
	}
	InitRedisRateLimiter(addr, os.Getenv("REDIS_PASSWORD"), db)

	window := 2 * time.Second
	limit := 2

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/test", RateLimit(limit, window), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	srv := httptest.NewServer(r)
	defer srv.Close()

	for i := 0; i < limit; i++ {
		res, err := http.Get(srv.URL + "/test")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)
	}

	res, err := http.Get(srv.URL + "/test")
	require.NoError(t, err)
	require.Equal(t, http.StatusTooManyRequests, res.StatusCode)
}

func TestRateLimitFailsOpenWithoutRedis(t *testing.T) {
	saved := redisClient
	redisClient = nil
	defer func() { redisClient = saved }()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/test", RateLimit(1, time.Second), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	srv := httptest.NewServer(r)
	defer srv.Close()

	for i := 0; i < 5; i++ {
		res, err := http.Get(srv.URL + "/test")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)
	}
}
