package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// InitRedisRateLimiter installs the shared Redis client. If addr is empty or
// the connection fails the limiters act fail-open so the API stays available.
func InitRedisRateLimiter(addr, password string, db int) {
	if addr == "" {
		return
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return
	}
	redisClient = client
}

// RateLimit is a fixed-window limiter keyed per client IP, backed by Redis
// INCR/EXPIRE. Key format: rl:<window_seconds>:<ip>.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		limitByKey(c, "rl:"+windowKey(window)+":"+c.ClientIP(), maxRequests, window)
	}
}

// UserRateLimit limits engine operations per authenticated user rather than
// per IP. Requires Auth to run first.
func UserRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		key := "rl:user:" + windowKey(window) + ":" + strconv.FormatInt(userID, 10)
		limitByKey(c, key, maxRequests, window)
	}
}

func limitByKey(c *gin.Context, key string, maxRequests int, window time.Duration) {
	if redisClient == nil {
		c.Next()
		return
	}

	ctx := context.Background()
	val, err := redisClient.Incr(ctx, key).Result()
	if err != nil {
		// fail-open on a Redis outage, but make it visible
		c.Header("X-RateLimit-Error", "redis-error")
		c.Next()
		return
	}
	if val == 1 {
		redisClient.Expire(ctx, key, window)
	}

	if val > int64(maxRequests) {
		RLBlocked.WithLabelValues(c.FullPath()).Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	RLRequests.WithLabelValues(c.FullPath()).Inc()
	c.Next()
}

func windowKey(window time.Duration) string {
	return strconv.FormatInt(int64(window.Seconds()), 10)
}
