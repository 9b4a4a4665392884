package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateCounter is the redis subset used for fixed window counters.
type RateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// IncrWithTTL increments key and starts its window on the first hit.
func IncrWithTTL(ctx context.Context, client RateCounter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}

// PublicRateLimit allows perMinute requests per client IP and scope.
// Redis failures let the request through.
func PublicRateLimit(client RateCounter, scope string, perMinute int) gin.HandlerFunc {
	return PublicRateLimitWithBody(client, scope, perMinute, gin.H{"error": "rate limit exceeded"})
}

// PublicRateLimitWithBody is PublicRateLimit with a custom 429 body, for
// endpoints whose responses share a fixed shape.
func PublicRateLimitWithBody(client RateCounter, scope string, perMinute int, limited gin.H) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || perMinute <= 0 {
			c.Next()
			return
		}

		window := time.Now().UTC().Format("200601021504")
		key := fmt.Sprintf("rate:%s:%s:%s", scope, c.ClientIP(), window)
		count, err := IncrWithTTL(c.Request.Context(), client, key, time.Minute)
		if err != nil {
			LoggerFromContext(c).Warn("rate limit counter unavailable", slog.Any("error", err))
			c.Next()
			return
		}
		if count > int64(perMinute) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, limited)
			return
		}
		c.Next()
	}
}
