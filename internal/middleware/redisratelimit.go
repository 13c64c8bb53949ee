// redisratelimit.go provides a Redis-backed rate limiter for the login and
// registration endpoints. Unlike the in-process token bucket in ratelimit.go,
// its counters survive restarts and are shared across replicas, which matters
// for brute-force protection: an attacker cannot reset their budget by waiting
// for a deploy or spreading requests over instances.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter enforces a shared GCRA rate limit backed by Redis.
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

// NewRedisRateLimiter creates a limiter over an existing Redis client.
func NewRedisRateLimiter(client *redis.Client, requestsPerMinute, burst int) *RedisRateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 10
	}
	if burst <= 0 {
		burst = requestsPerMinute
	}
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(client),
		limit: redis_rate.Limit{
			Rate:   requestsPerMinute,
			Period: time.Minute,
			Burst:  burst,
		},
	}
}

// Middleware returns a Gin handler enforcing the limit per client key.
// When Redis is unreachable the limiter fails open: login availability is
// worth more than brute-force protection during a cache outage, and the
// in-process limiter upstream still applies.
func (rl *RedisRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := getRateLimitKey(c)

		res, err := rl.limiter.Allow(c.Request.Context(), key, rl.limit)
		if err != nil {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit.Rate))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if res.Allowed == 0 {
			retryAfter := int(res.RetryAfter.Seconds() + 1)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}
