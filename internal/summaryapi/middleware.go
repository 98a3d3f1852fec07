package summaryapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	internalAuthHeader = "X-Internal-Auth"
	clientKeyContext   = "summaryapi_client"
)

// SharedSecret rejects requests whose X-Internal-Auth header does not match secret.
// An empty secret disables the check.
func SharedSecret(secret string) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(internalAuthHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// RateLimiter hands out one token bucket per client IP.
type RateLimiter struct {
	every    time.Duration
	burst    int
	limiters sync.Map // ip -> *rate.Limiter
}

func NewRateLimiter(every time.Duration, burst int) *RateLimiter {
	if every <= 0 {
		every = 600 * time.Millisecond // ~100/min
	}
	if burst <= 0 {
		burst = 20
	}
	return &RateLimiter{every: every, burst: burst}
}

func (l *RateLimiter) limiter(ip string) *rate.Limiter {
	if v, ok := l.limiters.Load(ip); ok {
		return v.(*rate.Limiter)
	}
	v, _ := l.limiters.LoadOrStore(ip, rate.NewLimiter(rate.Every(l.every), l.burst))
	return v.(*rate.Limiter)
}

// Middleware answers 429 once a client exhausts its bucket and records the client key for job fairness.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !l.limiter(ip).Allow() {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Set(clientKeyContext, ip)
		c.Next()
	}
}

// clientKey returns the key recorded by the rate limiter, falling back to the client IP.
func clientKey(c *gin.Context) string {
	if v, ok := c.Get(clientKeyContext); ok {
		if key, ok := v.(string); ok {
			return key
		}
	}
	return c.ClientIP()
}
