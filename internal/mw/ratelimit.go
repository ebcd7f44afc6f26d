package mw

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientRateLimiter keeps one token bucket per client key. Buckets idle for longer than
// limiterIdleTTL are pruned.
type ClientRateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	r         rate.Limit
	b         int
	lastPrune time.Time
}

// NewClientRateLimiter creates a new ClientRateLimiter.
func NewClientRateLimiter(r rate.Limit, b int) *ClientRateLimiter {
	return &ClientRateLimiter{
		clients: make(map[string]*clientLimiter),
		r:       r,
		b:       b,
	}
}

// Allow reports whether the client identified by key may make a request now.
func (l *ClientRateLimiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	if now.Sub(l.lastPrune) > limiterIdleTTL {
		for k, c := range l.clients {
			if now.Sub(c.lastSeen) > limiterIdleTTL {
				delete(l.clients, k)
			}
		}
		l.lastPrune = now
	}
	c, ok := l.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.r, l.b)}
		l.clients[key] = c
	}
	c.lastSeen = now
	l.mu.Unlock()

	return c.limiter.Allow()
}

// RateLimiter is a middleware for per-client rate limiting. When ipHeader is set (for a
// deployment behind a proxy) its first value identifies the client; otherwise gin's
// ClientIP does.
func RateLimiter(r rate.Limit, b int, ipHeader string) gin.HandlerFunc {
	limiter := NewClientRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.Allow(clientKey(c, ipHeader)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}

func clientKey(c *gin.Context, ipHeader string) string {
	if ipHeader != "" {
		if v := c.GetHeader(ipHeader); v != "" {
			first, _, _ := strings.Cut(v, ",")
			return strings.TrimSpace(first)
		}
	}
	return c.ClientIP()
}
