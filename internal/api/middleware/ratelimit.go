package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"carrental/backend/internal/config"
)

const (
	limiterCleanupInterval = 10 * time.Minute
	limiterIdleTimeout     = 30 * time.Minute
)

// clientLimiter stores the token bucket of one client.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterMiddleware applies a per-client token bucket to every route.
type RateLimiterMiddleware struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
	logger  *zap.Logger
	stop    chan struct{}
}

// NewRateLimiterMiddleware creates a new RateLimiterMiddleware and starts
// its cleanup loop. Call Close to stop the loop.
func NewRateLimiterMiddleware(cfg *config.Config, logger *zap.Logger) *RateLimiterMiddleware {
	rm := &RateLimiterMiddleware{
		clients: make(map[string]*clientLimiter),
		rate:    rate.Limit(cfg.RateLimitRefillRate),
		burst:   cfg.RateLimitBucketSize,
		logger:  logger,
		stop:    make(chan struct{}),
	}
	go rm.cleanupClients()
	return rm
}

func (rm *RateLimiterMiddleware) getClientLimiter(key string) *rate.Limiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	entry, exists := rm.clients[key]
	if !exists {
		entry = &clientLimiter{limiter: rate.NewLimiter(rm.rate, rm.burst)}
		rm.clients[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

func (rm *RateLimiterMiddleware) cleanupClients() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rm.stop:
			return
		case <-ticker.C:
			rm.evictIdle(time.Now().Add(-limiterIdleTimeout))
		}
	}
}

func (rm *RateLimiterMiddleware) evictIdle(before time.Time) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	count := 0
	for key, entry := range rm.clients {
		if entry.lastSeen.Before(before) {
			delete(rm.clients, key)
			count++
		}
	}
	if count > 0 {
		rm.logger.Debug("rate limiter evicted idle clients", zap.Int("count", count))
	}
	return count
}

// Close stops the cleanup loop.
func (rm *RateLimiterMiddleware) Close() {
	close(rm.stop)
}

// Limit creates the Gin middleware handler.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := c.ClientIP()
		if !rm.getClientLimiter(clientKey).Allow() {
			rm.logger.Warn("rate limit exceeded",
				zap.String("client", clientKey),
				zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "Too many requests"})
			return
		}
		c.Next()
	}
}
