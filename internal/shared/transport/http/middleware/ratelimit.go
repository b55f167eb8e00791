package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"Conquest/internal/shared/transport"
	"Conquest/modules/kit/errx"
)

// idleLimiter 超过这个时间没用过的限流器会被回收。
const idleLimiter = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 按玩家令牌桶限流，未登录请求按客户端 IP。
type RateLimiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*limiterEntry
	lastGC   time.Time
	now      func() time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*limiterEntry),
		now:      time.Now,
	}
}

func (l *RateLimiter) Allow(key string) bool {
	if l.rps <= 0 {
		return true
	}
	now := l.now()
	l.mu.Lock()
	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	if now.Sub(l.lastGC) > idleLimiter {
		for k, v := range l.limiters {
			if now.Sub(v.lastSeen) > idleLimiter {
				delete(l.limiters, k)
			}
		}
		l.lastGC = now
	}
	l.mu.Unlock()
	return e.limiter.AllowN(now, 1)
}

// Middleware 必须挂在 Auth 之后才能按玩家限流。
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if pid, ok := PlayerID(c); ok {
			key = "player:" + strconv.FormatInt(pid, 10)
		}
		if !l.Allow(key) {
			reason := errx.ErrRateLimited.CodeText()
			transport.SetErrorReason(c.Request.Context(), reason)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    transport.RateLimited,
				"reason":  reason,
				"message": "操作过于频繁，请稍后重试",
			})
			return
		}
		c.Next()
	}
}
