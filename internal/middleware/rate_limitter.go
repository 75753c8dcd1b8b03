package middleware

import (
	"BodyMeasure/pkg/response"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrTooManyRequests = response.NewError(http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "too many requests")
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// rateLimiter keeps one token bucket per client IP. Buckets idle for longer
// than idleTTL are dropped when a new client arrives, so the map only holds
// recently active clients.
type rateLimiter struct {
	bucket    map[string]*visitor
	rate      rate.Limit
	burstSize int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
	mutex     *sync.RWMutex
}

func newRateLimiter(reqRate rate.Limit, burstSize int, idleTTL time.Duration) *rateLimiter {
	return &rateLimiter{
		bucket:    make(map[string]*visitor),
		rate:      reqRate,
		burstSize: burstSize,
		idleTTL:   idleTTL,
		now:       time.Now,
		mutex:     &sync.RWMutex{},
	}
}

func (r *rateLimiter) GetLimiterFrom(ip string) *rate.Limiter {
	now := r.now()

	r.mutex.RLock()
	v, exist := r.bucket[ip]
	r.mutex.RUnlock()
	if exist {
		v.lastSeen.Store(now.UnixNano())
		return v.limiter
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.sweep(now)

	v, exist = r.bucket[ip]
	if !exist {
		v = &visitor{limiter: rate.NewLimiter(r.rate, r.burstSize)}
		r.bucket[ip] = v
	}
	v.lastSeen.Store(now.UnixNano())

	return v.limiter
}

// sweep runs at most once per idleTTL. Caller holds the write lock.
func (r *rateLimiter) sweep(now time.Time) {
	if now.Sub(r.lastSweep) < r.idleTTL {
		return
	}
	r.lastSweep = now

	cutoff := now.Add(-r.idleTTL).UnixNano()
	for ip, v := range r.bucket {
		if v.lastSeen.Load() < cutoff {
			delete(r.bucket, ip)
		}
	}
}

func (m *middleware) NewRateLimiter(ctx *fiber.Ctx) error {
	clientIP := ctx.IP()
	limiter := m.rateLimitter.GetLimiterFrom(clientIP)

	if !limiter.Allow() {
		m.log.Warnf("too many requests for IP %s", clientIP)
		return writeError(ctx, ErrTooManyRequests)
	}

	return ctx.Next()
}

func writeError(ctx *fiber.Ctx, err error) error {
	respErr := err.(*response.Error)
	return ctx.Status(respErr.Code).JSON(fiber.Map{
		"error": respErr.Error(),
		"code":  respErr.Reason,
	})
}
