package middleware

import (
	contextPkg "BodyMeasure/pkg/context"
	"BodyMeasure/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"time"
)

type Middleware interface {
	NewRateLimiter(ctx *fiber.Ctx) error
	NewRequestIDMiddleware() fiber.Handler
	NewLoggingMiddleware() fiber.Handler
	NewOriginGuard() fiber.Handler
	GetRequestID(ctx *fiber.Ctx) string
}

type Config struct {
	RateLimit rate.Limit
	Burst     int
	// IdleTTL is how long a client's bucket survives without requests.
	IdleTTL time.Duration
	CORS    CORSConfig
}

type middleware struct {
	rateLimitter        *rateLimiter
	originPolicy        *originPolicy
	requestIDMiddleware fiber.Handler
	log                 *logrus.Logger
}

func New(logger *logrus.Logger, u utils.IUtils, cfg Config) Middleware {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 3 * time.Minute
	}

	return &middleware{
		rateLimitter:        newRateLimiter(cfg.RateLimit, cfg.Burst, cfg.IdleTTL),
		originPolicy:        newOriginPolicy(cfg.CORS),
		requestIDMiddleware: newRequestIDMiddleware(u),
		log:                 logger,
	}
}

func (m *middleware) GetRequestID(ctx *fiber.Ctx) string {
	requestID, ok := ctx.Locals(contextPkg.RequestIDHeader).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

func (m *middleware) NewRequestIDMiddleware() fiber.Handler {
	return m.requestIDMiddleware
}
