package middleware

import (
	contextPkg "BodyMeasure/pkg/context"
	"BodyMeasure/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"net/http"
	"strconv"
	"strings"
)

var (
	ErrOriginNotAllowed = response.NewError(http.StatusForbidden, "ORIGIN_NOT_ALLOWED", "origin not allowed")
)

type CORSConfig struct {
	AllowedOrigins []string
	// AllowAll answers every origin with "*" and never allows credentials.
	AllowAll     bool
	AllowMethods []string
	AllowHeaders []string
	MaxAge       int
}

type originPolicy struct {
	allowed      map[string]struct{}
	allowAll     bool
	allowMethods string
	allowHeaders string
	maxAge       string
}

func newOriginPolicy(cfg CORSConfig) *originPolicy {
	p := &originPolicy{
		allowed:      make(map[string]struct{}, len(cfg.AllowedOrigins)),
		allowAll:     cfg.AllowAll,
		allowMethods: strings.Join([]string{fiber.MethodGet, fiber.MethodPost, fiber.MethodOptions}, ","),
	}
	for _, origin := range cfg.AllowedOrigins {
		p.allowed[normalizeOrigin(origin)] = struct{}{}
	}
	if len(cfg.AllowMethods) > 0 {
		p.allowMethods = strings.Join(cfg.AllowMethods, ",")
	}
	if len(cfg.AllowHeaders) > 0 {
		p.allowHeaders = strings.Join(cfg.AllowHeaders, ",")
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	return p
}

func normalizeOrigin(origin string) string {
	origin = strings.TrimSuffix(strings.TrimSpace(origin), "/")
	if origin == "null" {
		return origin
	}
	return strings.ToLower(origin)
}

func (p *originPolicy) allows(origin string) bool {
	if p.allowAll {
		return true
	}
	_, ok := p.allowed[normalizeOrigin(origin)]
	return ok
}

// NewOriginGuard enforces the origin allow-list. Requests without an Origin
// header are not browser cross-origin calls and pass untouched; a foreign
// origin is refused here so no handler runs for it.
func (m *middleware) NewOriginGuard() fiber.Handler {
	p := m.originPolicy

	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		if origin == "" {
			return c.Next()
		}

		c.Vary(fiber.HeaderOrigin)

		if !p.allows(origin) {
			m.log.WithFields(logrus.Fields{
				"request_id": m.GetRequestID(c),
				"origin":     origin,
				"path":       c.Path(),
				"method":     c.Method(),
			}).Warn("Rejected request from origin outside allow-list")
			return writeError(c, ErrOriginNotAllowed)
		}

		if p.allowAll {
			c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		} else {
			c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
			c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
		}
		c.Set(fiber.HeaderAccessControlExposeHeaders, contextPkg.RequestIDHeader)

		if c.Method() != fiber.MethodOptions || c.Get(fiber.HeaderAccessControlRequestMethod) == "" {
			return c.Next()
		}

		c.Vary(fiber.HeaderAccessControlRequestMethod, fiber.HeaderAccessControlRequestHeaders)
		c.Set(fiber.HeaderAccessControlAllowMethods, p.allowMethods)

		allowHeaders := p.allowHeaders
		if allowHeaders == "" {
			allowHeaders = c.Get(fiber.HeaderAccessControlRequestHeaders)
		}
		if allowHeaders != "" {
			c.Set(fiber.HeaderAccessControlAllowHeaders, allowHeaders)
		}
		if p.maxAge != "" {
			c.Set(fiber.HeaderAccessControlMaxAge, p.maxAge)
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
