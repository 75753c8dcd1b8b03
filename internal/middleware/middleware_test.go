package middleware

import (
	"BodyMeasure/pkg/utils"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, cfg Config, reached *int) *fiber.App {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	m := New(logger, utils.New(0), cfg)
	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Use(m.NewLoggingMiddleware())
	app.Use(m.NewOriginGuard())
	app.Post("/measure", m.NewRateLimiter, func(c *fiber.Ctx) error {
		*reached++
		return c.JSON(fiber.Map{"request_id": m.GetRequestID(c)})
	})
	return app
}

func allowList() Config {
	return Config{
		RateLimit: 100,
		Burst:     100,
		CORS: CORSConfig{
			AllowedOrigins: []string{"https://yonghaklee.github.io", "null"},
			MaxAge:         600,
		},
	}
}

func TestOriginGuard(t *testing.T) {
	t.Run("allowed origin reaches the handler", func(t *testing.T) {
		reached := 0
		app := newTestApp(t, allowList(), &reached)

		req := httptest.NewRequest(http.MethodPost, "/measure", nil)
		req.Header.Set(fiber.HeaderOrigin, "https://yonghaklee.github.io")
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "https://yonghaklee.github.io", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
		require.Equal(t, "true", resp.Header.Get(fiber.HeaderAccessControlAllowCredentials))
		require.Equal(t, 1, reached)
	})

	t.Run("foreign origin is rejected before the handler", func(t *testing.T) {
		reached := 0
		app := newTestApp(t, allowList(), &reached)

		req := httptest.NewRequest(http.MethodPost, "/measure", nil)
		req.Header.Set(fiber.HeaderOrigin, "https://evil.example")
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.Empty(t, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
		require.Equal(t, 0, reached)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"error":"origin not allowed","code":"ORIGIN_NOT_ALLOWED"}`, string(body))
	})

	t.Run("opaque null origin from a local file", func(t *testing.T) {
		reached := 0
		app := newTestApp(t, allowList(), &reached)

		req := httptest.NewRequest(http.MethodPost, "/measure", nil)
		req.Header.Set(fiber.HeaderOrigin, "null")
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, 1, reached)
	})

	t.Run("request without origin passes", func(t *testing.T) {
		reached := 0
		app := newTestApp(t, allowList(), &reached)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/measure", nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Empty(t, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
		require.Equal(t, 1, reached)
	})

	t.Run("preflight from an allowed origin", func(t *testing.T) {
		reached := 0
		app := newTestApp(t, allowList(), &reached)

		req := httptest.NewRequest(http.MethodOptions, "/measure", nil)
		req.Header.Set(fiber.HeaderOrigin, "https://yonghaklee.github.io")
		req.Header.Set(fiber.HeaderAccessControlRequestMethod, http.MethodPost)
		req.Header.Set(fiber.HeaderAccessControlRequestHeaders, "content-type")
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		require.Equal(t, "GET,POST,OPTIONS", resp.Header.Get(fiber.HeaderAccessControlAllowMethods))
		require.Equal(t, "content-type", resp.Header.Get(fiber.HeaderAccessControlAllowHeaders))
		require.Equal(t, "600", resp.Header.Get(fiber.HeaderAccessControlMaxAge))
		require.Equal(t, 0, reached)
	})

	t.Run("preflight from a foreign origin", func(t *testing.T) {
		reached := 0
		app := newTestApp(t, allowList(), &reached)

		req := httptest.NewRequest(http.MethodOptions, "/measure", nil)
		req.Header.Set(fiber.HeaderOrigin, "https://evil.example")
		req.Header.Set(fiber.HeaderAccessControlRequestMethod, http.MethodPost)
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("allow all is opt-in and never sends credentials", func(t *testing.T) {
		reached := 0
		cfg := allowList()
		cfg.CORS = CORSConfig{AllowAll: true}
		app := newTestApp(t, cfg, &reached)

		req := httptest.NewRequest(http.MethodPost, "/measure", nil)
		req.Header.Set(fiber.HeaderOrigin, "https://anywhere.example")
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
		require.Empty(t, resp.Header.Get(fiber.HeaderAccessControlAllowCredentials))
	})
}

func TestRateLimiter(t *testing.T) {
	reached := 0
	app := newTestApp(t, Config{RateLimit: 0.001, Burst: 2}, &reached)

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/measure", nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/measure", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, 2, reached)
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := newRateLimiter(1, 1, time.Minute)
	r.now = func() time.Time { return now }

	active := r.GetLimiterFrom("10.0.0.1")
	r.GetLimiterFrom("10.0.0.2")
	require.Len(t, r.bucket, 2)

	now = now.Add(30 * time.Second)
	require.Same(t, active, r.GetLimiterFrom("10.0.0.1"))

	now = now.Add(45 * time.Second)
	r.GetLimiterFrom("10.0.0.3")

	require.Len(t, r.bucket, 2)
	require.Contains(t, r.bucket, "10.0.0.1")
	require.Contains(t, r.bucket, "10.0.0.3")
	require.NotContains(t, r.bucket, "10.0.0.2")
	require.Same(t, active, r.GetLimiterFrom("10.0.0.1"))
}

func TestRequestID(t *testing.T) {
	reached := 0
	app := newTestApp(t, allowList(), &reached)

	t.Run("generated when absent", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/measure", nil))
		require.NoError(t, err)
		require.Len(t, resp.Header.Get("X-Request-ID"), 26)
	})

	t.Run("echoed when supplied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/measure", nil)
		req.Header.Set("X-Request-ID", "client-supplied")
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, "client-supplied", resp.Header.Get("X-Request-ID"))

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"request_id":"client-supplied"}`, string(body))
	})
}
