package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "LOG_LEVEL", "APP_HOST", "APP_PORT", "CORS_ALLOWED_ORIGINS", "CORS_ALLOW_ALL",
		"UPLOAD_MAX_SIZE", "BODY_LIMIT", "IMAGE_MAX_PIXELS", "MODEL_BACKEND", "MODEL_LATENCY", "MODEL_WS_URL",
		"MODEL_CONCURRENCY", "MEASURE_TIMEOUT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	clearEnv(t)

	s, err := LoadSettings(NewValidator())
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", s.BindHost)
	require.Equal(t, 3333, s.BindPort)
	require.Equal(t, "0.0.0.0:3333", s.Address())
	require.Equal(t, defaultAllowedOrigins, s.AllowedOrigins)
	require.False(t, s.AllowAllOrigins)
	require.Equal(t, ModelBackendReference, s.ModelBackend)
	require.Equal(t, 2*time.Second, s.ModelLatency)
	require.Equal(t, 10*time.Second, s.MeasureTimeout)
	require.Equal(t, 4, s.ModelConcurrency)
	require.Equal(t, int64(24_000_000), s.ImageMaxPixels)
}

func TestLoadSettingsFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://Example.com/ , http://localhost:3000")
	t.Setenv("MODEL_BACKEND", "remote")
	t.Setenv("MODEL_WS_URL", "ws://inference:8000/measure")
	t.Setenv("MODEL_LATENCY", "150ms")
	t.Setenv("IMAGE_MAX_PIXELS", "1000000")

	s, err := LoadSettings(NewValidator())
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8080", s.Address())
	require.Equal(t, []string{"https://example.com", "http://localhost:3000"}, s.AllowedOrigins)
	require.Equal(t, ModelBackendRemote, s.ModelBackend)
	require.Equal(t, 150*time.Millisecond, s.ModelLatency)
	require.Equal(t, int64(1_000_000), s.ImageMaxPixels)
}

func TestLoadSettingsRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"port out of range", map[string]string{"APP_PORT": "70000"}},
		{"port not a number", map[string]string{"APP_PORT": "http"}},
		{"bad bind host", map[string]string{"APP_HOST": "not a host!"}},
		{"wildcard without opt-in", map[string]string{"CORS_ALLOWED_ORIGINS": "*"}},
		{"origin with path", map[string]string{"CORS_ALLOWED_ORIGINS": "https://example.com/app"}},
		{"origin without scheme", map[string]string{"CORS_ALLOWED_ORIGINS": "example.com"}},
		{"empty origin list", map[string]string{"CORS_ALLOWED_ORIGINS": " , "}},
		{"remote without url", map[string]string{"MODEL_BACKEND": "remote"}},
		{"unknown backend", map[string]string{"MODEL_BACKEND": "magic"}},
		{"zero timeout", map[string]string{"MEASURE_TIMEOUT": "0s"}},
		{"bad duration", map[string]string{"MODEL_LATENCY": "soon"}},
		{"body limit below upload size", map[string]string{"UPLOAD_MAX_SIZE": "100", "BODY_LIMIT": "10"}},
		{"bad bool", map[string]string{"CORS_ALLOW_ALL": "maybe"}},
		{"zero pixel limit", map[string]string{"IMAGE_MAX_PIXELS": "0"}},
		{"unknown log level", map[string]string{"LOG_LEVEL": "loud"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			s, err := LoadSettings(NewValidator())
			require.ErrorIs(t, err, ErrInvalidSettings)
			require.Nil(t, s)
		})
	}
}

func TestLoadSettingsWildcardOptIn(t *testing.T) {
	clearEnv(t)
	t.Setenv("CORS_ALLOWED_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_ALL", "true")

	s, err := LoadSettings(NewValidator())
	require.NoError(t, err)
	require.True(t, s.AllowAllOrigins)
	require.Empty(t, s.AllowedOrigins)
}

func TestValidateOrigin(t *testing.T) {
	validate := NewValidator()

	for _, origin := range []string{"null", "https://yonghaklee.github.io", "http://127.0.0.1:5500"} {
		require.NoError(t, validate.Var(origin, "origin"), origin)
	}
	for _, origin := range []string{"*", "ftp://example.com", "https://*.example.com", "https://example.com?x=1", "https://user@example.com"} {
		require.Error(t, validate.Var(origin, "origin"), origin)
	}
}
