package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidSettings = errors.New("invalid settings")

const (
	ModelBackendReference = "reference"
	ModelBackendRemote    = "remote"
)

var defaultAllowedOrigins = []string{
	"https://yonghaklee.github.io",
	"http://127.0.0.1:5500",
	"http://localhost:5500",
	"null",
}

// Settings is the startup configuration. Every field comes from the
// environment, optionally seeded from .env.
type Settings struct {
	AppEnv   string `validate:"required"`
	LogLevel string `validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`

	BindHost string `validate:"required,hostname|ip"`
	BindPort int    `validate:"min=1,max=65535"`

	AllowedOrigins  []string `validate:"dive,origin"`
	AllowAllOrigins bool

	UploadMaxSize  int64 `validate:"gt=0"`
	BodyLimit      int64 `validate:"gtfield=UploadMaxSize"`
	ImageMaxPixels int64 `validate:"gt=0"`

	ModelBackend     string        `validate:"oneof=reference remote"`
	ModelLatency     time.Duration `validate:"gte=0"`
	ModelWSURL       string        `validate:"omitempty,url"`
	ModelConcurrency int           `validate:"min=1"`
	MeasureTimeout   time.Duration `validate:"gt=0"`

	RateLimitRPS   float64 `validate:"gt=0"`
	RateLimitBurst int     `validate:"min=1"`
}

func (s *Settings) Address() string {
	return net.JoinHostPort(s.BindHost, strconv.Itoa(s.BindPort))
}

// LoadSettings reads and validates the environment. Any bad value is
// reported as ErrInvalidSettings so the process can refuse to start.
func LoadSettings(validate *validator.Validate) (*Settings, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	s := &Settings{
		AppEnv:       getEnv("APP_ENV", "development"),
		LogLevel:     strings.ToLower(getEnv("LOG_LEVEL", "debug")),
		BindHost:     getEnv("APP_HOST", "0.0.0.0"),
		ModelBackend: strings.ToLower(getEnv("MODEL_BACKEND", ModelBackendReference)),
		ModelWSURL:   getEnv("MODEL_WS_URL", ""),
	}

	var err error
	s.BindPort, err = getEnvInt("APP_PORT", 3333)
	collect(err)
	s.AllowAllOrigins, err = getEnvBool("CORS_ALLOW_ALL", false)
	collect(err)
	s.UploadMaxSize, err = getEnvInt64("UPLOAD_MAX_SIZE", 10*1024*1024)
	collect(err)
	s.BodyLimit, err = getEnvInt64("BODY_LIMIT", 50*1024*1024)
	collect(err)
	s.ImageMaxPixels, err = getEnvInt64("IMAGE_MAX_PIXELS", 24_000_000)
	collect(err)
	s.ModelLatency, err = getEnvDuration("MODEL_LATENCY", 2*time.Second)
	collect(err)
	s.ModelConcurrency, err = getEnvInt("MODEL_CONCURRENCY", 4)
	collect(err)
	s.MeasureTimeout, err = getEnvDuration("MEASURE_TIMEOUT", 10*time.Second)
	collect(err)
	s.RateLimitRPS, err = getEnvFloat("RATE_LIMIT_RPS", 5)
	collect(err)
	s.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", 10)
	collect(err)

	s.AllowedOrigins, err = parseOrigins(getEnv("CORS_ALLOWED_ORIGINS", strings.Join(defaultAllowedOrigins, ",")), s.AllowAllOrigins)
	collect(err)

	if s.ModelBackend == ModelBackendRemote && s.ModelWSURL == "" {
		collect(errors.New("MODEL_WS_URL is required when MODEL_BACKEND=remote"))
	}

	if err := validate.Struct(s); err != nil {
		collect(err)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
	}

	return s, nil
}

// parseOrigins splits a comma separated allow-list. "*" is only accepted
// when allowAll is set, and is then dropped from the explicit list.
func parseOrigins(raw string, allowAll bool) ([]string, error) {
	origins := make([]string, 0)
	wildcard := false
	for _, part := range strings.Split(raw, ",") {
		origin := strings.TrimSuffix(strings.TrimSpace(part), "/")
		if origin == "" {
			continue
		}
		if origin == "*" {
			wildcard = true
			continue
		}
		if origin != "null" {
			origin = strings.ToLower(origin)
		}
		origins = append(origins, origin)
	}

	if wildcard && !allowAll {
		return nil, errors.New("CORS_ALLOWED_ORIGINS contains \"*\"; set CORS_ALLOW_ALL=true to allow every origin")
	}
	if !allowAll && len(origins) == 0 {
		return nil, errors.New("CORS_ALLOWED_ORIGINS is empty")
	}

	return origins, nil
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) != "" {
		return strings.TrimSpace(val)
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal, fmt.Errorf("%s: %q is not an integer", key, raw)
	}
	return val, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return defaultVal, fmt.Errorf("%s: %q is not an integer", key, raw)
	}
	return val, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultVal, fmt.Errorf("%s: %q is not a number", key, raw)
	}
	return val, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultVal, fmt.Errorf("%s: %q is not a boolean", key, raw)
	}
	return val, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return defaultVal, fmt.Errorf("%s: %q is not a duration", key, raw)
	}
	return val, nil
}
