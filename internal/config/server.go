package config

import (
	measurementHandler "BodyMeasure/internal/api/measurement/handler"
	measurementService "BodyMeasure/internal/api/measurement/service"
	"BodyMeasure/internal/middleware"
	"BodyMeasure/pkg/estimator"
	"BodyMeasure/pkg/utils"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"time"
)

type ServerOption func(*Server) error

type Server struct {
	engine     *fiber.App
	log        *logrus.Logger
	settings   *Settings
	middleware middleware.Middleware
	validator  *validator.Validate
	utils      utils.IUtils
	estimator  estimator.Estimator
	handlers   []handler
}

type handler interface {
	Start(srv fiber.Router)
}

type closer interface {
	Close()
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.settings == nil {
		return nil, fmt.Errorf("settings are required")
	}
	if server.middleware == nil {
		return nil, fmt.Errorf("middleware is required")
	}
	if server.estimator == nil {
		return nil, fmt.Errorf("estimator is required")
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithSettings(settings *Settings) ServerOption {
	return func(s *Server) error {
		s.settings = settings
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		if s.settings == nil {
			return fmt.Errorf("settings must be loaded before utils")
		}
		s.utils = utils.New(s.settings.UploadMaxSize)
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		if s.settings == nil {
			return fmt.Errorf("settings must be loaded before middleware")
		}
		if s.utils == nil {
			s.utils = utils.New(s.settings.UploadMaxSize)
		}

		s.middleware = middleware.New(s.log, s.utils, middleware.Config{
			RateLimit: rate.Limit(s.settings.RateLimitRPS),
			Burst:     s.settings.RateLimitBurst,
			CORS: middleware.CORSConfig{
				AllowedOrigins: s.settings.AllowedOrigins,
				AllowAll:       s.settings.AllowAllOrigins,
				MaxAge:         600,
			},
		})
		return nil
	}
}

// WithEstimator builds the estimator named by MODEL_BACKEND.
func WithEstimator() ServerOption {
	return func(s *Server) error {
		if s.settings == nil {
			return fmt.Errorf("settings must be loaded before estimator")
		}

		switch s.settings.ModelBackend {
		case ModelBackendRemote:
			s.estimator = estimator.NewRemote(estimator.RemoteConfig{
				URL:      s.settings.ModelWSURL,
				PoolSize: s.settings.ModelConcurrency,
			}, s.log)
		case ModelBackendReference:
			s.estimator = estimator.NewReference(s.settings.ModelLatency)
		default:
			return fmt.Errorf("unknown model backend %q", s.settings.ModelBackend)
		}

		if s.log != nil {
			s.log.Infof("Using %s estimator", s.estimator.Name())
		}
		return nil
	}
}

func WithCustomEstimator(est estimator.Estimator) ServerOption {
	return func(s *Server) error {
		s.estimator = est
		return nil
	}
}

func (s *Server) RegisterHandler() {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	s.engine.Use(s.middleware.NewOriginGuard())

	// Measurement
	measurementServices := measurementService.NewMeasurementService(s.log, s.validator, s.estimator, measurementService.Config{
		Concurrency: int64(s.settings.ModelConcurrency),
		Timeout:     s.settings.MeasureTimeout,
		MaxPixels:   s.settings.ImageMaxPixels,
	})
	measurementHandlers := measurementHandler.New(s.log, s.middleware, measurementServices, s.utils)

	s.handlers = append(s.handlers, measurementHandlers)

	for _, h := range s.handlers {
		h.Start(s.engine)
	}
}

func (s *Server) Run() error {
	return s.engine.Listen(s.settings.Address())
}

func (s *Server) Shutdown(timeout time.Duration) error {
	err := s.engine.ShutdownWithTimeout(timeout)

	if c, ok := s.estimator.(closer); ok {
		c.Close()
	}

	return err
}
