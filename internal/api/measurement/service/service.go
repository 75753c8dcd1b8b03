package measurementService

import (
	"BodyMeasure/internal/api/measurement"
	"BodyMeasure/internal/entity"
	"BodyMeasure/pkg/estimator"
	"context"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"time"
)

type IMeasurementService interface {
	Measure(ctx context.Context, upload entity.UploadSet) (measurement.MeasurementResult, error)
	EstimatorName() string
}

type Config struct {
	// Concurrency bounds estimator calls in flight across all requests.
	Concurrency int64
	// Timeout bounds one measurement, decoding and pool wait included.
	Timeout time.Duration
	// MaxPixels caps width*height of every uploaded image.
	MaxPixels int64
}

type measurementService struct {
	log       *logrus.Logger
	validator *validator.Validate
	estimator estimator.Estimator
	pool      *semaphore.Weighted
	timeout   time.Duration
	maxPixels int64
}

func NewMeasurementService(
	log *logrus.Logger,
	validate *validator.Validate,
	est estimator.Estimator,
	cfg Config,
) IMeasurementService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if validate == nil {
		validate = validator.New()
	}

	return &measurementService{
		log:       log,
		validator: validate,
		estimator: est,
		pool:      semaphore.NewWeighted(cfg.Concurrency),
		timeout:   cfg.Timeout,
		maxPixels: cfg.MaxPixels,
	}
}

func (s *measurementService) EstimatorName() string {
	return s.estimator.Name()
}
