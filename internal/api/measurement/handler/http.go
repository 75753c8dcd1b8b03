package measurementHandler

import (
	measurementService "BodyMeasure/internal/api/measurement/service"
	"BodyMeasure/internal/middleware"
	"BodyMeasure/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type MeasurementHandler struct {
	log                *logrus.Logger
	middleware         middleware.Middleware
	measurementService measurementService.IMeasurementService
	utils              utils.IUtils
}

func New(
	log *logrus.Logger,
	middleware middleware.Middleware,
	ms measurementService.IMeasurementService,
	utils utils.IUtils,
) *MeasurementHandler {
	return &MeasurementHandler{
		log:                log,
		middleware:         middleware,
		measurementService: ms,
		utils:              utils,
	}
}

func (h *MeasurementHandler) Start(srv fiber.Router) {
	srv.Get("/", h.Liveness)
	srv.Post("/measure", h.middleware.NewRateLimiter, h.Measure)
}
