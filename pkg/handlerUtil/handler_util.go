package handlerUtil

import (
	"BodyMeasure/pkg/log"
	"BodyMeasure/pkg/response"
	"errors"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Handle maps err onto a JSON error response. Coded errors keep their status
// and reason; server-side failures are logged with a trace id that is also
// returned to the client.
func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		fields["code"] = respErr.Reason

		if respErr.Code >= fiber.StatusInternalServerError {
			traceID := log.ErrorWithTraceID(h.logger, fields, "Operation failed")
			return c.Status(respErr.Code).JSON(ErrorResponse{
				Error:   respErr.Error(),
				Code:    respErr.Reason,
				TraceID: traceID,
			})
		}

		h.logger.WithFields(fields).Warn("Operation rejected")
		return c.Status(respErr.Code).JSON(ErrorResponse{
			Error: err.Error(),
			Code:  respErr.Reason,
		})
	}

	traceID := log.ErrorWithTraceID(h.logger, fields, "Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "An unexpected error occurred",
		Code:    "INTERNAL_ERROR",
		TraceID: traceID,
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
