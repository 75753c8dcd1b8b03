package config

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func NewFiber(logger *logrus.Logger, settings *Settings) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:               "Body Measure Server",
			BodyLimit:             int(settings.BodyLimit),
			DisableKeepalive:      false,
			StrictRouting:         true,
			CaseSensitive:         true,
			EnablePrintRoutes:     settings.AppEnv == "development",
			DisableStartupMessage: settings.AppEnv == "test",
			JSONEncoder:           jsoniter.Marshal,
			JSONDecoder:           jsoniter.Unmarshal,
			ErrorHandler:          newErrorHandler(logger),
		})

	return app
}

// newErrorHandler answers framework-level failures (unknown route, oversized
// body) with the same JSON error shape the handlers use.
func newErrorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "An unexpected error occurred"

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
			message = fiberErr.Message
		} else {
			logger.WithFields(logrus.Fields{
				"path":  ctx.Path(),
				"error": err.Error(),
			}).Error("Unhandled error")
		}

		return ctx.Status(code).JSON(fiber.Map{
			"error": message,
		})
	}
}
