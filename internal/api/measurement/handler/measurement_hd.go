package measurementHandler

import (
	"BodyMeasure/internal/api/measurement"
	"BodyMeasure/internal/entity"
	contextPkg "BodyMeasure/pkg/context"
	"BodyMeasure/pkg/handlerUtil"
	"BodyMeasure/pkg/log"
	"BodyMeasure/pkg/utils"
	"errors"
	"fmt"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
)

var artifactFields = append([]string{measurement.FieldFile}, measurement.MultiViewFields...)

func (h *MeasurementHandler) Liveness(ctx *fiber.Ctx) error {
	return ctx.JSON(measurement.StatusResponse{
		Status: measurement.LivenessStatus,
	})
}

func (h *MeasurementHandler) Measure(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c := contextPkg.FromFiberCtx(ctx)

	errHandler := handlerUtil.New(h.log)

	form, err := ctx.MultipartForm()
	if err != nil {
		return errHandler.Handle(ctx, requestID, fmt.Errorf("%w: %v", measurement.ErrInvalidForm, err), ctx.Path(), "parse_multipart_form")
	}

	upload, err := h.collectArtifacts(form)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "collect_artifacts")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"artifacts":  len(upload.Artifacts),
	}).Debug("Processing measurement request")

	result, err := h.measurementService.Measure(c, upload)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "measure")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"estimator":  h.measurementService.EstimatorName(),
		"metrics":    len(result),
	}).Info("Measurement successful")

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
}

// collectArtifacts reads every recognized file field. Unknown fields are
// ignored; the field-set rules are applied by the service.
func (h *MeasurementHandler) collectArtifacts(form *multipart.Form) (entity.UploadSet, error) {
	upload := entity.UploadSet{Artifacts: make(map[string]entity.Artifact)}

	for _, field := range artifactFields {
		files := form.File[field]
		if len(files) == 0 {
			continue
		}
		if len(files) > 1 {
			return upload, fmt.Errorf("%w: %s carries %d files", measurement.ErrInvalidUploadShape, field, len(files))
		}

		data, err := h.utils.ReadUploadFile(files[0])
		if err != nil {
			return upload, artifactError(field, err)
		}

		upload.Artifacts[field] = entity.Artifact{
			Field:       field,
			Filename:    files[0].Filename,
			ContentType: files[0].Header.Get(fiber.HeaderContentType),
			Data:        data,
		}
	}

	return upload, nil
}

func artifactError(field string, err error) error {
	switch {
	case errors.Is(err, utils.ErrEmptyFile):
		return fmt.Errorf("%w: %s", measurement.ErrEmptyArtifact, field)
	case errors.Is(err, utils.ErrFileTooLarge):
		return fmt.Errorf("%w: %s", measurement.ErrFileTooLarge, field)
	case errors.Is(err, utils.ErrNoFile):
		return fmt.Errorf("%w: %s", measurement.ErrMissingArtifact, field)
	default:
		return fmt.Errorf("%w: %s: %v", measurement.ErrInvalidForm, field, err)
	}
}
