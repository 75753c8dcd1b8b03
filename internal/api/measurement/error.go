package measurement

import (
	"BodyMeasure/pkg/response"
	"net/http"
)

var (
	ErrInvalidForm        = response.NewError(http.StatusBadRequest, "INVALID_FORM", "request is not a valid multipart form")
	ErrMissingArtifact    = response.NewError(http.StatusBadRequest, "MISSING_ARTIFACT", "required artifact is missing")
	ErrInvalidUploadShape = response.NewError(http.StatusBadRequest, "INVALID_UPLOAD_SHAPE", "upload does not match an accepted field set")
	ErrEmptyArtifact      = response.NewError(http.StatusBadRequest, "EMPTY_ARTIFACT", "artifact is empty")
	ErrFileTooLarge       = response.NewError(http.StatusBadRequest, "FILE_TOO_LARGE", "artifact exceeds the size limit")
	ErrInvalidFileType    = response.NewError(http.StatusBadRequest, "INVALID_FILE_TYPE", "artifact is not an image")
	ErrUndecodableImage   = response.NewError(http.StatusBadRequest, "UNDECODABLE_IMAGE", "image cannot be decoded")
	ErrProcessingFailed   = response.NewError(http.StatusInternalServerError, "PROCESSING_FAILED", "measurement failed")
	ErrProcessingTimeout  = response.NewError(http.StatusGatewayTimeout, "PROCESSING_TIMEOUT", "measurement timed out")
)
