package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/labstack/echo/v4"
)

var statusByCode = map[string]int{
	models.CodeContentRejected:       http.StatusUnprocessableEntity,
	models.CodeUploadFailed:          http.StatusBadGateway,
	models.CodeEmptyPost:             http.StatusBadRequest,
	models.CodeUnauthenticated:       http.StatusUnauthorized,
	models.CodeSelfFollow:            http.StatusBadRequest,
	models.CodeWriteFailed:           http.StatusServiceUnavailable,
	models.CodeNotFound:              http.StatusNotFound,
	models.CodeModerationUnavailable: http.StatusServiceUnavailable,
	models.CodeAuthCancelled:         http.StatusBadRequest,
	models.CodeForbidden:             http.StatusForbidden,
	models.CodeConflict:              http.StatusConflict,
	models.CodeValidation:            http.StatusBadRequest,
	models.CodeUnsupportedMedia:      http.StatusUnsupportedMediaType,
}

// toHTTPError maps an engine error to an *echo.HTTPError with a standard body.
func toHTTPError(err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return echo.NewHTTPError(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"}).SetInternal(err)
	}
	status, ok := statusByCode[appErr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return echo.NewHTTPError(status, models.ErrorResponse{
		Error: appErr.Message,
		Code:  appErr.Code,
	}).SetInternal(err)
}
