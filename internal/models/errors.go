package models

import (
	"errors"
	"fmt"
)

// Error codes shared by the engine, the store adapters and the HTTP layer.
const (
	CodeContentRejected       = "CONTENT_REJECTED"
	CodeUploadFailed          = "UPLOAD_FAILED"
	CodeEmptyPost             = "EMPTY_POST"
	CodeUnauthenticated       = "UNAUTHENTICATED"
	CodeSelfFollow            = "SELF_FOLLOW_NOT_ALLOWED"
	CodeWriteFailed           = "WRITE_FAILED"
	CodeNotFound              = "NOT_FOUND"
	CodeModerationUnavailable = "MODERATION_UNAVAILABLE"
	CodeAuthCancelled         = "AUTH_CANCELLED"
	CodeForbidden             = "FORBIDDEN"
	CodeConflict              = "CONFLICT"
	CodeValidation            = "VALIDATION_ERROR"
	CodeUnsupportedMedia      = "UNSUPPORTED_MEDIA"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so wrapped errors still
// compare equal to the sentinels below.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrContentRejected       = &AppError{Code: CodeContentRejected, Message: "image was flagged as inappropriate"}
	ErrUploadFailed          = &AppError{Code: CodeUploadFailed, Message: "media upload failed"}
	ErrEmptyPost             = &AppError{Code: CodeEmptyPost, Message: "post needs text or media"}
	ErrUnauthenticated       = &AppError{Code: CodeUnauthenticated, Message: "sign in required"}
	ErrSelfFollow            = &AppError{Code: CodeSelfFollow, Message: "you cannot follow yourself"}
	ErrWriteFailed           = &AppError{Code: CodeWriteFailed, Message: "store write failed"}
	ErrNotFound              = &AppError{Code: CodeNotFound, Message: "not found"}
	ErrModerationUnavailable = &AppError{Code: CodeModerationUnavailable, Message: "moderation service unavailable"}
	ErrAuthCancelled         = &AppError{Code: CodeAuthCancelled, Message: "sign-in cancelled"}
	ErrForbidden             = &AppError{Code: CodeForbidden, Message: "not allowed"}
	ErrConflict              = &AppError{Code: CodeConflict, Message: "request already in flight"}
	ErrUnsupportedMedia      = &AppError{Code: CodeUnsupportedMedia, Message: "unsupported media type"}
)

// Wrap attaches a cause to one of the sentinel errors.
func Wrap(sentinel *AppError, err error) *AppError {
	return &AppError{Code: sentinel.Code, Message: sentinel.Message, Err: err}
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// CodeOf returns the AppError code in err's chain, or "" for foreign errors.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
