package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
)

// Media pipeline sentinel errors. Every AppError produced by the constructors
// below wraps exactly one of these so callers can branch with errors.Is.
var (
	ErrValidation    = errors.New("validation failed")
	ErrDuplicate     = errors.New("duplicate asset")
	ErrCapacity      = errors.New("capacity exceeded")
	ErrBusy          = errors.New("asset busy")
	ErrRoleLimit     = errors.New("role limit reached")
	ErrUploadFailed  = errors.New("upload failed")
	ErrDeleteFailed  = errors.New("delete failed")
	ErrDecodeFailed  = errors.New("decode failed")
	ErrEncodeFailed  = errors.New("encode failed")
	ErrSessionClosed = errors.New("session closed")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// InvalidState creates a 409 error for an operation that is not legal in the
// current state of a state machine.
func InvalidState(message string) *AppError {
	return &AppError{
		Code:    "INVALID_STATE",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrInvalidState,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Validation creates a 400 error for a file rejected before admission
// (unsupported MIME type, oversize, empty payload).
func Validation(message string) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrValidation,
	}
}

// Duplicate creates a 409 error for a file whose name and size match an
// asset that is already present.
func Duplicate(name string, size int64) *AppError {
	return &AppError{
		Code:    "DUPLICATE",
		Message: fmt.Sprintf("file %q (%d bytes) was already added", name, size),
		Status:  http.StatusConflict,
		Err:     ErrDuplicate,
	}
}

// Capacity creates a 422 error reporting how many files were dropped because
// the list reached its maximum size.
func Capacity(dropped, maxAssets int) *AppError {
	return &AppError{
		Code:    "CAPACITY_EXCEEDED",
		Message: fmt.Sprintf("%d file(s) dropped: at most %d images are allowed", dropped, maxAssets),
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrCapacity,
	}
}

// Busy creates a 409 error for an operation refused while an asset has an
// upload in flight.
func Busy(message string) *AppError {
	return &AppError{
		Code:    "BUSY",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrBusy,
	}
}

// RoleLimit creates a 409 error for a role override that would exceed the
// role's cardinality.
func RoleLimit(role string, limit int) *AppError {
	return &AppError{
		Code:    "ROLE_LIMIT",
		Message: fmt.Sprintf("at most %d image(s) can have role %s", limit, role),
		Status:  http.StatusConflict,
		Err:     ErrRoleLimit,
	}
}

// Upload creates a 502 error wrapping a failed call to the asset store.
func Upload(cause error) *AppError {
	return &AppError{
		Code:    "UPLOAD_FAILED",
		Message: "asset upload failed",
		Status:  http.StatusBadGateway,
		Err:     fmt.Errorf("%w: %w", ErrUploadFailed, cause),
	}
}

// Delete creates a 502 error wrapping a failed delete call to the asset store.
func Delete(cause error) *AppError {
	return &AppError{
		Code:    "DELETE_FAILED",
		Message: "asset delete failed",
		Status:  http.StatusBadGateway,
		Err:     fmt.Errorf("%w: %w", ErrDeleteFailed, cause),
	}
}

// Decode creates a 422 error for source bytes that are not a decodable image.
func Decode(cause error) *AppError {
	return &AppError{
		Code:    "DECODE_ERROR",
		Message: "image could not be decoded",
		Status:  http.StatusUnprocessableEntity,
		Err:     fmt.Errorf("%w: %w", ErrDecodeFailed, cause),
	}
}

// Encode creates a 500 error for a raster that could not be serialized.
func Encode(cause error) *AppError {
	return &AppError{
		Code:    "ENCODE_ERROR",
		Message: "image could not be encoded",
		Status:  http.StatusInternalServerError,
		Err:     fmt.Errorf("%w: %w", ErrEncodeFailed, cause),
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrBusy), errors.Is(err, ErrDuplicate), errors.Is(err, ErrRoleLimit):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrCapacity), errors.Is(err, ErrDecodeFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUploadFailed), errors.Is(err, ErrDeleteFailed):
		return http.StatusBadGateway
	case errors.Is(err, ErrSessionClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
