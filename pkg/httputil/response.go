package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/EcommerceGo/mediapipeline/pkg/errors"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/logger"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/validator"
)

// Response is the standard JSON response envelope.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v as JSON with the given status code. Encoding errors are
// dropped because the headers are already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps data in the response envelope.
func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Response{Data: data})
}

// sentinelCodes maps bare sentinel errors to API codes for errors that did
// not arrive as an *AppError.
var sentinelCodes = []struct {
	err  error
	code string
}{
	{apperrors.ErrNotFound, "NOT_FOUND"},
	{apperrors.ErrInvalidInput, "INVALID_INPUT"},
	{apperrors.ErrInvalidState, "INVALID_STATE"},
	{apperrors.ErrConflict, "CONFLICT"},
	{apperrors.ErrValidation, "VALIDATION_ERROR"},
	{apperrors.ErrDuplicate, "DUPLICATE"},
	{apperrors.ErrCapacity, "CAPACITY_EXCEEDED"},
	{apperrors.ErrBusy, "BUSY"},
	{apperrors.ErrRoleLimit, "ROLE_LIMIT"},
	{apperrors.ErrUploadFailed, "UPLOAD_FAILED"},
	{apperrors.ErrDeleteFailed, "DELETE_FAILED"},
	{apperrors.ErrDecodeFailed, "DECODE_ERROR"},
	{apperrors.ErrEncodeFailed, "ENCODE_ERROR"},
	{apperrors.ErrSessionClosed, "SESSION_CLOSED"},
}

// WriteError writes a standardized error response. AppErrors keep their own
// code and message; bare sentinels are mapped through sentinelCodes; anything
// else is a logged 500. The request-scoped logger set by RequestLogger is
// preferred over fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	status := apperrors.HTTPStatus(err)
	code, message := "INTERNAL_ERROR", "an internal error occurred"

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code, message = appErr.Code, appErr.Message
	} else {
		for _, sc := range sentinelCodes {
			if errors.Is(err, sc.err) {
				code, message = sc.code, err.Error()
				break
			}
		}
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("code", code),
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{
		Error: &ErrorResponse{Code: code, Message: message, RequestID: requestID},
	})
}

// WriteValidationError writes a 400 with field-level details when err comes
// from the validator package.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "INVALID_INPUT",
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
		})
		return
	}

	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()},
	})
}

// ParseUUID validates a path parameter as a UUID. On failure it writes a 400
// with code INVALID_PARAMETER and returns false.
func ParseUUID(w http.ResponseWriter, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "INVALID_PARAMETER",
				Message: "invalid UUID: " + param,
			},
		})
		return uuid.Nil, false
	}
	return id, true
}
