package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// AppError is an error carrying the HTTP status and a stable machine code.
// Err is logged but never rendered.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// WithError attaches the underlying cause.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Field: field, Message: message, Status: status}
}

func NotFoundError(message string) *AppError {
	return NewAppError("ERR_NOT_FOUND", "", message, http.StatusNotFound)
}

func BadRequestError(message string) *AppError {
	return NewAppError("ERR_BAD_REQUEST", "", message, http.StatusBadRequest)
}

func ConflictError(message string) *AppError {
	return NewAppError("ERR_CONFLICT", "", message, http.StatusConflict)
}

func TooManyRequestsError(message string) *AppError {
	return NewAppError("ERR_RATE_LIMITED", "", message, http.StatusTooManyRequests)
}

func InternalError(message string) *AppError {
	return NewAppError("ERR_INTERNAL", "", message, http.StatusInternalServerError)
}

// asAppError maps any error onto an AppError. Echo routing errors keep their
// status; anything unknown becomes an opaque 500.
func asAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return NewAppError(statusCode(he.Code), "", msg, he.Code).WithError(err)
	}

	return InternalError("internal error").WithError(err)
}

func statusCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "ERR_NOT_FOUND"
	case http.StatusBadRequest:
		return "ERR_BAD_REQUEST"
	case http.StatusTooManyRequests:
		return "ERR_RATE_LIMITED"
	}
	text := strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	if text == "" {
		return fmt.Sprintf("ERR_HTTP_%d", status)
	}
	return "ERR_" + text
}
