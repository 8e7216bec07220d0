package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	applogger "ModelArena/pkg/logger"
)

// Envelope is the body of every API response.
type Envelope struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

func DataResponse(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Envelope{Status: status, Message: http.StatusText(status), Data: data})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

func BadRequestResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

// AppErrorResponse renders err as a one-element error list with its status.
func AppErrorResponse(c echo.Context, err error) error {
	appErr := asAppError(err)
	return DataResponse(c, appErr.Status, []*AppError{appErr})
}

// ErrorHandler renders errors that escape handlers and middleware (unknown
// routes, panics) in the same envelope. 5xx causes are logged.
func ErrorHandler(lgr *applogger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		appErr := asAppError(err)
		if appErr.Status >= http.StatusInternalServerError {
			lgr.Error("request failed",
				applogger.String("method", c.Request().Method),
				applogger.String("path", c.Request().URL.Path),
				applogger.Error(err))
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(appErr.Status)
		} else {
			err = AppErrorResponse(c, appErr)
		}
		if err != nil {
			lgr.Warn("write error response", applogger.Error(err))
		}
	}
}
