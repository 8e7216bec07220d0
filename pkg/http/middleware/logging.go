package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "ModelArena/pkg/logger"
)

// RequestLogging logs each HTTP request at debug level, 4xx at warn and 5xx
// at error.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("route", routeOf(c)),
				applogger.String("remote", c.RealIP()),
				applogger.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				applogger.Int("status", status),
				applogger.Duration("duration_ms", time.Since(start)),
			}
			switch {
			case status >= 500:
				l.Error("http request failed", fields...)
			case status >= 400:
				l.Warn("http request rejected", fields...)
			default:
				l.Debug("http request", fields...)
			}
			return nil
		}
	}
}

func routeOf(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return c.Request().URL.Path
}
