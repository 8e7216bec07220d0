package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const unmatchedRoute = "unmatched"

// Metrics records request counts, latency and concurrency under the
// arena_http namespace. Requests that match no route share one label so
// scanners cannot blow up cardinality. skipPath (usually the scrape endpoint)
// is not recorded.
func Metrics(reg prometheus.Registerer, skipPath string) echo.MiddlewareFunc {
	f := promauto.With(reg)
	requests := f.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arena",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "code"})
	latency := f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "arena",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"route", "method"})
	inFlight := f.NewGauge(prometheus.GaugeOpts{
		Namespace: "arena",
		Subsystem: "http",
		Name:      "in_flight_requests",
		Help:      "Requests currently being served.",
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipPath != "" && c.Path() == skipPath {
				return next(c)
			}
			inFlight.Inc()
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			inFlight.Dec()

			route := c.Path()
			if route == "" || c.Response().Status == 404 && route == "/*" {
				route = unmatchedRoute
			}
			method := c.Request().Method
			requests.WithLabelValues(route, method, strconv.Itoa(c.Response().Status)).Inc()
			latency.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
