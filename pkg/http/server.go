package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ModelArena/pkg/http/middleware"
	applogger "ModelArena/pkg/logger"
)

// Handler registers a group of routes.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// ServerOption configures Server.
type ServerOption func(*ServerConfig)

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string // empty disables CORS
	MetricsPath     string   // empty disables the scrape endpoint
	Registerer      prometheus.Registerer
	Gatherer        prometheus.Gatherer
}

// Server is the Echo HTTP server with the API middleware chain installed.
type Server struct {
	echo   *echo.Echo
	config *ServerConfig
	logger *applogger.Logger
}

// NewServer builds the Echo instance and registers every handler. Middleware
// order: request id, panic recovery, metrics, access log, CORS.
func NewServer(lgr *applogger.Logger, handlers []Handler, opts ...ServerOption) *Server {
	cfg := &ServerConfig{
		Host:            "0.0.0.0",
		Port:            3001,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		CORSOrigins:     []string{"*"},
		MetricsPath:     "/metrics",
		Registerer:      prometheus.DefaultRegisterer,
		Gatherer:        prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout
	e.Validator = NewValidator()
	e.HTTPErrorHandler = ErrorHandler(lgr)

	e.Use(echomw.RequestID())
	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			lgr.Error("http handler panic",
				applogger.String("path", c.Request().URL.Path),
				applogger.Error(err),
				applogger.String("stack", string(stack)))
			return err
		},
	}))
	e.Use(middleware.Metrics(cfg.Registerer, cfg.MetricsPath))
	e.Use(middleware.RequestLogging(lgr))
	if len(cfg.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	for _, h := range handlers {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
	if cfg.MetricsPath != "" {
		e.GET(cfg.MetricsPath, echo.WrapHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	return &Server{echo: e, config: cfg, logger: lgr}
}

// Start binds the listener synchronously, so address errors surface here,
// then serves in the background.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.echo.Listener = ln

	go func() {
		s.logger.Info("http server listening", applogger.String("addr", ln.Addr().String()))
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", applogger.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func WithHost(host string) ServerOption {
	return func(c *ServerConfig) { c.Host = host }
}

func WithPort(port int) ServerOption {
	return func(c *ServerConfig) { c.Port = port }
}

// WithTimeouts sets the read, write and shutdown timeouts.
func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.ReadTimeout = read
		c.WriteTimeout = write
		c.ShutdownTimeout = shutdown
	}
}

// WithCORS allows the given origins. No origins disables CORS.
func WithCORS(origins []string) ServerOption {
	return func(c *ServerConfig) { c.CORSOrigins = origins }
}

// WithMetrics sets the scrape path and the registry used for HTTP metrics.
// An empty path disables the endpoint.
func WithMetrics(path string, reg prometheus.Registerer, gatherer prometheus.Gatherer) ServerOption {
	return func(c *ServerConfig) {
		c.MetricsPath = path
		if reg != nil {
			c.Registerer = reg
		}
		if gatherer != nil {
			c.Gatherer = gatherer
		}
	}
}
