// Package server is the browser front end of the advisor.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/spigell/jobfit/internal/advisor"
	"github.com/spigell/jobfit/internal/session"
)

const (
	DefaultListen   = ":8080"
	shutdownTimeout = 10 * time.Second
	// multipart framing on top of the file itself
	bodyOverhead = 64 << 10
)

type Options struct {
	Listen         string
	MaxUploadBytes int64
}

type Server struct {
	echo    *echo.Echo
	advisor *advisor.Advisor
	store   *session.Store
	logger  *zap.Logger
	opts    Options
}

func New(logger *zap.Logger, adv *advisor.Advisor, store *session.Store, opts Options) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Listen == "" {
		opts.Listen = DefaultListen
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = advisor.DefaultMaxUploadBytes
	}

	renderer, err := newRenderer()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.Validator = &formValidator{validate: validator.New()}

	s := &Server{
		echo:    e,
		advisor: adv,
		store:   store,
		logger:  logger,
		opts:    opts,
	}

	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(requestLogger(s.logger))
	s.echo.Use(middleware.BodyLimit(fmt.Sprintf("%dK", (s.opts.MaxUploadBytes+bodyOverhead)/1024)))

	s.echo.GET("/health", s.health)

	app := s.echo.Group("", s.sessionMiddleware)
	app.GET("/", s.index)
	app.POST("/cv", s.uploadCV)
	app.POST("/job", s.loadJob)
	app.POST("/chat", s.chat)
	app.POST("/reset", s.reset)
	app.GET("/analyze/stream", s.analyzeStream)
}

// Handler exposes the HTTP handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting web server", zap.String("listen", s.opts.Listen))
		errCh <- s.echo.Start(s.opts.Listen)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down web server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown web server: %w", err)
	}

	return nil
}

type formValidator struct {
	validate *validator.Validate
}

func (v *formValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				logger.Warn("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Debug("request", fields...)
			return nil
		},
	})
}
