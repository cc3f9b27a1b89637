// Package server provides the HTTP server and Echo setup for the realtime API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/alumnet/alumnet/internal/auth"
	"github.com/alumnet/alumnet/internal/config"
	"github.com/alumnet/alumnet/internal/handlers"
	"github.com/alumnet/alumnet/internal/logger"
)

// Server is the HTTP server (Echo) with actor middleware and registered handlers.
type Server struct {
	echo   *echo.Echo
	addr   string
	logger *slog.Logger
}

// Handler registers routes on the Echo instance.
type Handler interface {
	Register(e *echo.Echo)
}

// NewServer builds the Echo server with recovery, request logging, actor
// resolution, and the given handlers. The websocket endpoint authenticates
// in-band and bypasses actor resolution.
func NewServer(log *slog.Logger, addr, jwtSecret, wsPath string, routes ...Handler) *Server {
	log = logger.OrDefault(log)
	if addr == "" {
		addr = config.DefaultHTTPAddr
	}
	if wsPath == "" {
		wsPath = config.DefaultWSPath
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler(log)
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(maxBodySize))
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			reqLog := logger.FromContextOr(c.Request().Context(), nil)
			if reqLog == nil {
				reqLog = log.With(slog.String("request_id", v.RequestID))
			}
			reqLog.LogAttrs(c.Request().Context(), requestLevel(v.Status), "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", c.RealIP()),
			)
			return nil
		},
	}))
	e.Use(auth.Middleware(jwtSecret, func(c echo.Context) bool {
		path := c.Request().URL.Path
		if path == "/ping" || path == "/health" || path == "/metrics" || path == wsPath {
			return true
		}
		return strings.HasPrefix(path, wsPath+"/")
	}))
	e.Use(requestLogger(log))

	for _, h := range routes {
		if h != nil {
			h.Register(e)
		}
	}

	return &Server{
		echo:   e,
		addr:   addr,
		logger: log.With(slog.String("component", "server")),
	}
}

// requestLogger stores a logger tagged with the request id and, once resolved,
// the actor on the request context.
func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			attrs := []any{slog.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID))}
			if actor, err := auth.ActorFromContext(c); err == nil {
				attrs = append(attrs, slog.String("actor", actor.UserID), slog.String("role", actor.Role.String()))
			}
			req := c.Request()
			c.SetRequest(req.WithContext(logger.WithContext(req.Context(), log.With(attrs...))))
			return next(c)
		}
	}
}

// Workflow request bodies are short; anything larger is rejected before binding.
const maxBodySize = "64K"

func requestLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// Echo exposes the underlying instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server (blocks until shutdown).
func (s *Server) Start() error {
	s.logger.Info("listening", slog.String("addr", s.addr))
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server using the given context.
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
