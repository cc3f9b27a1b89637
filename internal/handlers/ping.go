package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/alumnet/alumnet/internal/logger"
	"github.com/alumnet/alumnet/internal/presence"
)

// PingHandler serves /ping and HEAD /health for liveness.
type PingHandler struct {
	registry *presence.Registry
	logger   *slog.Logger
}

// NewPingHandler creates a ping handler. registry may be nil.
func NewPingHandler(log *slog.Logger, registry *presence.Registry) *PingHandler {
	return &PingHandler{
		registry: registry,
		logger:   logger.OrDefault(log).With(slog.String("handler", "ping")),
	}
}

// Register mounts GET /ping and HEAD /health on the Echo instance.
func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.HEAD("/health", h.PingHead)
}

type pingResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

// Ping returns 200 JSON with the live connection count.
func (h *PingHandler) Ping(c echo.Context) error {
	resp := pingResponse{Status: "ok"}
	if h.registry != nil {
		resp.Connections = h.registry.Count()
	}
	return c.JSON(http.StatusOK, resp)
}

// PingHead returns 200 No Content for health checks.
func (h *PingHandler) PingHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
