package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes prometheus collectors at /metrics.
type MetricsHandler struct {
	gatherer prometheus.Gatherer
}

func NewMetricsHandler(gatherer prometheus.Gatherer) *MetricsHandler {
	return &MetricsHandler{gatherer: gatherer}
}

func (h *MetricsHandler) Register(e *echo.Echo) {
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
}
