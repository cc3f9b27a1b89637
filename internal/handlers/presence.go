package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/alumnet/alumnet/internal/auth"
	"github.com/alumnet/alumnet/internal/identity"
	"github.com/alumnet/alumnet/internal/logger"
	"github.com/alumnet/alumnet/internal/presence"
)

// PresenceHandler answers who is currently connected.
type PresenceHandler struct {
	registry *presence.Registry
	logger   *slog.Logger
}

func NewPresenceHandler(log *slog.Logger, registry *presence.Registry) *PresenceHandler {
	return &PresenceHandler{
		registry: registry,
		logger:   logger.OrDefault(log).With(slog.String("handler", "presence")),
	}
}

func (h *PresenceHandler) Register(e *echo.Echo) {
	e.GET("/presence/online/:user_id", h.Online)
	e.GET("/presence/stats", h.Stats)
}

type onlineResponse struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

type presenceStatsResponse struct {
	Connections int            `json:"connections"`
	Bound       int            `json:"bound"`
	Roles       map[string]int `json:"roles"`
}

// Online reports whether the user has at least one authenticated connection.
func (h *PresenceHandler) Online(c echo.Context) error {
	if _, err := auth.ActorFromContext(c); err != nil {
		return err
	}
	userID := c.Param("user_id")
	if err := identity.ValidateUserID(userID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, onlineResponse{UserID: userID, Online: h.registry.Online(userID)})
}

// Stats summarizes live connections per role; admins only.
func (h *PresenceHandler) Stats(c echo.Context) error {
	if _, err := auth.RequireRole(c, identity.RoleAdmin); err != nil {
		return err
	}
	resp := presenceStatsResponse{Roles: map[string]int{}}
	for _, role := range identity.Roles {
		resp.Roles[role.String()] = 0
	}
	for _, conn := range h.registry.Connections() {
		resp.Connections++
		if conn.Bound() {
			resp.Bound++
			resp.Roles[conn.Identity.Role.String()]++
		}
	}
	return c.JSON(http.StatusOK, resp)
}
