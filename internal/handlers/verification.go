package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/alumnet/alumnet/internal/auth"
	"github.com/alumnet/alumnet/internal/identity"
	"github.com/alumnet/alumnet/internal/logger"
	"github.com/alumnet/alumnet/internal/verification"
)

// VerificationHandler serves alumni verification submission and admin review.
type VerificationHandler struct {
	service *verification.Service
	logger  *slog.Logger
}

// NewVerificationHandler creates a VerificationHandler.
func NewVerificationHandler(log *slog.Logger, service *verification.Service) *VerificationHandler {
	return &VerificationHandler{
		service: service,
		logger:  logger.OrDefault(log).With(slog.String("handler", "verification")),
	}
}

// Register mounts the verification routes.
func (h *VerificationHandler) Register(e *echo.Echo) {
	g := e.Group("/verifications")
	g.POST("", h.Submit)
	g.GET("/pending", h.ListPending)
	g.POST("/bulk-decision", h.BulkDecide)
	g.GET("/:alumni_id", h.Get)
	g.POST("/:alumni_id/decision", h.Decide)
}

type submitVerificationRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type decideVerificationRequest struct {
	Approved bool `json:"approved"`
}

type bulkDecideRequest struct {
	AlumniIDs []string `json:"alumniIds"`
	Approved  bool     `json:"approved"`
}

type verificationListResponse struct {
	Items []verification.Record `json:"items"`
}

// Submit records the acting alumni's profile for review.
func (h *VerificationHandler) Submit(c echo.Context) error {
	actor, err := auth.RequireRole(c, identity.RoleAlumni)
	if err != nil {
		return err
	}
	var req submitVerificationRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	rec, err := h.service.Submit(c.Request().Context(), verification.SubmitInput{
		AlumniID: actor.UserID,
		Name:     req.Name,
		Email:    req.Email,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, rec)
}

// Decide approves or rejects one alumni.
func (h *VerificationHandler) Decide(c echo.Context) error {
	actor, err := auth.RequireRole(c, identity.RoleAdmin)
	if err != nil {
		return err
	}
	var req decideVerificationRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	rec, err := h.service.Decide(c.Request().Context(), c.Param("alumni_id"), req.Approved, actor.UserID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// BulkDecide applies one decision to many alumni; skipped ids are reported, not failed.
func (h *VerificationHandler) BulkDecide(c echo.Context) error {
	actor, err := auth.RequireRole(c, identity.RoleAdmin)
	if err != nil {
		return err
	}
	var req bulkDecideRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	result, err := h.service.BulkDecide(c.Request().Context(), req.AlumniIDs, req.Approved, actor.UserID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *VerificationHandler) ListPending(c echo.Context) error {
	if _, err := auth.RequireRole(c, identity.RoleAdmin); err != nil {
		return err
	}
	items, err := h.service.ListPending(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, verificationListResponse{Items: items})
}

// Get returns a record to its alumni or to an admin.
func (h *VerificationHandler) Get(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	alumniID := c.Param("alumni_id")
	if actor.Role != identity.RoleAdmin && actor.UserID != alumniID {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed")
	}
	rec, err := h.service.Get(c.Request().Context(), alumniID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}
