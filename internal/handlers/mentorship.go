package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/alumnet/alumnet/internal/auth"
	"github.com/alumnet/alumnet/internal/identity"
	"github.com/alumnet/alumnet/internal/logger"
	"github.com/alumnet/alumnet/internal/mentorship"
)

// MentorshipHandler serves the mentorship request actions.
type MentorshipHandler struct {
	service *mentorship.Service
	logger  *slog.Logger
}

// NewMentorshipHandler creates a MentorshipHandler.
func NewMentorshipHandler(log *slog.Logger, service *mentorship.Service) *MentorshipHandler {
	return &MentorshipHandler{
		service: service,
		logger:  logger.OrDefault(log).With(slog.String("handler", "mentorship")),
	}
}

// Register mounts the mentorship routes.
func (h *MentorshipHandler) Register(e *echo.Echo) {
	g := e.Group("/mentorship/requests")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/decision", h.Decide)
}

type createMentorshipRequest struct {
	AlumniID    string `json:"alumniId"`
	StudentName string `json:"studentName"`
	Message     string `json:"message"`
}

type decideMentorshipRequest struct {
	Accepted        bool   `json:"accepted"`
	ResponseMessage string `json:"responseMessage"`
}

type mentorshipListResponse struct {
	Items []mentorship.Request `json:"items"`
}

// Create opens a request from the acting student.
func (h *MentorshipHandler) Create(c echo.Context) error {
	actor, err := auth.RequireRole(c, identity.RoleStudent)
	if err != nil {
		return err
	}
	var req createMentorshipRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	created, err := h.service.Create(c.Request().Context(), mentorship.CreateInput{
		StudentID:   actor.UserID,
		StudentName: req.StudentName,
		AlumniID:    req.AlumniID,
		Message:     req.Message,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

// Decide accepts or rejects a request addressed to the acting alumni.
func (h *MentorshipHandler) Decide(c echo.Context) error {
	actor, err := auth.RequireRole(c, identity.RoleAlumni)
	if err != nil {
		return err
	}
	var req decideMentorshipRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	decided, err := h.service.Decide(c.Request().Context(), mentorship.DecideInput{
		RequestID:       c.Param("id"),
		AlumniID:        actor.UserID,
		Accepted:        req.Accepted,
		ResponseMessage: req.ResponseMessage,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, decided)
}

// Get returns a request visible to one of its parties or an admin.
func (h *MentorshipHandler) Get(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	req, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if actor.Role != identity.RoleAdmin && actor.UserID != req.StudentID && actor.UserID != req.AlumniID {
		return echo.NewHTTPError(http.StatusNotFound, mentorship.ErrRequestNotFound.Error())
	}
	return c.JSON(http.StatusOK, req)
}

// List returns the acting alumni's incoming requests (optionally ?status=)
// or the acting student's sent requests.
func (h *MentorshipHandler) List(c echo.Context) error {
	actor, err := auth.RequireRole(c, identity.RoleStudent, identity.RoleAlumni)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	var items []mentorship.Request
	if actor.Role == identity.RoleAlumni {
		items, err = h.service.ListForAlumni(ctx, actor.UserID, mentorship.Status(c.QueryParam("status")))
	} else {
		items, err = h.service.ListForStudent(ctx, actor.UserID)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, mentorshipListResponse{Items: items})
}
