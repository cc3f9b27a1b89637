package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/alumnet/alumnet/internal/auth"
	"github.com/alumnet/alumnet/internal/identity"
	"github.com/alumnet/alumnet/internal/logger"
	"github.com/alumnet/alumnet/internal/postings"
)

// PostingsHandler serves job and event postings.
type PostingsHandler struct {
	service *postings.Service
	logger  *slog.Logger
}

func NewPostingsHandler(log *slog.Logger, service *postings.Service) *PostingsHandler {
	return &PostingsHandler{
		service: service,
		logger:  logger.OrDefault(log).With(slog.String("handler", "postings")),
	}
}

func (h *PostingsHandler) Register(e *echo.Echo) {
	e.POST("/jobs", h.PostJob)
	e.POST("/events", h.CreateEvent)
	e.GET("/postings", h.List)
}

type postJobRequest struct {
	Title    string `json:"title"`
	Company  string `json:"company"`
	Location string `json:"location"`
}

type createEventRequest struct {
	Title    string    `json:"title"`
	Location string    `json:"location"`
	StartsAt time.Time `json:"startsAt"`
}

type postingListResponse struct {
	Items []postings.Posting `json:"items"`
}

// PostJob publishes a job on behalf of an alumni or admin.
func (h *PostingsHandler) PostJob(c echo.Context) error {
	actor, err := auth.RequireRole(c, identity.RoleAlumni, identity.RoleAdmin)
	if err != nil {
		return err
	}
	var req postJobRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	p, err := h.service.PostJob(c.Request().Context(), postings.JobInput{
		Title:    req.Title,
		Company:  req.Company,
		Location: req.Location,
		PostedBy: actor.UserID,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

// CreateEvent publishes an event; admins only.
func (h *PostingsHandler) CreateEvent(c echo.Context) error {
	actor, err := auth.RequireRole(c, identity.RoleAdmin)
	if err != nil {
		return err
	}
	var req createEventRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	p, err := h.service.CreateEvent(c.Request().Context(), postings.EventInput{
		Title:     req.Title,
		Location:  req.Location,
		StartsAt:  req.StartsAt,
		CreatedBy: actor.UserID,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *PostingsHandler) List(c echo.Context) error {
	if _, err := auth.ActorFromContext(c); err != nil {
		return err
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
		}
		limit = n
	}
	items, err := h.service.List(c.Request().Context(), postings.Kind(c.QueryParam("kind")), limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, postingListResponse{Items: items})
}
