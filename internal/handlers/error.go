package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/alumnet/alumnet/internal/identity"
	"github.com/alumnet/alumnet/internal/logger"
	"github.com/alumnet/alumnet/internal/mentorship"
	"github.com/alumnet/alumnet/internal/postings"
	"github.com/alumnet/alumnet/internal/verification"
)

// ErrorResponse is the standard API error body (message only).
type ErrorResponse struct {
	Message string `json:"message"`
}

// ErrorHandler renders every failed request as an ErrorResponse. Errors that
// map to a 5xx are logged with the request's logger.
func ErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	log = logger.OrDefault(log)
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		he := httpError(err)
		if he.Code >= http.StatusInternalServerError {
			logger.FromContextOr(c.Request().Context(), log).Error("request failed",
				slog.Int("status", he.Code), slog.Any("error", err))
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(he.Code)
		} else {
			writeErr = c.JSON(he.Code, ErrorResponse{Message: errorMessage(he)})
		}
		if writeErr != nil {
			log.Warn("write error response failed", slog.Any("error", writeErr))
		}
	}
}

func errorMessage(he *echo.HTTPError) string {
	if msg, ok := he.Message.(string); ok {
		return msg
	}
	return fmt.Sprint(he.Message)
}

// httpError maps service errors to HTTP status codes.
func httpError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	switch {
	case errors.Is(err, mentorship.ErrRequestNotFound),
		errors.Is(err, verification.ErrRequestNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, mentorship.ErrInvalidTransition),
		errors.Is(err, mentorship.ErrDuplicateDecision),
		errors.Is(err, mentorship.ErrPendingRequestExists),
		errors.Is(err, verification.ErrInvalidTransition),
		errors.Is(err, verification.ErrDuplicateDecision):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, mentorship.ErrInvalidInput),
		errors.Is(err, verification.ErrInvalidInput),
		errors.Is(err, postings.ErrInvalidInput),
		errors.Is(err, identity.ErrInvalidUserID),
		errors.Is(err, identity.ErrInvalidRole):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}

func bindBody(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}
