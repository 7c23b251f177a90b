package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/internal/identity"
	"github.com/Skotchmaster/hostel_meals/internal/models"
	"github.com/Skotchmaster/hostel_meals/internal/notice"
	"github.com/Skotchmaster/hostel_meals/internal/repo"
	"github.com/Skotchmaster/hostel_meals/internal/service"
	"github.com/Skotchmaster/hostel_meals/pkg/apiclient"
)

type pageResponse[T any] struct {
	collection.Page[T]
	Notices []collection.Notice `json:"notices"`
}

func collectorOf(c echo.Context) *notice.Collector {
	return notice.FromContext(c.Request().Context())
}

func notices(c echo.Context) []collection.Notice {
	return notice.FromContext(c.Request().Context()).Notices()
}

func respondPage[T any](c echo.Context, page collection.Page[T]) error {
	return c.JSON(http.StatusOK, pageResponse[T]{Page: page, Notices: notices(c)})
}

func respond(c echo.Context, status int, body echo.Map) error {
	if body == nil {
		body = echo.Map{}
	}
	body["notices"] = notices(c)
	return c.JSON(status, body)
}

const upstreamFailed = "the meal service failed, try again"

// upstreamFault reports failures of the upstream itself: unreachable,
// undecodable or schema-invalid responses and unacknowledged writes.
func upstreamFault(err error) bool {
	return errors.Is(err, apiclient.ErrUnreachable) ||
		errors.Is(err, apiclient.ErrBadResponse) ||
		errors.Is(err, repo.ErrBadPayload) ||
		errors.Is(err, repo.ErrNotAcknowledged)
}

// classify maps an error to a status and a message safe to show the user.
func classify(err error) (int, string) {
	switch {
	case upstreamFault(err):
		return http.StatusBadGateway, upstreamFailed
	case errors.Is(err, models.ErrInvalid), errors.Is(err, collection.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, identity.ErrWeakPassword):
		return http.StatusBadRequest, "password too weak"
	case errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, identity.ErrEmailExists):
		return http.StatusConflict, "email already registered"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, notice.ErrNotFound):
		return http.StatusNotFound, "not found"
	}

	switch apiclient.StatusOf(err) {
	case 0:
	case http.StatusUnauthorized:
		return http.StatusUnauthorized, "please sign in again"
	case http.StatusForbidden:
		return http.StatusForbidden, "not allowed"
	default:
		return http.StatusBadGateway, upstreamFailed
	}
	return http.StatusInternalServerError, "internal error"
}

// fail logs err and turns it into an HTTP error carrying the request's
// notices. Upstream failures get an error notice when none was raised yet.
func fail(c echo.Context, l *slog.Logger, event string, err error) error {
	code, msg := classify(err)
	ctx := c.Request().Context()
	col := notice.FromContext(ctx)

	if code == http.StatusBadGateway && len(col.Notices()) == 0 {
		col.Notify(ctx, collection.Notice{Level: collection.LevelError, Title: "Something went wrong", Message: msg})
	}
	if code >= 500 {
		l.Error(event, "status", code, "reason", msg, "error", err)
	} else {
		l.Warn(event, "status", code, "reason", msg, "error", err)
	}
	return echo.NewHTTPError(code, echo.Map{"message": msg, "notices": col.Notices()})
}

func pageParam(c echo.Context) int {
	n, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// confirmer answers from the confirm query parameter; without one the
// caller is asked first.
func confirmer(c echo.Context) collection.Confirmer {
	answer := c.QueryParam("confirm")
	return collection.ConfirmFunc(func(_ context.Context, _ string) (bool, error) {
		switch answer {
		case "yes", "true":
			return true, nil
		case "no", "false":
			return false, nil
		}
		return false, collection.ErrConfirmationRequired
	})
}
