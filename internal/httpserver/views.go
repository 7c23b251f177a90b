package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/internal/notice"
)

type viewSpec[T any] struct {
	source  collection.Source[T]
	sorts   []string
	filter  url.Values
	related []string
}

func openView[T any](c echo.Context, h *Handlers, spec viewSpec[T]) (*collection.View[T], error) {
	ctx := c.Request().Context()
	return collection.New(collection.Config[T]{
		Source:     spec.source,
		Cache:      h.Cache,
		PageSize:   h.PageSize,
		SortFields: spec.sorts,
		Related:    spec.related,
		Notifier:   notice.FromContext(ctx),
		Confirmer:  confirmer(c),
	}, collection.State{
		Sort:   c.QueryParam("sort"),
		Search: c.QueryParam("search"),
		Page:   pageParam(c),
		Filter: spec.filter,
	})
}

func failedEvent(m collection.Mutation) string {
	return strings.ReplaceAll(m.Name, " ", "_") + "_failed"
}

// listView serves one page of a collection.
func listView[T any](c echo.Context, l *slog.Logger, h *Handlers, spec viewSpec[T]) error {
	v, err := openView(c, h, spec)
	if err != nil {
		return fail(c, l, "list_failed", err)
	}
	page, err := v.Load(c.Request().Context())
	if err != nil {
		return fail(c, l, "list_failed", err)
	}
	return respondPage(c, page)
}

// mutateView runs m and answers with the refreshed page.
func mutateView[T any](c echo.Context, l *slog.Logger, h *Handlers, spec viewSpec[T], m collection.Mutation) error {
	ctx := c.Request().Context()
	v, err := openView(c, h, spec)
	if err != nil {
		return fail(c, l, failedEvent(m), err)
	}
	if err := v.Mutate(ctx, m); err != nil {
		return fail(c, l, failedEvent(m), err)
	}
	page, err := v.Load(ctx)
	if err != nil {
		return fail(c, l, "list_failed", err)
	}
	return respondPage(c, page)
}

// destroyView runs a destructive mutation behind the confirm parameter.
// Without an answer the prompt comes back as 409 and nothing is called; a
// declined prompt returns the page unchanged.
func destroyView[T any](c echo.Context, l *slog.Logger, h *Handlers, spec viewSpec[T], prompt string, m collection.Mutation) error {
	ctx := c.Request().Context()
	v, err := openView(c, h, spec)
	if err != nil {
		return fail(c, l, failedEvent(m), err)
	}

	err = v.Destroy(ctx, prompt, m)
	switch {
	case errors.Is(err, collection.ErrConfirmationRequired):
		l.Info("confirmation_requested", "status", http.StatusConflict, "mutation", m.Name)
		return respond(c, http.StatusConflict, echo.Map{"confirm": prompt})
	case errors.Is(err, collection.ErrCancelled):
		l.Info("mutation_cancelled", "mutation", m.Name)
	case err != nil:
		return fail(c, l, failedEvent(m), err)
	}

	page, err := v.Load(ctx)
	if err != nil {
		return fail(c, l, "list_failed", err)
	}
	return respondPage(c, page)
}
