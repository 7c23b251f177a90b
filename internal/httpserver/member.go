package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/internal/models"
	"github.com/Skotchmaster/hostel_meals/internal/payment"
	"github.com/Skotchmaster/hostel_meals/internal/repo"
	"github.com/Skotchmaster/hostel_meals/internal/session"
	"github.com/Skotchmaster/hostel_meals/pkg/logging"
)

func mine(c echo.Context) url.Values {
	return url.Values{"email": {principal(c).Email}}
}

func (h *Handlers) myRequests(c echo.Context) viewSpec[models.ServeRequest] {
	return viewSpec[models.ServeRequest]{source: h.Serve, filter: mine(c), related: []string{repo.ResMeals}}
}

func (h *Handlers) myReviews(c echo.Context) viewSpec[models.Review] {
	return viewSpec[models.Review]{source: h.Reviews, filter: mine(c), related: []string{repo.ResMeals}}
}

func (h *Handlers) MyRequests(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "me.requests")
	return listView(c, l, h, h.myRequests(c))
}

func (h *Handlers) CancelRequest(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "me.cancel_request")
	id := c.Param("id")
	if err := h.Owned.Request(ctx, principal(c), id); err != nil {
		return fail(c, l, "cancel_request_failed", err)
	}
	return destroyView(c, l, h, h.myRequests(c), "Cancel this meal request?", collection.Mutation{
		Name:    "cancel request",
		Success: "Request cancelled",
		Call:    func(ctx context.Context) error { return h.Serve.Delete(ctx, id) },
	})
}

func (h *Handlers) MyReviews(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "me.reviews")
	return listView(c, l, h, h.myReviews(c))
}

func (h *Handlers) EditReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "me.edit_review")
	id := c.Param("id")

	var in models.ReviewInput
	if err := bindValid(c, &in); err != nil {
		return fail(c, l, "edit_review_failed", err)
	}
	if err := h.Owned.Review(ctx, principal(c), id); err != nil {
		return fail(c, l, "edit_review_failed", err)
	}
	return mutateView(c, l, h, h.myReviews(c), collection.Mutation{
		Name:    "update review",
		Success: "Review updated",
		Call:    func(ctx context.Context) error { return h.Reviews.Update(ctx, id, in) },
	})
}

func (h *Handlers) DeleteMyReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "me.delete_review")
	id := c.Param("id")
	if err := h.Owned.Review(ctx, principal(c), id); err != nil {
		return fail(c, l, "delete_review_failed", err)
	}
	return destroyView(c, l, h, h.myReviews(c), "Delete this review?", collection.Mutation{
		Name:    "delete review",
		Success: "Review deleted",
		Call:    func(ctx context.Context) error { return h.Reviews.Delete(ctx, id) },
	})
}

func (h *Handlers) MyPayments(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "me.payments")
	return listView(c, l, h, viewSpec[models.PaymentRecord]{source: h.Payments, filter: mine(c)})
}

type checkoutRequest struct {
	Tier models.Tier  `json:"badge"`
	Card payment.Card `json:"card"`
}

func (h *Handlers) Pay(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.pay")

	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, l, "checkout_failed", models.ErrInvalid)
	}
	sess := session.FromContext(ctx)
	receipt, err := h.Checkout.Run(ctx, sess, req.Tier, req.Card, collectorOf(c))
	switch {
	case errors.Is(err, payment.ErrUpgradePending):
		l.Error("checkout_upgrade_pending", "status", http.StatusAccepted, "error", err)
		return respond(c, http.StatusAccepted, echo.Map{"receipt": receipt, "pending": true, "user": sess.Principal()})
	case err != nil:
		return fail(c, l, "checkout_failed", err)
	}
	return respond(c, http.StatusOK, echo.Map{"receipt": receipt, "pending": false, "user": sess.Principal()})
}

func (h *Handlers) ListNotices(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "notices.list")

	recs, err := h.Notices.List(ctx, session.FromContext(ctx).ID)
	if err != nil {
		return fail(c, l, "list_notices_failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": recs})
}

func (h *Handlers) DismissNotice(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "notices.dismiss")

	if err := h.Notices.Dismiss(ctx, session.FromContext(ctx).ID, c.Param("id")); err != nil {
		return fail(c, l, "dismiss_notice_failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}
