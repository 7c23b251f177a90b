package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/hostel_meals/internal/identity"
	"github.com/Skotchmaster/hostel_meals/internal/models"
	"github.com/Skotchmaster/hostel_meals/internal/session"
	"github.com/Skotchmaster/hostel_meals/pkg/logging"
)

type signUpRequest struct {
	Name     string `json:"name" validate:"required,max=80"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=128,containsany=ABCDEFGHIJKLMNOPQRSTUVWXYZ,containsany=abcdefghijklmnopqrstuvwxyz"`
	Photo    string `json:"photo" validate:"omitempty,url"`
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type federatedRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

func bindValid(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return models.ErrInvalid
	}
	return models.Validate(v)
}

func (h *Handlers) startSession(c echo.Context, acc *identity.Account) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.start_session")

	token, sess, err := h.Sessions.Init(ctx, acc)
	if err != nil {
		return fail(c, l, "session_start_failed", err)
	}
	c.SetCookie(session.Cookie(token, sess.ExpiresAt, h.CookieSecure))
	l.Info("sign_in_success", "uid", sess.UID)
	return respond(c, http.StatusOK, echo.Map{"user": sess.Principal()})
}

func (h *Handlers) SignUp(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.sign_up")

	var req signUpRequest
	if err := bindValid(c, &req); err != nil {
		return fail(c, l, "sign_up_failed", err)
	}
	acc, err := h.Identity.CreateAccount(ctx, req.Email, req.Password, req.Name, req.Photo)
	if err != nil {
		return fail(c, l, "sign_up_failed", err)
	}
	return h.startSession(c, acc)
}

func (h *Handlers) SignIn(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.sign_in")

	var req signInRequest
	if err := bindValid(c, &req); err != nil {
		return fail(c, l, "sign_in_failed", err)
	}
	acc, err := h.Identity.Login(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, l, "sign_in_failed", err)
	}
	return h.startSession(c, acc)
}

func (h *Handlers) SignInGoogle(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.sign_in_google")

	var req federatedRequest
	if err := bindValid(c, &req); err != nil {
		return fail(c, l, "sign_in_failed", err)
	}
	acc, err := h.Identity.LoginFederated(ctx, "google.com", req.IDToken)
	if err != nil {
		return fail(c, l, "sign_in_failed", err)
	}
	return h.startSession(c, acc)
}

func (h *Handlers) SignOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.sign_out")

	if err := h.Sessions.Teardown(ctx, session.FromContext(ctx)); err != nil {
		c.SetCookie(session.ClearCookie(h.CookieSecure))
		return fail(c, l, "sign_out_failed", err)
	}
	c.SetCookie(session.ClearCookie(h.CookieSecure))
	l.Info("sign_out_success")
	return respond(c, http.StatusOK, echo.Map{"user": nil})
}

func (h *Handlers) Me(c echo.Context) error {
	sess := session.FromContext(c.Request().Context())
	if sess == nil {
		return respond(c, http.StatusOK, echo.Map{"user": nil})
	}
	return respond(c, http.StatusOK, echo.Map{"user": sess.Principal()})
}
