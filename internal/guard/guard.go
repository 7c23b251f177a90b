// Package guard resolves the session cookie and gates routes by login and
// role.
package guard

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/internal/models"
	"github.com/Skotchmaster/hostel_meals/internal/query"
	"github.com/Skotchmaster/hostel_meals/internal/repo"
	"github.com/Skotchmaster/hostel_meals/internal/session"
	"github.com/Skotchmaster/hostel_meals/pkg/apiclient"
	"github.com/Skotchmaster/hostel_meals/pkg/logging"
)

const (
	LoginPath = "/login"
	HomePath  = "/"
)

type Sessions interface {
	Resolve(ctx context.Context, token string) (*session.Session, error)
	RevokeAll(ctx context.Context, sess *session.Session) error
	FreshRole(ctx context.Context, sess *session.Session) (models.Role, error)
}

type Guard struct {
	Sessions     Sessions
	Cache        *query.Cache
	CookieSecure bool
}

// Load puts the caller's session, if any, into the request context. It
// never rejects a request.
func (g *Guard) Load(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(session.CookieName)
		if err != nil || cookie.Value == "" {
			return next(c)
		}

		req := c.Request()
		ctx := req.Context()
		sess, err := g.Sessions.Resolve(ctx, cookie.Value)
		if err != nil {
			if !errors.Is(err, session.ErrNoSession) {
				logging.FromContext(ctx).Error("session_resolve_failed", "error", err)
			}
			c.SetCookie(session.ClearCookie(g.CookieSecure))
			return next(c)
		}

		l := logging.FromContext(ctx).With("uid", sess.UID)
		ctx = logging.IntoContext(ctx, l)
		ctx = session.IntoContext(ctx, sess)
		ctx = apiclient.WithToken(ctx, sess.IDToken)
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}

func loginRedirect(c echo.Context) error {
	target := LoginPath
	if c.Request().Method == http.MethodGet {
		target += "?next=" + url.QueryEscape(c.Request().URL.RequestURI())
	}
	return c.Redirect(http.StatusSeeOther, target)
}

// RequireLogin sends anonymous callers to the login page, remembering where
// they were going.
func (g *Guard) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if session.FromContext(c.Request().Context()) == nil {
			logging.FromContext(c.Request().Context()).Info("guard_redirect", "status", http.StatusSeeOther, "reason", "not signed in")
			return loginRedirect(c)
		}
		return next(c)
	}
}

// RequireAdmin lets admins through. Everyone else goes home without any
// admin content being written. The session's role is double-checked against
// the upstream; a session claiming admin that the upstream denies is signed
// out.
func (g *Guard) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		l := logging.FromContext(ctx).With("guard", "admin")

		sess := session.FromContext(ctx)
		if sess == nil {
			l.Info("guard_redirect", "status", http.StatusSeeOther, "reason", "not signed in")
			return loginRedirect(c)
		}
		if !sess.Principal().IsAdmin() {
			l.Warn("guard_redirect", "status", http.StatusSeeOther, "reason", "not an admin")
			return c.Redirect(http.StatusSeeOther, HomePath)
		}

		role, err := collection.Item(ctx, g.Cache, repo.ResUsers, "role:"+sess.Email, func(ctx context.Context) (models.Role, error) {
			return g.Sessions.FreshRole(ctx, sess)
		})
		if err != nil {
			l.Error("role_check_failed", "status", http.StatusBadGateway, "error", err)
			return echo.NewHTTPError(http.StatusBadGateway, "cannot verify role")
		}
		if role != models.RoleAdmin {
			l.Warn("guard_forced_signout", "status", http.StatusSeeOther, "reason", "role revoked upstream")
			if err := g.Sessions.RevokeAll(ctx, sess); err != nil {
				l.Error("forced_signout_failed", "error", err)
			}
			c.SetCookie(session.ClearCookie(g.CookieSecure))
			return c.Redirect(http.StatusSeeOther, HomePath)
		}
		return next(c)
	}
}
