package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/hostel_meals/internal/models"
	"github.com/Skotchmaster/hostel_meals/internal/query"
	"github.com/Skotchmaster/hostel_meals/internal/session"
	"github.com/Skotchmaster/hostel_meals/pkg/apiclient"
)

type fakeSessions struct {
	byToken  map[string]*session.Session
	upstream map[string]models.Role
	revoked  []string
	lookups  int
}

func (f *fakeSessions) Resolve(_ context.Context, token string) (*session.Session, error) {
	if s, ok := f.byToken[token]; ok {
		return s, nil
	}
	return nil, session.ErrNoSession
}

func (f *fakeSessions) RevokeAll(_ context.Context, s *session.Session) error {
	f.revoked = append(f.revoked, s.Email)
	return nil
}

func (f *fakeSessions) FreshRole(_ context.Context, s *session.Session) (models.Role, error) {
	f.lookups++
	return f.upstream[s.Email], nil
}

func setup() (*echo.Echo, *fakeSessions) {
	fs := &fakeSessions{
		byToken: map[string]*session.Session{
			"admin":   {Email: "admin@hostel.test", Role: models.RoleAdmin, IDToken: "tok-admin"},
			"user":    {Email: "user@hostel.test", Role: models.RoleUser, IDToken: "tok-user"},
			"demoted": {Email: "demoted@hostel.test", Role: models.RoleAdmin, IDToken: "tok-demoted"},
		},
		upstream: map[string]models.Role{
			"admin@hostel.test":   models.RoleAdmin,
			"user@hostel.test":    models.RoleUser,
			"demoted@hostel.test": models.RoleUser,
		},
	}
	g := &Guard{Sessions: fs, Cache: query.New()}

	e := echo.New()
	e.Use(g.Load)
	e.GET("/me", func(c echo.Context) error {
		return c.String(http.StatusOK, apiclient.TokenFromContext(c.Request().Context()))
	}, g.RequireLogin)
	e.GET("/admin/users", func(c echo.Context) error {
		return c.String(http.StatusOK, "admin content")
	}, g.RequireAdmin)
	return e, fs
}

func get(e *echo.Echo, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequireLogin(t *testing.T) {
	e, _ := setup()

	rec := get(e, "/me?tab=orders", "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?next=%2Fme%3Ftab%3Dorders", rec.Header().Get("Location"))

	rec = get(e, "/me", "user")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-user", rec.Body.String())
}

func TestLoad_UnknownCookieIsCleared(t *testing.T) {
	e, _ := setup()

	rec := get(e, "/me", "stale")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	require.NotEmpty(t, rec.Result().Cookies())
	assert.Equal(t, session.CookieName, rec.Result().Cookies()[0].Name)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		status   int
		location string
		revoked  bool
	}{
		{name: "anonymous", token: "", status: http.StatusSeeOther, location: "/login?next=%2Fadmin%2Fusers"},
		{name: "plain user", token: "user", status: http.StatusSeeOther, location: "/"},
		{name: "admin", token: "admin", status: http.StatusOK},
		{name: "role revoked upstream", token: "demoted", status: http.StatusSeeOther, location: "/", revoked: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, fs := setup()
			rec := get(e, "/admin/users", tt.token)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.location, rec.Header().Get("Location"))
			if tt.status != http.StatusOK {
				assert.NotContains(t, rec.Body.String(), "admin content")
			}
			assert.Equal(t, tt.revoked, len(fs.revoked) == 1)
		})
	}
}

func TestRequireAdmin_RoleCheckIsCached(t *testing.T) {
	e, fs := setup()
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, get(e, "/admin/users", "admin").Code)
	}
	assert.Equal(t, 1, fs.lookups)
}
