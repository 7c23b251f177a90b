// Package httpserver is the JSON surface the browser app talks to. Every
// list endpoint is a collection view addressed by sort, search and page
// query parameters.
package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Skotchmaster/hostel_meals/internal/guard"
	"github.com/Skotchmaster/hostel_meals/internal/identity"
	"github.com/Skotchmaster/hostel_meals/internal/live"
	"github.com/Skotchmaster/hostel_meals/internal/notice"
	"github.com/Skotchmaster/hostel_meals/internal/payment"
	"github.com/Skotchmaster/hostel_meals/internal/query"
	"github.com/Skotchmaster/hostel_meals/internal/repo"
	"github.com/Skotchmaster/hostel_meals/internal/service"
	"github.com/Skotchmaster/hostel_meals/internal/session"
	"github.com/Skotchmaster/hostel_meals/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/hostel_meals/pkg/middleware/logging"
)

type Handlers struct {
	Cache    *query.Cache
	Meals    *repo.Meals
	Upcoming *repo.Upcoming
	Users    *repo.Users
	Reviews  *repo.Reviews
	Serve    *repo.ServeRequests
	Packages *repo.Packages
	Payments *repo.Payments

	MealSvc  *service.MealService
	Owned    *service.Owned
	Checkout *payment.Checkout
	Sessions *session.Manager
	Identity identity.Provider
	Notices  *notice.Store

	CookieSecure bool
	// PageSize is the number of rows per list page; zero means the default.
	PageSize int
}

type Deps struct {
	Handlers *Handlers
	Guard    *guard.Guard
	Live     *live.Hub
	Logger   *slog.Logger

	AllowedOrigins []string
	// Ready reports whether dependencies are reachable.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	h := d.Handlers

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(loggingmw.RequestLogger(d.Logger))
	e.Use(middleware.Secure())

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error()})
			}
		}
		return c.NoContent(http.StatusOK)
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/live", d.Live.Serve)

	var mws []echo.MiddlewareFunc
	if len(d.AllowedOrigins) > 0 {
		mws = append(mws, middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     d.AllowedOrigins,
			AllowCredentials: true,
			AllowHeaders:     []string{echo.HeaderContentType, "X-CSRF-Token"},
			ExposeHeaders:    []string{"X-CSRF-Token"},
		}))
	}
	mws = append(mws,
		csrf.Middleware(csrf.Config{Secure: h.CookieSecure, AllowedOrigins: d.AllowedOrigins}),
		d.Guard.Load,
		h.collectNotices,
	)
	api := e.Group("/api/v1", mws...)

	auth := api.Group("/auth")
	auth.POST("/register", h.SignUp)
	auth.POST("/login", h.SignIn)
	auth.POST("/google", h.SignInGoogle)
	auth.POST("/logout", h.SignOut)
	auth.GET("/me", h.Me)

	api.GET("/meals", h.ListMeals)
	api.GET("/meals/:id", h.GetMeal)
	api.GET("/upcoming-meals", h.ListUpcoming)
	api.GET("/packages", h.ListPackages)

	member := api.Group("", d.Guard.RequireLogin)
	member.POST("/meals/:id/like", h.LikeMeal)
	member.POST("/meals/:id/request", h.RequestMeal)
	member.POST("/meals/:id/reviews", h.ReviewMeal)
	member.POST("/upcoming-meals/:id/like", h.LikeUpcoming)
	member.GET("/me/requests", h.MyRequests)
	member.DELETE("/me/requests/:id", h.CancelRequest)
	member.GET("/me/reviews", h.MyReviews)
	member.PATCH("/me/reviews/:id", h.EditReview)
	member.DELETE("/me/reviews/:id", h.DeleteMyReview)
	member.GET("/me/payments", h.MyPayments)
	member.POST("/checkout", h.Pay)
	member.GET("/notices", h.ListNotices)
	member.DELETE("/notices/:id", h.DismissNotice)

	admin := api.Group("/admin", d.Guard.RequireAdmin)
	admin.GET("/users", h.AdminUsers)
	admin.POST("/users/:id/make-admin", h.MakeAdmin)
	admin.GET("/meals", h.AdminMeals)
	admin.POST("/meals", h.CreateMeal)
	admin.PATCH("/meals/:id", h.UpdateMeal)
	admin.DELETE("/meals/:id", h.DeleteMeal)
	admin.GET("/reviews", h.AdminReviews)
	admin.DELETE("/reviews/:id", h.DeleteReview)
	admin.GET("/serve-requests", h.AdminServeRequests)
	admin.POST("/serve-requests/:id/serve", h.ServeMeal)
	admin.GET("/upcoming-meals", h.AdminUpcoming)
	admin.POST("/upcoming-meals", h.CreateUpcoming)
	admin.POST("/upcoming-meals/:id/publish", h.PublishUpcoming)
}

// collectNotices gives each request a notice collector bound to the
// caller's session.
func (h *Handlers) collectNotices(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		sid := ""
		if s := session.FromContext(req.Context()); s != nil {
			sid = s.ID
		}
		col := notice.NewCollector(h.Notices, sid)
		c.SetRequest(req.WithContext(notice.IntoContext(req.Context(), col)))
		return next(c)
	}
}
