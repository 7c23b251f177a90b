package httpserver

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/internal/models"
	"github.com/Skotchmaster/hostel_meals/internal/repo"
	"github.com/Skotchmaster/hostel_meals/pkg/logging"
)

func (h *Handlers) usersView() viewSpec[models.User] {
	return viewSpec[models.User]{source: h.Users}
}

func (h *Handlers) mealsView() viewSpec[models.Meal] {
	return viewSpec[models.Meal]{source: h.Meals, sorts: mealSorts, related: []string{repo.ResReviews, repo.ResServeRequests}}
}

func (h *Handlers) reviewsView() viewSpec[models.Review] {
	return viewSpec[models.Review]{source: h.Reviews, sorts: mealSorts, related: []string{repo.ResMeals}}
}

func (h *Handlers) serveView() viewSpec[models.ServeRequest] {
	return viewSpec[models.ServeRequest]{source: h.Serve, related: []string{repo.ResMeals}}
}

func (h *Handlers) upcomingView() viewSpec[models.UpcomingMeal] {
	return viewSpec[models.UpcomingMeal]{source: h.Upcoming, sorts: upcomingSorts, related: []string{repo.ResMeals}}
}

func (h *Handlers) AdminUsers(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin.users")
	return listView(c, l, h, h.usersView())
}

func (h *Handlers) MakeAdmin(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin.make_admin")
	id := c.Param("id")
	return mutateView(c, l, h, h.usersView(), collection.Mutation{
		Name:    "make admin",
		Success: "User is now an admin",
		Call:    func(ctx context.Context) error { return h.Users.MakeAdmin(ctx, id) },
	})
}

func (h *Handlers) AdminMeals(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin.meals")
	return listView(c, l, h, h.mealsView())
}

func (h *Handlers) bindMeal(c echo.Context) (models.MealInput, error) {
	var in models.MealInput
	if err := c.Bind(&in); err != nil {
		return in, models.ErrInvalid
	}
	if in.Distributor.Email == "" {
		in.Distributor = principal(c).Person()
	}
	return in, models.Validate(&in)
}

func (h *Handlers) CreateMeal(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin.create_meal")
	in, err := h.bindMeal(c)
	if err != nil {
		return fail(c, l, "create_meal_failed", err)
	}
	return mutateView(c, l, h, h.mealsView(), collection.Mutation{
		Name:    "add meal",
		Success: "Meal added",
		Call: func(ctx context.Context) error {
			_, err := h.Meals.Create(ctx, in)
			return err
		},
	})
}

func (h *Handlers) UpdateMeal(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin.update_meal")
	id := c.Param("id")
	in, err := h.bindMeal(c)
	if err != nil {
		return fail(c, l, "update_meal_failed", err)
	}
	return mutateView(c, l, h, h.mealsView(), collection.Mutation{
		Name:    "update meal",
		Success: "Meal updated",
		Call:    func(ctx context.Context) error { return h.Meals.Update(ctx, id, in) },
	})
}

func (h *Handlers) DeleteMeal(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin.delete_meal")
	id := c.Param("id")
	return destroyView(c, l, h, h.mealsView(), "Delete this meal? This cannot be undone.", collection.Mutation{
		Name:    "delete meal",
		Success: "Meal deleted",
		Call:    func(ctx context.Context) error { return h.Meals.Delete(ctx, id) },
	})
}

func (h *Handlers) AdminReviews(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin.reviews")
	return listView(c, l, h, h.reviewsView())
}

func (h *Handlers) DeleteReview(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin.delete_review")
	id := c.Param("id")
	return destroyView(c, l, h, h.reviewsView(), "Delete this review?", collection.Mutation{
		Name:    "delete review",
		Success: "Review deleted",
		Call:    func(ctx context.Context) error { return h.Reviews.Delete(ctx, id) },
	})
}

func (h *Handlers) AdminServeRequests(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin.serve_requests")
	return listView(c, l, h, h.serveView())
}

func (h *Handlers) ServeMeal(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin.serve")
	id := c.Param("id")
	return mutateView(c, l, h, h.serveView(), collection.Mutation{
		Name:    "serve meal",
		Success: "Meal served",
		Call:    func(ctx context.Context) error { return h.Serve.Serve(ctx, id) },
	})
}

func (h *Handlers) AdminUpcoming(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin.upcoming")
	return listView(c, l, h, h.upcomingView())
}

func (h *Handlers) CreateUpcoming(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin.create_upcoming")
	in, err := h.bindMeal(c)
	if err != nil {
		return fail(c, l, "create_upcoming_failed", err)
	}
	return mutateView(c, l, h, h.upcomingView(), collection.Mutation{
		Name:    "add upcoming meal",
		Success: "Upcoming meal added",
		Call: func(ctx context.Context) error {
			_, err := h.Upcoming.Create(ctx, in)
			return err
		},
	})
}

func (h *Handlers) PublishUpcoming(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin.publish_upcoming")
	id := c.Param("id")
	return mutateView(c, l, h, h.upcomingView(), collection.Mutation{
		Name:    "publish meal",
		Success: "Meal published",
		Call:    func(ctx context.Context) error { return h.Upcoming.Publish(ctx, id) },
	})
}
