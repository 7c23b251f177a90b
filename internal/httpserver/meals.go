package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/internal/models"
	"github.com/Skotchmaster/hostel_meals/internal/repo"
	"github.com/Skotchmaster/hostel_meals/internal/session"
	"github.com/Skotchmaster/hostel_meals/pkg/logging"
)

var (
	mealSorts     = []string{"likes", "reviews_count"}
	upcomingSorts = []string{"likes"}
)

// mealFilter reads the public catalogue filters: category and a price range.
func mealFilter(c echo.Context) (url.Values, error) {
	f := url.Values{}
	switch cat := c.QueryParam("category"); cat {
	case "":
	case "breakfast", "lunch", "dinner":
		f.Set("category", cat)
	default:
		return nil, fmt.Errorf("%w: unknown category %q", models.ErrInvalid, cat)
	}

	bounds := map[string]float64{}
	for _, k := range []string{"minPrice", "maxPrice"} {
		raw := c.QueryParam(k)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%w: %s must be a non-negative number", models.ErrInvalid, k)
		}
		bounds[k] = v
		f.Set(k, raw)
	}
	lo, hasLo := bounds["minPrice"]
	hi, hasHi := bounds["maxPrice"]
	if hasLo && hasHi && lo > hi {
		return nil, fmt.Errorf("%w: minPrice is above maxPrice", models.ErrInvalid)
	}
	return f, nil
}

func (h *Handlers) ListMeals(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "meals.list")
	filter, err := mealFilter(c)
	if err != nil {
		return fail(c, l, "list_meals_failed", err)
	}
	return listView(c, l, h, viewSpec[models.Meal]{source: h.Meals, sorts: mealSorts, filter: filter})
}

func (h *Handlers) mealResponse(c echo.Context, status int, id string) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "meals.get")

	meal, err := h.MealSvc.Meal(ctx, id)
	if err != nil {
		return fail(c, l, "get_meal_failed", err)
	}
	requested := false
	if s := session.FromContext(ctx); s != nil {
		requested = meal.RequestedBy(s.Email)
	}
	return respond(c, status, echo.Map{"meal": meal, "requested": requested})
}

func (h *Handlers) GetMeal(c echo.Context) error {
	return h.mealResponse(c, http.StatusOK, c.Param("id"))
}

func (h *Handlers) ListUpcoming(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "upcoming.list")
	return listView(c, l, h, viewSpec[models.UpcomingMeal]{source: h.Upcoming, sorts: upcomingSorts})
}

func (h *Handlers) ListPackages(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "packages.list")
	return listView(c, l, h, viewSpec[models.Package]{source: h.Packages})
}

func principal(c echo.Context) models.Principal {
	if s := session.FromContext(c.Request().Context()); s != nil {
		return s.Principal()
	}
	return models.Principal{}
}

func (h *Handlers) LikeMeal(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "meals.like")
	id := c.Param("id")

	if err := h.MealSvc.Like(ctx, principal(c), id, collectorOf(c)); err != nil {
		return fail(c, l, "like_meal_failed", err)
	}
	return h.mealResponse(c, http.StatusOK, id)
}

func (h *Handlers) RequestMeal(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "meals.request")
	id := c.Param("id")

	if err := h.MealSvc.Request(ctx, principal(c), id, collectorOf(c)); err != nil {
		return fail(c, l, "request_meal_failed", err)
	}
	return h.mealResponse(c, http.StatusCreated, id)
}

func (h *Handlers) ReviewMeal(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "meals.review")
	id := c.Param("id")

	var in models.ReviewInput
	if err := bindValid(c, &in); err != nil {
		return fail(c, l, "review_meal_failed", err)
	}
	if err := h.MealSvc.Review(ctx, principal(c), id, in, collectorOf(c)); err != nil {
		return fail(c, l, "review_meal_failed", err)
	}
	return h.mealResponse(c, http.StatusCreated, id)
}

func (h *Handlers) LikeUpcoming(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "upcoming.like")
	id := c.Param("id")

	if err := h.MealSvc.LikeUpcoming(ctx, principal(c), id, collectorOf(c)); err != nil {
		return fail(c, l, "like_upcoming_failed", err)
	}
	meal, err := collection.Item(ctx, h.Cache, repo.ResUpcoming, id, func(ctx context.Context) (models.UpcomingMeal, error) {
		return h.Upcoming.Get(ctx, id)
	})
	if err != nil {
		return fail(c, l, "like_upcoming_failed", err)
	}
	return respond(c, http.StatusOK, echo.Map{"meal": meal})
}
