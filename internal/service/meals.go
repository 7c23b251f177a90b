package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/internal/models"
	"github.com/Skotchmaster/hostel_meals/internal/query"
	"github.com/Skotchmaster/hostel_meals/internal/repo"
	"github.com/Skotchmaster/hostel_meals/pkg/logging"
)

// MealService applies the member rules on top of the meal resources.
// Every write goes through collection.Apply, so success invalidates the
// cached views and failure leaves them alone.
type MealService struct {
	Meals    *repo.Meals
	Upcoming *repo.Upcoming
	Cache    *query.Cache
}

func (s *MealService) Meal(ctx context.Context, id string) (models.Meal, error) {
	return collection.Item(ctx, s.Cache, repo.ResMeals, id, func(ctx context.Context) (models.Meal, error) {
		return s.Meals.Get(ctx, id)
	})
}

func premium(p models.Principal, action string) error {
	if !p.Tier.Premium() {
		return fmt.Errorf("%w: %s needs a paid membership, current tier is %s", ErrForbidden, action, p.Tier)
	}
	return nil
}

// Like sends the like, waits for the upstream ack and only then lets the
// views refetch the authoritative count.
func (s *MealService) Like(ctx context.Context, p models.Principal, id string, n collection.Notifier) error {
	if err := premium(p, "liking a meal"); err != nil {
		return err
	}
	return collection.Apply(ctx, s.Cache, n, []string{repo.ResMeals}, collection.Mutation{
		Name:    "like meal",
		Success: "Thanks for the like",
		Call:    func(ctx context.Context) error { return s.Meals.Like(ctx, id, p.Email) },
	})
}

// Request asks for a meal to be served. A member may request a meal once;
// a repeat is refused before any upstream call.
func (s *MealService) Request(ctx context.Context, p models.Principal, id string, n collection.Notifier) error {
	l := logging.FromContext(ctx).With("service", "meals.request", "meal_id", id)
	if err := premium(p, "requesting a meal"); err != nil {
		return err
	}

	meal, err := s.Meal(ctx, id)
	if err != nil {
		return err
	}
	if meal.RequestedBy(p.Email) {
		l.Info("meal_request_refused", "reason", "already requested")
		return fmt.Errorf("%w: you already requested %s", ErrConflict, meal.Title)
	}

	req := models.MealRequest{UserEmail: p.Email, UserName: p.Name, Status: models.RequestPending}
	return collection.Apply(ctx, s.Cache, n, []string{repo.ResMeals, repo.ResServeRequests}, collection.Mutation{
		Name:    "request meal",
		Success: "Meal requested",
		Call:    func(ctx context.Context) error { return s.Meals.Request(ctx, id, req) },
	})
}

func (s *MealService) Review(ctx context.Context, p models.Principal, id string, in models.ReviewInput, n collection.Notifier) error {
	if err := models.Validate(&in); err != nil {
		return err
	}
	return collection.Apply(ctx, s.Cache, n, []string{repo.ResMeals, repo.ResReviews}, collection.Mutation{
		Name:    "post review",
		Success: "Review posted",
		Call:    func(ctx context.Context) error { return s.Meals.Review(ctx, id, p.Person(), in) },
	})
}

// LikeUpcoming likes an upcoming meal once per member.
func (s *MealService) LikeUpcoming(ctx context.Context, p models.Principal, id string, n collection.Notifier) error {
	if err := premium(p, "liking an upcoming meal"); err != nil {
		return err
	}
	meal, err := collection.Item(ctx, s.Cache, repo.ResUpcoming, id, func(ctx context.Context) (models.UpcomingMeal, error) {
		return s.Upcoming.Get(ctx, id)
	})
	if err != nil {
		return err
	}
	if slices.Contains(meal.LikedBy, p.Email) {
		return fmt.Errorf("%w: you already liked %s", ErrConflict, meal.Title)
	}
	return collection.Apply(ctx, s.Cache, n, []string{repo.ResUpcoming}, collection.Mutation{
		Name:    "like upcoming meal",
		Success: "Thanks for the like",
		Call:    func(ctx context.Context) error { return s.Upcoming.Like(ctx, id, p.Email) },
	})
}
