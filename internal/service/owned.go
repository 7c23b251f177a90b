package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/internal/models"
	"github.com/Skotchmaster/hostel_meals/internal/query"
	"github.com/Skotchmaster/hostel_meals/internal/repo"
)

// Owned checks that a member only touches their own reviews and meal
// requests. The records are read through the cache; a failed check makes
// no write.
type Owned struct {
	Reviews *repo.Reviews
	Serve   *repo.ServeRequests
	Cache   *query.Cache
}

func (o *Owned) Review(ctx context.Context, p models.Principal, id string) error {
	rv, err := collection.Item(ctx, o.Cache, repo.ResReviews, id, func(ctx context.Context) (models.Review, error) {
		return o.Reviews.Get(ctx, id)
	})
	if err != nil {
		return err
	}
	if !strings.EqualFold(rv.Author.Email, p.Email) {
		return fmt.Errorf("%w: review %s belongs to someone else", ErrForbidden, id)
	}
	return nil
}

// Request allows cancelling one's own request while it is still pending.
func (o *Owned) Request(ctx context.Context, p models.Principal, id string) error {
	sr, err := collection.Item(ctx, o.Cache, repo.ResServeRequests, id, func(ctx context.Context) (models.ServeRequest, error) {
		return o.Serve.Get(ctx, id)
	})
	if err != nil {
		return err
	}
	if !strings.EqualFold(sr.UserEmail, p.Email) {
		return fmt.Errorf("%w: request %s belongs to someone else", ErrForbidden, id)
	}
	if sr.Status == models.RequestServed {
		return fmt.Errorf("%w: %s was already served", ErrConflict, sr.MealTitle)
	}
	return nil
}
