package repo

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/internal/models"
)

type Reviews struct {
	API API
}

func (r *Reviews) Resource() string { return ResReviews }

func (r *Reviews) List(ctx context.Context, p collection.Params) ([]models.Review, error) {
	return list[models.Review](ctx, r.API, "/reviews", p)
}

func (r *Reviews) Count(ctx context.Context, p collection.Params) (int, error) {
	return count(ctx, r.API, "/reviews", p)
}

func (r *Reviews) Get(ctx context.Context, id string) (models.Review, error) {
	path, err := idPath("/reviews", id)
	if err != nil {
		return models.Review{}, err
	}
	return get[models.Review](ctx, r.API, path)
}

func (r *Reviews) Update(ctx context.Context, id string, in models.ReviewInput) error {
	if err := models.Validate(&in); err != nil {
		return err
	}
	path, err := idPath("/reviews", id)
	if err != nil {
		return err
	}
	_, err = write(ctx, r.API, http.MethodPatch, path, in)
	return err
}

func (r *Reviews) Delete(ctx context.Context, id string) error {
	path, err := idPath("/reviews", id)
	if err != nil {
		return err
	}
	ack, err := write(ctx, r.API, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	if !ack.Changed() {
		return fmt.Errorf("delete review %s: %w", id, ErrNotFound)
	}
	return nil
}
