package repo

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/internal/models"
)

type Meals struct {
	API API
}

func (r *Meals) Resource() string { return ResMeals }

func (r *Meals) List(ctx context.Context, p collection.Params) ([]models.Meal, error) {
	return list[models.Meal](ctx, r.API, "/meals", p)
}

func (r *Meals) Count(ctx context.Context, p collection.Params) (int, error) {
	return count(ctx, r.API, "/meals", p)
}

func (r *Meals) Get(ctx context.Context, id string) (models.Meal, error) {
	path, err := idPath("/meals", id)
	if err != nil {
		return models.Meal{}, err
	}
	return get[models.Meal](ctx, r.API, path)
}

// Create returns the id of the inserted meal.
func (r *Meals) Create(ctx context.Context, in models.MealInput) (string, error) {
	if err := models.Validate(&in); err != nil {
		return "", err
	}
	ack, err := write(ctx, r.API, http.MethodPost, "/meals", in)
	if err != nil {
		return "", err
	}
	return ack.InsertedID, nil
}

func (r *Meals) Update(ctx context.Context, id string, in models.MealInput) error {
	if err := models.Validate(&in); err != nil {
		return err
	}
	path, err := idPath("/meals", id)
	if err != nil {
		return err
	}
	ack, err := write(ctx, r.API, http.MethodPatch, path, in)
	if err != nil {
		return err
	}
	if ack.MatchedCount == 0 && ack.ModifiedCount == 0 {
		return fmt.Errorf("update meal %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *Meals) Delete(ctx context.Context, id string) error {
	path, err := idPath("/meals", id)
	if err != nil {
		return err
	}
	ack, err := write(ctx, r.API, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	if !ack.Changed() {
		return fmt.Errorf("delete meal %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *Meals) Like(ctx context.Context, id, email string) error {
	path, err := idPath("/meals", id)
	if err != nil {
		return err
	}
	_, err = write(ctx, r.API, http.MethodPatch, path+"/like", map[string]string{"email": email})
	return err
}

func (r *Meals) Request(ctx context.Context, id string, req models.MealRequest) error {
	if err := models.Validate(&req); err != nil {
		return err
	}
	path, err := idPath("/meals", id)
	if err != nil {
		return err
	}
	_, err = write(ctx, r.API, http.MethodPost, path+"/requests", req)
	return err
}

type reviewBody struct {
	models.ReviewInput
	Author models.Person `json:"author"`
}

func (r *Meals) Review(ctx context.Context, id string, author models.Person, in models.ReviewInput) error {
	if err := models.Validate(&in); err != nil {
		return err
	}
	path, err := idPath("/meals", id)
	if err != nil {
		return err
	}
	_, err = write(ctx, r.API, http.MethodPost, path+"/reviews", reviewBody{ReviewInput: in, Author: author})
	return err
}
