package repo

import (
	"context"
	"net/http"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/internal/models"
)

type Upcoming struct {
	API API
}

func (r *Upcoming) Resource() string { return ResUpcoming }

func (r *Upcoming) List(ctx context.Context, p collection.Params) ([]models.UpcomingMeal, error) {
	return list[models.UpcomingMeal](ctx, r.API, "/upcoming-meals", p)
}

func (r *Upcoming) Count(ctx context.Context, p collection.Params) (int, error) {
	return count(ctx, r.API, "/upcoming-meals", p)
}

func (r *Upcoming) Get(ctx context.Context, id string) (models.UpcomingMeal, error) {
	path, err := idPath("/upcoming-meals", id)
	if err != nil {
		return models.UpcomingMeal{}, err
	}
	return get[models.UpcomingMeal](ctx, r.API, path)
}

func (r *Upcoming) Create(ctx context.Context, in models.MealInput) (string, error) {
	if err := models.Validate(&in); err != nil {
		return "", err
	}
	ack, err := write(ctx, r.API, http.MethodPost, "/upcoming-meals", in)
	if err != nil {
		return "", err
	}
	return ack.InsertedID, nil
}

func (r *Upcoming) Like(ctx context.Context, id, email string) error {
	path, err := idPath("/upcoming-meals", id)
	if err != nil {
		return err
	}
	_, err = write(ctx, r.API, http.MethodPatch, path+"/like", map[string]string{"email": email})
	return err
}

// Publish moves an upcoming meal into the regular meal list.
func (r *Upcoming) Publish(ctx context.Context, id string) error {
	path, err := idPath("/upcoming-meals", id)
	if err != nil {
		return err
	}
	_, err = write(ctx, r.API, http.MethodPost, path+"/publish", nil)
	return err
}
