package repo

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/internal/models"
)

type ServeRequests struct {
	API API
}

func (r *ServeRequests) Resource() string { return ResServeRequests }

func (r *ServeRequests) List(ctx context.Context, p collection.Params) ([]models.ServeRequest, error) {
	return list[models.ServeRequest](ctx, r.API, "/serve-requests", p)
}

func (r *ServeRequests) Count(ctx context.Context, p collection.Params) (int, error) {
	return count(ctx, r.API, "/serve-requests", p)
}

func (r *ServeRequests) Get(ctx context.Context, id string) (models.ServeRequest, error) {
	path, err := idPath("/serve-requests", id)
	if err != nil {
		return models.ServeRequest{}, err
	}
	return get[models.ServeRequest](ctx, r.API, path)
}

func (r *ServeRequests) Serve(ctx context.Context, id string) error {
	path, err := idPath("/serve-requests", id)
	if err != nil {
		return err
	}
	_, err = write(ctx, r.API, http.MethodPatch, path+"/serve", map[string]models.RequestStatus{"status": models.RequestServed})
	return err
}

// Delete cancels a pending request.
func (r *ServeRequests) Delete(ctx context.Context, id string) error {
	path, err := idPath("/serve-requests", id)
	if err != nil {
		return err
	}
	ack, err := write(ctx, r.API, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	if !ack.Changed() {
		return fmt.Errorf("delete serve request %s: %w", id, ErrNotFound)
	}
	return nil
}
