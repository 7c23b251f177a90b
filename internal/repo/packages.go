package repo

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/internal/models"
)

// Packages is the fixed catalogue of membership tiers. The upstream has no
// count endpoint, so Count derives from the full list.
type Packages struct {
	API API
}

func (r *Packages) Resource() string { return ResPackages }

func (r *Packages) List(ctx context.Context, _ collection.Params) ([]models.Package, error) {
	return list[models.Package](ctx, r.API, "/packages", collection.Params{})
}

func (r *Packages) Count(ctx context.Context, p collection.Params) (int, error) {
	items, err := r.List(ctx, p)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (r *Packages) Get(ctx context.Context, name models.Tier) (models.Package, error) {
	if !name.Valid() {
		return models.Package{}, fmt.Errorf("%w: unknown package %q", models.ErrInvalid, name)
	}
	return get[models.Package](ctx, r.API, "/packages/"+url.PathEscape(string(name)))
}

var _ collection.Source[models.Package] = (*Packages)(nil)

// compile-time checks for the paginated resources
var (
	_ collection.Source[models.Meal]          = (*Meals)(nil)
	_ collection.Source[models.UpcomingMeal]  = (*Upcoming)(nil)
	_ collection.Source[models.User]          = (*Users)(nil)
	_ collection.Source[models.Review]        = (*Reviews)(nil)
	_ collection.Source[models.ServeRequest]  = (*ServeRequests)(nil)
	_ collection.Source[models.PaymentRecord] = (*Payments)(nil)
)
