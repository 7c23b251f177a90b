// Package repo exposes the upstream hostel API as typed resources. Every
// payload read from the wire is validated before it reaches callers.
package repo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/internal/models"
	"github.com/Skotchmaster/hostel_meals/pkg/apiclient"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrNotAcknowledged = errors.New("write not acknowledged")
	// ErrBadPayload marks upstream data that failed schema validation.
	ErrBadPayload = errors.New("malformed upstream payload")
)

// Resource names double as cache resource keys.
const (
	ResMeals         = "meals"
	ResUpcoming      = "upcoming-meals"
	ResUsers         = "users"
	ResReviews       = "reviews"
	ResServeRequests = "serve-requests"
	ResPackages      = "packages"
	ResPayments      = "payments"
)

// API is the subset of apiclient.Client the resources need.
type API interface {
	Do(ctx context.Context, method, path string, query url.Values, in, out any) error
}

func listQuery(p collection.Params) url.Values {
	q := url.Values{}
	for k, vs := range p.Filter {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Sort != "" {
		q.Set("sort", p.Sort)
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Size > 0 {
		q.Set("size", strconv.Itoa(p.Size))
	}
	return q
}

func list[T any](ctx context.Context, api API, path string, p collection.Params) ([]T, error) {
	var items []T
	if err := api.Do(ctx, http.MethodGet, path, listQuery(p), nil, &items); err != nil {
		return nil, wrap("list "+path, err)
	}
	if err := models.ValidateAll(items); err != nil {
		return nil, badPayload("list "+path, err)
	}
	return items, nil
}

// count asks /<path>/count; paging is irrelevant to the total.
func count(ctx context.Context, api API, path string, p collection.Params) (int, error) {
	p.Page, p.Size, p.Sort = 0, 0, ""
	var c models.Count
	if err := api.Do(ctx, http.MethodGet, path+"/count", listQuery(p), nil, &c); err != nil {
		return 0, wrap("count "+path, err)
	}
	if err := models.Validate(&c); err != nil {
		return 0, badPayload("count "+path, err)
	}
	return c.Count, nil
}

func get[T any](ctx context.Context, api API, path string) (T, error) {
	var out T
	if err := api.Do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return out, wrap("get "+path, err)
	}
	if err := models.Validate(&out); err != nil {
		return out, badPayload("get "+path, err)
	}
	return out, nil
}

// write sends a mutation and requires an acknowledged result.
func write(ctx context.Context, api API, method, path string, in any) (models.Ack, error) {
	var ack models.Ack
	op := method + " " + path
	if err := api.Do(ctx, method, path, nil, in, &ack); err != nil {
		return ack, wrap(op, err)
	}
	if !ack.Acknowledged {
		return ack, fmt.Errorf("%s: %w", op, ErrNotAcknowledged)
	}
	return ack, nil
}

// badPayload keeps the validator detail for logs but not the ErrInvalid
// identity, so bad upstream data never reads as bad user input.
func badPayload(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrBadPayload, err)
}

func wrap(op string, err error) error {
	if apiclient.StatusOf(err) == http.StatusNotFound {
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func idPath(base, id string) (string, error) {
	if !models.IsObjectID(id) {
		return "", fmt.Errorf("%w: id %q is not an object id", models.ErrInvalid, id)
	}
	return base + "/" + id, nil
}
