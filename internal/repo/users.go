package repo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/internal/models"
)

type Users struct {
	API API
}

func (r *Users) Resource() string { return ResUsers }

func (r *Users) List(ctx context.Context, p collection.Params) ([]models.User, error) {
	return list[models.User](ctx, r.API, "/users", p)
}

func (r *Users) Count(ctx context.Context, p collection.Params) (int, error) {
	return count(ctx, r.API, "/users", p)
}

// Role answers the authoritative role for email. Unknown users are plain users.
func (r *Users) Role(ctx context.Context, email string) (models.Role, error) {
	var out struct {
		Role  models.Role `json:"role"`
		Admin *bool       `json:"admin"`
	}
	path := "/users/role/" + url.PathEscape(email)
	if err := r.API.Do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return "", wrap("get "+path, err)
	}
	switch {
	case out.Role == models.RoleAdmin, out.Admin != nil && *out.Admin:
		return models.RoleAdmin, nil
	case out.Role == "", out.Role == models.RoleUser:
		return models.RoleUser, nil
	}
	return "", fmt.Errorf("get %s: %w: role %q", path, ErrBadPayload, out.Role)
}

func (r *Users) ByEmail(ctx context.Context, email string) (models.User, error) {
	return get[models.User](ctx, r.API, "/users/by-email/"+url.PathEscape(email))
}

// Create registers the profile that follows a new identity account. An
// already-known email is not an error.
func (r *Users) Create(ctx context.Context, u models.NewUser) error {
	if err := models.Validate(&u); err != nil {
		return err
	}
	_, err := write(ctx, r.API, http.MethodPost, "/users", u)
	return err
}

func (r *Users) MakeAdmin(ctx context.Context, id string) error {
	path, err := idPath("/users", id)
	if err != nil {
		return err
	}
	_, err = write(ctx, r.API, http.MethodPatch, path+"/role", map[string]models.Role{"role": models.RoleAdmin})
	return err
}

func (r *Users) SetTier(ctx context.Context, email string, tier models.Tier) error {
	if !tier.Valid() {
		return fmt.Errorf("%w: unknown tier %q", models.ErrInvalid, tier)
	}
	path := "/users/by-email/" + url.PathEscape(email) + "/tier"
	_, err := write(ctx, r.API, http.MethodPatch, path, map[string]models.Tier{"badge": tier})
	return err
}
