package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/hostel_meals/pkg/apiclient"
	"github.com/Skotchmaster/hostel_meals/pkg/logging"
	"github.com/Skotchmaster/hostel_meals/pkg/tokens"
)

// Toolkit speaks the identity-toolkit REST API (accounts:signUp and friends).
type Toolkit struct {
	api         *apiclient.Client
	tokens      *apiclient.Client
	key         string
	redirectURI string
	now         func() time.Time
	broker
}

type ToolkitConfig struct {
	BaseURL string
	APIKey  string
	// RedirectURI is echoed back to the provider on federated sign-in.
	RedirectURI string
	// TokenURL serves the refresh grant; empty means BaseURL.
	TokenURL string
	Timeout  time.Duration
}

func NewToolkit(cfg ToolkitConfig) (*Toolkit, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("identity: api key is required")
	}
	api, err := apiclient.New(apiclient.Config{BaseURL: cfg.BaseURL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = cfg.BaseURL
	}
	tok, err := apiclient.New(apiclient.Config{BaseURL: tokenURL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	redirect := cfg.RedirectURI
	if redirect == "" {
		redirect = "http://localhost"
	}
	return &Toolkit{api: api, tokens: tok, key: cfg.APIKey, redirectURI: redirect, now: time.Now}, nil
}

type tokenResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

func (t *Toolkit) call(ctx context.Context, method string, in any) (*tokenResponse, error) {
	var out tokenResponse
	q := url.Values{"key": {t.key}}
	if err := t.api.Do(ctx, http.MethodPost, "/accounts:"+method, q, in, &out); err != nil {
		return nil, mapError(err)
	}
	return &out, nil
}

// account merges the response with the ID token's claims.
func (t *Toolkit) account(r *tokenResponse) (*Account, error) {
	claims, err := tokens.IdentityClaimsFromToken(r.IDToken)
	if err != nil {
		return nil, err
	}

	acc := &Account{
		UID:          r.LocalID,
		Email:        r.Email,
		Name:         r.DisplayName,
		Photo:        r.PhotoURL,
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
	}
	if acc.UID == "" {
		acc.UID = claims.Subject
	}
	if acc.Email == "" {
		acc.Email = claims.Email
	}
	if acc.Name == "" {
		acc.Name = claims.Name
	}
	if acc.Photo == "" {
		acc.Photo = claims.Picture
	}

	def := t.now().Add(time.Hour)
	if secs, err := strconv.Atoi(r.ExpiresIn); err == nil && secs > 0 {
		def = t.now().Add(time.Duration(secs) * time.Second)
	}
	acc.ExpiresAt = claims.Expiry(def)
	return acc, nil
}

func (t *Toolkit) signedIn(ctx context.Context, r *tokenResponse) (*Account, error) {
	acc, err := t.account(r)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("identity_signed_in", "uid", acc.UID)
	t.publish(Change{UID: acc.UID, Account: acc})
	return acc, nil
}

func (t *Toolkit) CreateAccount(ctx context.Context, email, password, name, photo string) (*Account, error) {
	r, err := t.call(ctx, "signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, err
	}

	upd, err := t.call(ctx, "update", map[string]any{
		"idToken":           r.IDToken,
		"displayName":       name,
		"photoUrl":          photo,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, fmt.Errorf("set profile: %w", err)
	}
	if upd.IDToken == "" {
		upd.IDToken, upd.RefreshToken, upd.ExpiresIn = r.IDToken, r.RefreshToken, r.ExpiresIn
	}
	if upd.LocalID == "" {
		upd.LocalID = r.LocalID
	}
	return t.signedIn(ctx, upd)
}

func (t *Toolkit) Login(ctx context.Context, email, password string) (*Account, error) {
	r, err := t.call(ctx, "signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, err
	}
	return t.signedIn(ctx, r)
}

func (t *Toolkit) LoginFederated(ctx context.Context, providerID, idToken string) (*Account, error) {
	post := url.Values{"id_token": {idToken}, "providerId": {providerID}}
	r, err := t.call(ctx, "signInWithIdp", map[string]any{
		"postBody":            post.Encode(),
		"requestUri":          t.redirectURI,
		"returnIdpCredential": true,
		"returnSecureToken":   true,
	})
	if err != nil {
		return nil, err
	}
	return t.signedIn(ctx, r)
}

func (t *Toolkit) Refresh(ctx context.Context, refreshToken string) (*Account, error) {
	if refreshToken == "" {
		return nil, ErrInvalidCredentials
	}
	var out struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
		UserID       string `json:"user_id"`
	}
	body := map[string]string{"grant_type": "refresh_token", "refresh_token": refreshToken}
	if err := t.tokens.Do(ctx, http.MethodPost, "/token", url.Values{"key": {t.key}}, body, &out); err != nil {
		return nil, mapError(err)
	}
	return t.account(&tokenResponse{
		LocalID:      out.UserID,
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    out.ExpiresIn,
	})
}

// Logout only announces the change; ID tokens expire on their own and the
// toolkit API has no client-side revocation.
func (t *Toolkit) Logout(ctx context.Context, uid string) error {
	logging.FromContext(ctx).Info("identity_signed_out", "uid", uid)
	t.publish(Change{UID: uid})
	return nil
}

func (t *Toolkit) Subscribe() (<-chan Change, func()) {
	return t.subscribe()
}

func mapError(err error) error {
	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	code := apiErr.Message
	if json.Unmarshal([]byte(apiErr.Message), &body) == nil && body.Error.Message != "" {
		code = body.Error.Message
	}
	switch {
	case code == "EMAIL_EXISTS":
		return ErrEmailExists
	case strings.HasPrefix(code, "WEAK_PASSWORD"):
		return ErrWeakPassword
	case code == "EMAIL_NOT_FOUND", code == "INVALID_PASSWORD", code == "INVALID_LOGIN_CREDENTIALS", code == "INVALID_IDP_RESPONSE",
		code == "INVALID_REFRESH_TOKEN", code == "TOKEN_EXPIRED":
		return ErrInvalidCredentials
	}
	return fmt.Errorf("identity: %w", err)
}

var _ Provider = (*Toolkit)(nil)
