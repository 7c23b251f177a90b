package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoSubject = errors.New("token has no subject")

// IdentityClaims are the claims the identity provider puts in its ID tokens.
type IdentityClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// IdentityClaimsFromToken reads the claims of an ID token without checking
// its signature. The upstream API verifies the token on every protected call.
func IdentityClaimsFromToken(tokenStr string) (*IdentityClaims, error) {
	var claims IdentityClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &claims); err != nil {
		return nil, fmt.Errorf("parse id token: %w", err)
	}
	if claims.Subject == "" {
		return nil, ErrNoSubject
	}
	return &claims, nil
}

// Expiry falls back to def when the token carries no exp claim.
func (c *IdentityClaims) Expiry(def time.Time) time.Time {
	if c.ExpiresAt == nil {
		return def
	}
	return c.ExpiresAt.Time
}
