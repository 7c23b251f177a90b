// Package session keeps the signed-in user's context: identity, role and
// membership tier. Sessions live in the database and are looked up from
// the sid cookie on every request.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/hostel_meals/internal/identity"
	"github.com/Skotchmaster/hostel_meals/internal/models"
	"github.com/Skotchmaster/hostel_meals/internal/repo"
	"github.com/Skotchmaster/hostel_meals/pkg/apiclient"
	"github.com/Skotchmaster/hostel_meals/pkg/logging"
)

// refreshSkew renews ID tokens a little before they expire.
const refreshSkew = time.Minute

// Directory is the upstream user lookup a session needs.
type Directory interface {
	Role(ctx context.Context, email string) (models.Role, error)
	ByEmail(ctx context.Context, email string) (models.User, error)
	Create(ctx context.Context, u models.NewUser) error
}

type Manager struct {
	store    *Store
	users    Directory
	identity identity.Provider
	ttl      time.Duration
	now      func() time.Time
}

func NewManager(store *Store, users Directory, idp identity.Provider, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Manager{store: store, users: users, identity: idp, ttl: ttl, now: time.Now}
}

// Init opens a session for a freshly signed-in account. Role and tier come
// from the upstream API; a first-time user gets a profile on the lowest tier.
// The returned token goes into the sid cookie.
func (m *Manager) Init(ctx context.Context, acc *identity.Account) (string, *Session, error) {
	l := logging.FromContext(ctx).With("component", "session.init")
	ctx = apiclient.WithToken(ctx, acc.IDToken)

	user, err := m.users.ByEmail(ctx, acc.Email)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		nu := models.NewUser{Name: acc.Name, Email: acc.Email, Photo: acc.Photo, Role: models.RoleUser, Tier: models.LowestTier}
		if err := m.users.Create(ctx, nu); err != nil {
			l.Error("session_init_failed", "reason", "cannot create profile", "error", err)
			return "", nil, fmt.Errorf("create profile: %w", err)
		}
		user = models.User{Name: nu.Name, Email: nu.Email, Photo: nu.Photo, Role: nu.Role, Tier: nu.Tier}
	case err != nil:
		l.Error("session_init_failed", "reason", "cannot load profile", "error", err)
		return "", nil, fmt.Errorf("load profile: %w", err)
	}

	role, err := m.users.Role(ctx, acc.Email)
	if err != nil {
		l.Error("session_init_failed", "reason", "role lookup failed", "error", err)
		return "", nil, fmt.Errorf("role lookup: %w", err)
	}

	now := m.now()
	sess := &Session{
		UID:            acc.UID,
		Email:          acc.Email,
		Name:           firstNonEmpty(acc.Name, user.Name),
		Photo:          firstNonEmpty(acc.Photo, user.Photo),
		Role:           role,
		Tier:           user.Tier,
		IDToken:        acc.IDToken,
		RefreshToken:   acc.RefreshToken,
		TokenExpiresAt: acc.ExpiresAt,
		ExpiresAt:      now.Add(m.ttl),
	}
	token := uuid.NewString()
	if err := m.store.Create(ctx, token, sess); err != nil {
		return "", nil, fmt.Errorf("store session: %w", err)
	}

	l.Info("session_started", "uid", sess.UID, "role", string(sess.Role), "tier", string(sess.Tier))
	return token, sess, nil
}

// Resolve loads the session behind token, renewing its ID token when it is
// about to expire. Expired sessions are removed and reported as ErrNoSession.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	sess, err := m.store.Find(ctx, token)
	if err != nil {
		return nil, err
	}

	now := m.now()
	if now.After(sess.ExpiresAt) {
		_ = m.store.Delete(ctx, sess.ID)
		return nil, ErrNoSession
	}

	if now.Add(refreshSkew).After(sess.TokenExpiresAt) {
		acc, err := m.identity.Refresh(ctx, sess.RefreshToken)
		if err != nil {
			logging.FromContext(ctx).Warn("session_refresh_failed", "uid", sess.UID, "error", err)
			_ = m.store.Delete(ctx, sess.ID)
			return nil, ErrNoSession
		}
		sess.IDToken = acc.IDToken
		if acc.RefreshToken != "" {
			sess.RefreshToken = acc.RefreshToken
		}
		sess.TokenExpiresAt = acc.ExpiresAt
		if err := m.store.Save(ctx, sess); err != nil {
			return nil, fmt.Errorf("save refreshed session: %w", err)
		}
	}
	return sess, nil
}

// Teardown signs out: the row goes away and the provider is told.
func (m *Manager) Teardown(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	if err := m.store.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := m.identity.Logout(ctx, sess.UID); err != nil {
		logging.FromContext(ctx).Warn("identity_logout_failed", "uid", sess.UID, "error", err)
	}
	logging.FromContext(ctx).Info("session_ended", "uid", sess.UID)
	return nil
}

// RevokeAll ends every session held by sess's account, on any device.
// Used when the account loses the rights its sessions were opened with.
func (m *Manager) RevokeAll(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	n, err := m.store.DeleteByEmail(ctx, sess.Email)
	if err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	if err := m.identity.Logout(ctx, sess.UID); err != nil {
		logging.FromContext(ctx).Warn("identity_logout_failed", "uid", sess.UID, "error", err)
	}
	logging.FromContext(ctx).Info("sessions_revoked", "uid", sess.UID, "count", n)
	return nil
}

// FreshRole asks the upstream API for the current role, bypassing the
// session's copy.
func (m *Manager) FreshRole(ctx context.Context, sess *Session) (models.Role, error) {
	return m.users.Role(apiclient.WithToken(ctx, sess.IDToken), sess.Email)
}

func (m *Manager) SetTier(ctx context.Context, sess *Session, tier models.Tier) error {
	sess.Tier = tier
	return m.store.Save(ctx, sess)
}

func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	return m.store.DeleteExpired(ctx, m.now())
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
