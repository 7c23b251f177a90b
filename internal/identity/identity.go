// Package identity wraps the external identity provider that owns
// credentials. The app never sees a password beyond forwarding it.
package identity

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password too weak")
)

// Account is a signed-in identity.
type Account struct {
	UID          string
	Email        string
	Name         string
	Photo        string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

type Provider interface {
	CreateAccount(ctx context.Context, email, password, name, photo string) (*Account, error)
	Login(ctx context.Context, email, password string) (*Account, error)
	// LoginFederated exchanges a third-party ID token, e.g. from Google.
	LoginFederated(ctx context.Context, providerID, idToken string) (*Account, error)
	// Refresh trades a refresh token for a fresh ID token.
	Refresh(ctx context.Context, refreshToken string) (*Account, error)
	Logout(ctx context.Context, uid string) error
	// Subscribe streams auth state changes; a nil account means signed out.
	Subscribe() (<-chan Change, func())
}

type Change struct {
	UID     string
	Account *Account
}

// broker fans auth state changes out to subscribers. Slow subscribers drop
// changes instead of blocking sign-in.
type broker struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Change
}

func (b *broker) subscribe() (<-chan Change, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]chan Change)
	}
	id := b.next
	b.next++
	ch := make(chan Change, 16)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

func (b *broker) publish(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
