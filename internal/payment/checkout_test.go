package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/internal/models"
	"github.com/Skotchmaster/hostel_meals/internal/query"
	"github.com/Skotchmaster/hostel_meals/internal/repo"
	"github.com/Skotchmaster/hostel_meals/internal/session"
	"github.com/Skotchmaster/hostel_meals/pkg/apiclient"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type hits struct {
	total, records, tiers atomic.Int32
	declineConfirm        atomic.Bool
	failTier              atomic.Bool
}

func goodCard() Card {
	return Card{Number: "4242424242424242", ExpMonth: 12, ExpYear: 2030, CVC: "123"}
}

type fakeTokenizer struct{ calls int }

func (f *fakeTokenizer) CreatePaymentMethod(_ context.Context, card Card, b Billing) (PaymentMethod, error) {
	f.calls++
	if b.Email == "" {
		return PaymentMethod{}, errors.New("billing email missing")
	}
	return PaymentMethod{ID: "pm_" + card.CVC}, nil
}

type fakeSessions struct{ tier models.Tier }

func (f *fakeSessions) SetTier(_ context.Context, s *session.Session, tier models.Tier) error {
	s.Tier = tier
	f.tier = tier
	return nil
}

func newCheckout(t *testing.T) (*Checkout, *hits, *fakeTokenizer, *fakeSessions) {
	t.Helper()
	h := &hits{}
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h.total.Add(1)
			return next(c)
		}
	})
	e.GET("/packages/:name", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"name": c.Param("name"), "price": 29.99})
	})
	e.POST("/create-payment-intent", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"clientSecret": "secret_1"})
	})
	e.POST("/payments/confirm", func(c echo.Context) error {
		if h.declineConfirm.Load() {
			return c.JSON(http.StatusPaymentRequired, echo.Map{"message": "card declined"})
		}
		return c.JSON(http.StatusOK, echo.Map{"id": "pi_9", "status": "succeeded"})
	})
	e.POST("/payments", func(c echo.Context) error {
		h.records.Add(1)
		return c.JSON(http.StatusCreated, echo.Map{"acknowledged": true, "insertedId": "p1"})
	})
	e.PATCH("/users/by-email/:email/tier", func(c echo.Context) error {
		h.tiers.Add(1)
		if h.failTier.Load() {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "users store down"})
		}
		return c.JSON(http.StatusOK, echo.Map{"acknowledged": true, "modifiedCount": 1})
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	api, err := apiclient.New(apiclient.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	tok := &fakeTokenizer{}
	sessions := &fakeSessions{}
	return &Checkout{
		Packages:  &repo.Packages{API: api},
		Payments:  &repo.Payments{API: api},
		Users:     &repo.Users{API: api},
		Tokenizer: tok,
		Cache:     query.New(),
		Sessions:  sessions,
		Now:       func() time.Time { return now },
	}, h, tok, sessions
}

func sess() *session.Session {
	return &session.Session{Email: "m@hostel.test", Name: "Mim", Role: models.RoleUser, Tier: models.LowestTier, IDToken: "id"}
}

type noticeLog []collection.Notice

func (n *noticeLog) Notify(_ context.Context, x collection.Notice) { *n = append(*n, x) }

func TestCheckout_Success(t *testing.T) {
	co, h, tok, sessions := newCheckout(t)
	s := sess()
	var notes noticeLog

	paymentsKey := query.Key{Resource: repo.ResPayments, Kind: "list", Page: 1}
	_, err := co.Cache.Fetch(context.Background(), paymentsKey, func(context.Context) (any, error) { return 0, nil })
	require.NoError(t, err)

	r, err := co.Run(context.Background(), s, models.TierGold, goodCard(), &notes)
	require.NoError(t, err)
	assert.Equal(t, "pi_9", r.TransactionID)
	assert.Equal(t, 29.99, r.Price)
	assert.Equal(t, 1, tok.calls)
	assert.EqualValues(t, 1, h.records.Load())
	assert.EqualValues(t, 1, h.tiers.Load())
	assert.Equal(t, models.TierGold, sessions.tier)
	assert.Equal(t, models.TierGold, s.Tier)

	_, ok := co.Cache.Peek(paymentsKey)
	assert.False(t, ok)
	require.Len(t, notes, 1)
	assert.Equal(t, collection.LevelSuccess, notes[0].Level)
}

func TestCheckout_ValidationMakesNoCall(t *testing.T) {
	expired := goodCard()
	expired.ExpYear, expired.ExpMonth = 2026, 2
	badNumber := goodCard()
	badNumber.Number = "4242424242424241"

	tests := []struct {
		name string
		tier models.Tier
		card Card
	}{
		{name: "lowest tier", tier: models.LowestTier, card: goodCard()},
		{name: "unknown tier", tier: "diamond", card: goodCard()},
		{name: "bad card number", tier: models.TierSilver, card: badNumber},
		{name: "expired card", tier: models.TierSilver, card: expired},
		{name: "missing cvc", tier: models.TierSilver, card: Card{Number: "4242424242424242", ExpMonth: 1, ExpYear: 2030}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			co, h, tok, _ := newCheckout(t)
			_, err := co.Run(context.Background(), sess(), tt.tier, tt.card, nil)
			require.ErrorIs(t, err, models.ErrInvalid)
			assert.Zero(t, h.total.Load())
			assert.Zero(t, tok.calls)
		})
	}
}

func TestCheckout_DeclinedLeavesTierAlone(t *testing.T) {
	co, h, _, sessions := newCheckout(t)
	h.declineConfirm.Store(true)
	s := sess()
	var notes noticeLog

	_, err := co.Run(context.Background(), s, models.TierPlatinum, goodCard(), &notes)
	require.Error(t, err)
	assert.Equal(t, http.StatusPaymentRequired, apiclient.StatusOf(err))
	assert.Zero(t, h.records.Load())
	assert.Zero(t, h.tiers.Load())
	assert.Empty(t, sessions.tier)
	assert.Equal(t, models.LowestTier, s.Tier)
	require.Len(t, notes, 1)
	assert.Equal(t, collection.LevelError, notes[0].Level)
}

func TestCheckout_ChargedButTierFailedIsPending(t *testing.T) {
	co, h, _, sessions := newCheckout(t)
	h.failTier.Store(true)
	s := sess()
	var notes noticeLog

	ctx := context.Background()
	paymentsKey := query.Key{Resource: repo.ResPayments, Kind: "list", Page: 1}
	usersKey := query.Key{Resource: repo.ResUsers, Kind: "list", Page: 1}
	for _, k := range []query.Key{paymentsKey, usersKey} {
		_, err := co.Cache.Fetch(ctx, k, func(context.Context) (any, error) { return 0, nil })
		require.NoError(t, err)
	}

	r, err := co.Run(ctx, s, models.TierGold, goodCard(), &notes)
	require.ErrorIs(t, err, ErrUpgradePending)
	assert.Equal(t, "pi_9", r.TransactionID)
	assert.EqualValues(t, 1, h.records.Load())
	assert.EqualValues(t, 1, h.tiers.Load())
	assert.Empty(t, sessions.tier)
	assert.Equal(t, models.LowestTier, s.Tier)

	_, ok := co.Cache.Peek(paymentsKey)
	assert.False(t, ok, "recorded payment must be refetched")
	_, ok = co.Cache.Peek(usersKey)
	assert.False(t, ok)

	require.Len(t, notes, 1)
	assert.Equal(t, collection.LevelInfo, notes[0].Level)
	assert.Equal(t, "Payment received", notes[0].Title)
	assert.Contains(t, notes[0].Message, "pi_9")
}

func TestCard_Expired(t *testing.T) {
	assert.False(t, Card{ExpYear: 2026, ExpMonth: 3}.Expired(now))
	assert.True(t, Card{ExpYear: 2026, ExpMonth: 2}.Expired(now))
	assert.True(t, Card{ExpYear: 2025, ExpMonth: 12}.Expired(now))
}
