package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/internal/models"
	"github.com/Skotchmaster/hostel_meals/internal/query"
	"github.com/Skotchmaster/hostel_meals/internal/repo"
	"github.com/Skotchmaster/hostel_meals/pkg/apiclient"
)

const (
	mealID     = "65a1f0c2e4b0a1b2c3d4e5f6"
	upcomingID = "65a1f0c2e4b0a1b2c3d4e5f8"
)

type counters struct {
	gets, requests, likes, upcomingLikes atomic.Int32
}

func newService(t *testing.T) (*MealService, *counters) {
	t.Helper()
	cnt := &counters{}

	e := echo.New()
	e.GET("/meals/:id", func(c echo.Context) error {
		cnt.gets.Add(1)
		return c.JSON(http.StatusOK, echo.Map{
			"_id": mealID, "title": "Khichuri", "category": "lunch",
			"requests": []echo.Map{{"userEmail": "already@hostel.test", "status": "pending"}},
		})
	})
	e.POST("/meals/:id/requests", func(c echo.Context) error {
		cnt.requests.Add(1)
		return c.JSON(http.StatusCreated, echo.Map{"acknowledged": true, "modifiedCount": 1})
	})
	e.PATCH("/meals/:id/like", func(c echo.Context) error {
		cnt.likes.Add(1)
		return c.JSON(http.StatusOK, echo.Map{"acknowledged": true, "modifiedCount": 1})
	})
	e.GET("/upcoming-meals/:id", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"_id": upcomingID, "title": "Pitha", "category": "breakfast",
			"likedBy": []string{"already@hostel.test"},
		})
	})
	e.PATCH("/upcoming-meals/:id/like", func(c echo.Context) error {
		cnt.upcomingLikes.Add(1)
		return c.JSON(http.StatusOK, echo.Map{"acknowledged": true, "modifiedCount": 1})
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	api, err := apiclient.New(apiclient.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	return &MealService{
		Meals:    &repo.Meals{API: api},
		Upcoming: &repo.Upcoming{API: api},
		Cache:    query.New(),
	}, cnt
}

func member(email string, tier models.Tier) models.Principal {
	return models.Principal{Email: email, Name: "Member", Role: models.RoleUser, Tier: tier}
}

type notices []collection.Notice

func (n *notices) Notify(_ context.Context, x collection.Notice) { *n = append(*n, x) }

func TestRequest_DuplicateRefusedWithoutUpstreamCall(t *testing.T) {
	t.Parallel()
	svc, cnt := newService(t)
	var got notices

	err := svc.Request(context.Background(), member("already@hostel.test", models.TierGold), mealID, &got)
	require.ErrorIs(t, err, ErrConflict)
	assert.Zero(t, cnt.requests.Load())
	assert.Empty(t, got)
}

func TestRequest_FirstRequestGoesThrough(t *testing.T) {
	t.Parallel()
	svc, cnt := newService(t)
	var got notices
	ctx := context.Background()

	require.NoError(t, svc.Request(ctx, member("new@hostel.test", models.TierSilver), mealID, &got))
	assert.EqualValues(t, 1, cnt.requests.Load())
	require.Len(t, got, 1)
	assert.Equal(t, collection.LevelSuccess, got[0].Level)

	_, ok := svc.Cache.Peek(query.Key{Resource: repo.ResMeals, Kind: "item", ID: mealID})
	assert.False(t, ok, "the cached meal is dropped so the next read sees the request")
}

func TestRequest_LowestTierForbidden(t *testing.T) {
	t.Parallel()
	svc, cnt := newService(t)

	err := svc.Request(context.Background(), member("new@hostel.test", models.LowestTier), mealID, nil)
	require.ErrorIs(t, err, ErrForbidden)
	assert.Zero(t, cnt.gets.Load())
	assert.Zero(t, cnt.requests.Load())
}

func TestLike_InvalidatesAfterAck(t *testing.T) {
	t.Parallel()
	svc, cnt := newService(t)
	ctx := context.Background()

	_, err := svc.Meal(ctx, mealID)
	require.NoError(t, err)
	require.NoError(t, svc.Like(ctx, member("new@hostel.test", models.TierGold), mealID, nil))
	assert.EqualValues(t, 1, cnt.likes.Load())

	_, err = svc.Meal(ctx, mealID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, cnt.gets.Load())
}

func TestLikeUpcoming_OncePerMember(t *testing.T) {
	t.Parallel()
	svc, cnt := newService(t)
	ctx := context.Background()

	err := svc.LikeUpcoming(ctx, member("already@hostel.test", models.TierGold), upcomingID, nil)
	require.ErrorIs(t, err, ErrConflict)
	assert.Zero(t, cnt.upcomingLikes.Load())

	require.NoError(t, svc.LikeUpcoming(ctx, member("new@hostel.test", models.TierGold), upcomingID, nil))
	assert.EqualValues(t, 1, cnt.upcomingLikes.Load())
}
