package notice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/pkg/db"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	gdb, err := db.Open(context.Background(), "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	s, err := NewStore(gdb)
	require.NoError(t, err)
	return s
}

func TestCollector_PersistsForSession(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	c := NewCollector(s, "sess-1")
	c.Notify(ctx, collection.Notice{Level: collection.LevelSuccess, Title: "Done", Message: "Meal deleted"})
	c.Notify(ctx, collection.Notice{Level: collection.LevelError, Title: "Could not like meal", Message: "upstream status 500"})

	assert.Len(t, c.Notices(), 2)

	recs, err := s.List(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	others, err := s.List(ctx, "sess-2")
	require.NoError(t, err)
	assert.Empty(t, others)

	require.ErrorIs(t, s.Dismiss(ctx, "sess-2", recs[0].ID), ErrNotFound)
	require.NoError(t, s.Dismiss(ctx, "sess-1", recs[0].ID))
	recs, err = s.List(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestCollector_Anonymous(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	c := NewCollector(s, "")
	c.Notify(ctx, collection.Notice{Level: collection.LevelInfo, Title: "Hi"})
	assert.Len(t, c.Notices(), 1)

	var n int64
	require.NoError(t, s.DB.Model(&Record{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestFromContext(t *testing.T) {
	ctx := context.Background()
	FromContext(ctx).Notify(ctx, collection.Notice{Title: "dropped"})

	c := NewCollector(nil, "")
	FromContext(IntoContext(ctx, c)).Notify(ctx, collection.Notice{Title: "kept"})
	require.Len(t, c.Notices(), 1)
	assert.Equal(t, "kept", c.Notices()[0].Title)
}

func TestDeleteBefore(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Add(ctx, "sess-1", collection.Notice{Title: "old"})
	require.NoError(t, err)

	n, err := s.DeleteBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
