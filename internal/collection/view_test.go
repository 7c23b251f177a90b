package collection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/hostel_meals/internal/query"
)

type meal struct {
	ID      string
	Title   string
	Likes   int
	Reviews int
}

type fakeSource struct {
	mu        sync.Mutex
	items     []meal
	lists     int
	counts    int
	deletes   int
	failNext  error
	lastParam Params
}

func (s *fakeSource) Resource() string { return "meals" }

func (s *fakeSource) filtered(p Params) []meal {
	var out []meal
	for _, m := range s.items {
		if p.Search == "" || strings.Contains(m.Title, p.Search) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if p.Sort == "reviews_count" {
			return out[i].Reviews > out[j].Reviews
		}
		return out[i].Likes > out[j].Likes
	})
	return out
}

func (s *fakeSource) List(_ context.Context, p Params) ([]meal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	s.lastParam = p
	all := s.filtered(p)
	from := p.Offset()
	if from >= len(all) {
		return nil, nil
	}
	to := min(from+p.Size, len(all))
	return append([]meal(nil), all[from:to]...), nil
}

func (s *fakeSource) Count(_ context.Context, p Params) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts++
	return len(s.filtered(p)), nil
}

func (s *fakeSource) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	for i, m := range s.items {
		if m.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func seed(n int) *fakeSource {
	src := &fakeSource{}
	for i := 0; i < n; i++ {
		src.items = append(src.items, meal{ID: fmt.Sprint(i), Title: fmt.Sprintf("meal %d", i), Likes: n - i, Reviews: i})
	}
	return src
}

type recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func newView(t *testing.T, src *fakeSource, st State, opts ...func(*Config[meal])) (*View[meal], *recorder) {
	t.Helper()
	rec := &recorder{}
	cfg := Config[meal]{
		Source:     src,
		Cache:      query.New(),
		SortFields: []string{"likes", "reviews_count"},
		Notifier:   rec,
	}
	for _, o := range opts {
		o(&cfg)
	}
	v, err := New(cfg, st)
	require.NoError(t, err)
	return v, rec
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name                       string
		page, size, total          int
		wantPage, wantPages        int
		wantPrev, wantNext         bool
		wantPrevPage, wantNextPage int
	}{
		{name: "empty", page: 1, size: 10, total: 0, wantPage: 1, wantPages: 0, wantPrevPage: 1, wantNextPage: 1},
		{name: "exact multiple", page: 1, size: 10, total: 20, wantPage: 1, wantPages: 2, wantNext: true, wantPrevPage: 1, wantNextPage: 2},
		{name: "partial last page", page: 3, size: 10, total: 21, wantPage: 3, wantPages: 3, wantPrev: true, wantPrevPage: 2, wantNextPage: 3},
		{name: "middle", page: 2, size: 10, total: 25, wantPage: 2, wantPages: 3, wantPrev: true, wantNext: true, wantPrevPage: 1, wantNextPage: 3},
		{name: "past the end clamps", page: 9, size: 10, total: 11, wantPage: 2, wantPages: 2, wantPrev: true, wantPrevPage: 1, wantNextPage: 2},
		{name: "zero page clamps", page: 0, size: 10, total: 5, wantPage: 1, wantPages: 1, wantPrevPage: 1, wantNextPage: 1},
		{name: "default size", page: 1, size: 0, total: 11, wantPage: 1, wantPages: 2, wantNext: true, wantPrevPage: 1, wantNextPage: 2},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := Paginate(tt.page, tt.size, tt.total)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantPages, p.TotalPages)
			assert.Equal(t, tt.wantPrev, p.HasPrev)
			assert.Equal(t, tt.wantNext, p.HasNext)
			assert.Equal(t, tt.wantPrevPage, p.PrevPage)
			assert.Equal(t, tt.wantNextPage, p.NextPage)
		})
	}
}

func TestPaginate_PageCountIsCeil(t *testing.T) {
	for total := 0; total <= 45; total++ {
		p := Paginate(1, DefaultPageSize, total)
		want := total / DefaultPageSize
		if total%DefaultPageSize != 0 {
			want++
		}
		require.Equal(t, want, p.TotalPages, "total=%d", total)

		last := Paginate(want, DefaultPageSize, total)
		assert.False(t, last.HasNext, "next disabled on the last page, total=%d", total)
		assert.False(t, p.HasPrev, "prev disabled on page 1")
	}
}

func TestNew_RejectsUnknownSort(t *testing.T) {
	_, err := New(Config[meal]{Source: seed(1), Cache: query.New(), SortFields: []string{"likes"}}, State{Sort: "price"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestNew_DefaultsToFirstSortField(t *testing.T) {
	v, _ := newView(t, seed(1), State{})
	assert.Equal(t, "likes", v.State().Sort)
	assert.Equal(t, 1, v.State().Page)
}

func TestView_LoadUsesCacheForUnchangedKey(t *testing.T) {
	src := seed(25)
	v, _ := newView(t, src, State{})
	ctx := context.Background()

	page, err := v.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, page.Items, 10)
	assert.Equal(t, 3, page.Pagination.TotalPages)

	_, err = v.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, src.lists)
	assert.Equal(t, 1, src.counts)
}

func TestView_SortAndSearchRekey(t *testing.T) {
	src := seed(25)
	v, _ := newView(t, src, State{})
	ctx := context.Background()

	_, err := v.Load(ctx)
	require.NoError(t, err)
	v.Next()
	assert.Equal(t, 2, v.State().Page)
	byLikes := v.Key()

	require.NoError(t, v.SetSort("reviews_count"))
	assert.NotEqual(t, byLikes, v.Key())
	assert.Equal(t, 1, v.State().Page)
	_, err = v.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.lists, "changing the sort field triggers a new fetch")
	assert.Equal(t, "reviews_count", src.lastParam.Sort)

	require.ErrorIs(t, v.SetSort("price"), ErrValidation)
	assert.Equal(t, "reviews_count", v.State().Sort)

	v.SetSearch("meal 1")
	_, err = v.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, src.lists)
	assert.Equal(t, "meal 1", src.lastParam.Search)
}

func TestView_NavigationBoundariesAreNoOps(t *testing.T) {
	src := seed(21)
	v, _ := newView(t, src, State{})
	ctx := context.Background()

	v.Next()
	assert.Equal(t, 1, v.State().Page, "next before the first load does nothing")

	v.Prev()
	assert.Equal(t, 1, v.State().Page)

	_, err := v.Load(ctx)
	require.NoError(t, err)
	v.Next()
	_, err = v.Load(ctx)
	require.NoError(t, err)
	v.Next()
	page, err := v.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Pagination.Page)
	assert.False(t, page.Pagination.HasNext)
	assert.Len(t, page.Items, 1)

	calls := src.lists
	v.Next()
	assert.Equal(t, 3, v.State().Page)
	_, err = v.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, calls, src.lists)

	v.Goto(7)
	assert.Equal(t, 3, v.State().Page)
	v.Goto(1)
	assert.Equal(t, 1, v.State().Page)
}

func TestView_CancelledDestroyIssuesNoCall(t *testing.T) {
	src := seed(12)
	v, rec := newView(t, src, State{}, func(c *Config[meal]) {
		c.Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return false, nil })
	})
	ctx := context.Background()

	before, err := v.Load(ctx)
	require.NoError(t, err)

	err = v.Destroy(ctx, "Delete meal 0?", Mutation{
		Name: "delete meal",
		Call: func(ctx context.Context) error { return src.Delete(ctx, "0") },
	})
	require.ErrorIs(t, err, ErrCancelled)
	assert.Zero(t, src.deletes)
	assert.Empty(t, rec.notices)

	after, err := v.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestView_DestroyWithoutAnswerNeedsConfirmation(t *testing.T) {
	src := seed(3)
	v, _ := newView(t, src, State{})

	err := v.Destroy(context.Background(), "Delete?", Mutation{
		Name: "delete meal",
		Call: func(ctx context.Context) error { return src.Delete(ctx, "0") },
	})
	require.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Zero(t, src.deletes)
}

func TestView_DeleteSuccessShrinksListAndNotifies(t *testing.T) {
	src := seed(5)
	v, rec := newView(t, src, State{}, func(c *Config[meal]) {
		c.Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })
	})
	ctx := context.Background()

	before, err := v.Load(ctx)
	require.NoError(t, err)

	err = v.Destroy(ctx, "Delete?", Mutation{
		Name:    "delete meal",
		Success: "Meal deleted",
		Call:    func(ctx context.Context) error { return src.Delete(ctx, "2") },
	})
	require.NoError(t, err)

	after, err := v.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, after.Items, len(before.Items)-1)
	assert.Equal(t, before.Pagination.TotalItems-1, after.Pagination.TotalItems)
	require.Len(t, rec.notices, 1)
	assert.Equal(t, LevelSuccess, rec.notices[0].Level)
}

func TestView_DeleteFailureKeepsCacheAndNotifies(t *testing.T) {
	src := seed(5)
	src.failNext = errors.New("upstream status 500")
	v, rec := newView(t, src, State{}, func(c *Config[meal]) {
		c.Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })
	})
	ctx := context.Background()

	before, err := v.Load(ctx)
	require.NoError(t, err)
	lists := src.lists

	err = v.Destroy(ctx, "Delete?", Mutation{
		Name: "delete meal",
		Call: func(ctx context.Context) error { return src.Delete(ctx, "2") },
	})
	require.Error(t, err)

	after, err := v.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Items, after.Items)
	assert.Equal(t, lists, src.lists, "a failed mutation does not invalidate the cache")
	require.Len(t, rec.notices, 1)
	assert.Equal(t, LevelError, rec.notices[0].Level)
	assert.Contains(t, rec.notices[0].Message, "500")
}

func TestView_DeletingLastItemOfLastPageFallsBack(t *testing.T) {
	src := seed(11)
	v, _ := newView(t, src, State{Page: 2})
	ctx := context.Background()

	page, err := v.Load(ctx)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	require.NoError(t, v.Mutate(ctx, Mutation{
		Name: "delete meal",
		Call: func(ctx context.Context) error { return src.Delete(ctx, page.Items[0].ID) },
	}))

	page, err = v.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Len(t, page.Items, 10)
}

func TestView_RelatedResourcesInvalidated(t *testing.T) {
	src := seed(2)
	cache := query.New()
	v, _ := newView(t, src, State{}, func(c *Config[meal]) {
		c.Cache = cache
		c.Related = []string{"serve-requests"}
	})
	other := query.Key{Resource: "serve-requests", Kind: "list", Page: 1}
	_, err := cache.Fetch(context.Background(), other, func(context.Context) (any, error) { return 1, nil })
	require.NoError(t, err)

	require.NoError(t, v.Mutate(context.Background(), Mutation{
		Name: "serve",
		Call: func(context.Context) error { return nil },
	}))

	_, ok := cache.Peek(other)
	assert.False(t, ok)
}

func TestView_StatusFollowsCache(t *testing.T) {
	v, _ := newView(t, seed(1), State{})
	assert.Equal(t, query.StatusIdle, v.Status())
	_, err := v.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, query.StatusSuccess, v.Status())
}
