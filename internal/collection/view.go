// Package collection presents a paginated, sortable, searchable window over a
// remote collection and applies mutations that invalidate it.
package collection

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/Skotchmaster/hostel_meals/internal/query"
	"github.com/Skotchmaster/hostel_meals/pkg/logging"
)

type Params struct {
	Sort   string
	Search string
	Page   int
	Size   int
	Filter url.Values
}

func (p Params) Offset() int {
	return (p.Page - 1) * p.Size
}

// Source is the remote side of a view.
type Source[T any] interface {
	Resource() string
	List(ctx context.Context, p Params) ([]T, error)
	Count(ctx context.Context, p Params) (int, error)
}

type Config[T any] struct {
	Source Source[T]
	Cache  *query.Cache
	// SortFields lists the mutually exclusive sort options; the first is the default.
	SortFields []string
	PageSize   int
	// Related resources are invalidated together with the source's resource.
	Related   []string
	Notifier  Notifier
	Confirmer Confirmer
}

type State struct {
	Sort   string
	Search string
	Page   int
	Filter url.Values
}

type Page[T any] struct {
	Items       []T        `json:"items"`
	Pagination  Pagination `json:"pagination"`
	Sort        string     `json:"sort"`
	SortOptions []string   `json:"sortOptions"`
	Search      string     `json:"search"`
}

// View is one user's window onto a remote collection: sort, search and page
// plus the cached data behind them. Next, Prev, Goto, SetSort and SetSearch
// move a long-lived view. The HTTP surface is stateless and instead builds a
// fresh view per request from the page, sort and search query parameters,
// with Paginate clamping an out-of-range page.
type View[T any] struct {
	cfg   Config[T]
	state State
	last  *Pagination
}

// New builds a view in the given state. An unknown sort field is a
// validation error.
func New[T any](cfg Config[T], st State) (*View[T], error) {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Notifier == nil {
		cfg.Notifier = discard
	}
	if cfg.Confirmer == nil {
		cfg.Confirmer = pending
	}

	v := &View[T]{cfg: cfg}
	st.Search = strings.TrimSpace(st.Search)
	if st.Sort == "" && len(cfg.SortFields) > 0 {
		st.Sort = cfg.SortFields[0]
	}
	if st.Sort != "" && !slices.Contains(cfg.SortFields, st.Sort) {
		return nil, fmt.Errorf("%w: unknown sort field %q", ErrValidation, st.Sort)
	}
	if st.Page < 1 {
		st.Page = 1
	}
	v.state = st
	return v, nil
}

func (v *View[T]) State() State { return v.state }

func (v *View[T]) Resource() string { return v.cfg.Source.Resource() }

// SetSort switches the single active sort field and goes back to page 1.
func (v *View[T]) SetSort(field string) error {
	if !slices.Contains(v.cfg.SortFields, field) {
		return fmt.Errorf("%w: unknown sort field %q", ErrValidation, field)
	}
	if field != v.state.Sort {
		v.state.Sort = field
		v.state.Page = 1
		v.last = nil
	}
	return nil
}

func (v *View[T]) SetSearch(term string) {
	term = strings.TrimSpace(term)
	if term != v.state.Search {
		v.state.Search = term
		v.state.Page = 1
		v.last = nil
	}
}

// Next moves forward one page; a no-op on the last page or before the first load.
func (v *View[T]) Next() {
	if v.last != nil && v.last.HasNext {
		v.state.Page++
		v.last = nil
	}
}

// Prev moves back one page; a no-op on page 1.
func (v *View[T]) Prev() {
	if v.state.Page > 1 {
		v.state.Page--
		v.last = nil
	}
}

// Goto jumps to page n when it is inside the last loaded page range.
func (v *View[T]) Goto(n int) {
	if n < 1 || v.last == nil || n > v.last.TotalPages || n == v.state.Page {
		return
	}
	v.state.Page = n
	v.last = nil
}

func (v *View[T]) scope() string {
	if len(v.state.Filter) == 0 {
		return ""
	}
	return v.state.Filter.Encode()
}

// Key is the cache key of the current page.
func (v *View[T]) Key() query.Key {
	return query.Key{
		Resource: v.Resource(),
		Kind:     "list",
		Sort:     v.state.Sort,
		Search:   v.state.Search,
		Page:     v.state.Page,
		Scope:    v.scope(),
	}
}

func (v *View[T]) countKey() query.Key {
	return query.Key{
		Resource: v.Resource(),
		Kind:     "count",
		Search:   v.state.Search,
		Scope:    v.scope(),
	}
}

func (v *View[T]) params() Params {
	return Params{
		Sort:   v.state.Sort,
		Search: v.state.Search,
		Page:   v.state.Page,
		Size:   v.cfg.PageSize,
		Filter: v.state.Filter,
	}
}

// Load returns the current page, reading through the cache. A page beyond
// the end (for example after the last item of the last page was deleted)
// falls back to the last page.
func (v *View[T]) Load(ctx context.Context) (Page[T], error) {
	total, err := query.Get(ctx, v.cfg.Cache, v.countKey(), func(ctx context.Context) (int, error) {
		return v.cfg.Source.Count(ctx, v.params())
	})
	if err != nil {
		return Page[T]{}, err
	}

	pg := Paginate(v.state.Page, v.cfg.PageSize, total)
	v.state.Page = pg.Page

	items, err := query.Get(ctx, v.cfg.Cache, v.Key(), func(ctx context.Context) ([]T, error) {
		return v.cfg.Source.List(ctx, v.params())
	})
	if err != nil {
		return Page[T]{}, err
	}
	if items == nil {
		items = []T{}
	}

	v.last = &pg
	return Page[T]{
		Items:       items,
		Pagination:  pg,
		Sort:        v.state.Sort,
		SortOptions: v.cfg.SortFields,
		Search:      v.state.Search,
	}, nil
}

// Status reports the cache state of the current page.
func (v *View[T]) Status() query.Status {
	e, ok := v.cfg.Cache.Peek(v.Key())
	if !ok {
		return query.StatusIdle
	}
	return e.Status
}

type Mutation struct {
	// Name is a short verb phrase used in notices and logs, e.g. "delete meal".
	Name string
	// Success is the notice text shown after the call succeeds.
	Success string
	// Related resources are invalidated on success besides the view's own.
	Related []string
	Call    func(ctx context.Context) error
}

// Mutate runs m. On success the view's resources are invalidated so the next
// Load refetches; on failure nothing cached is touched and an error notice
// is emitted.
func (v *View[T]) Mutate(ctx context.Context, m Mutation) error {
	return Apply(ctx, v.cfg.Cache, v.cfg.Notifier, append([]string{v.Resource()}, v.cfg.Related...), m)
}

// Destroy asks for confirmation before running m. A declined prompt issues
// no call and returns ErrCancelled.
func (v *View[T]) Destroy(ctx context.Context, prompt string, m Mutation) error {
	return ConfirmAndApply(ctx, v.cfg.Confirmer, v.cfg.Cache, v.cfg.Notifier, append([]string{v.Resource()}, v.cfg.Related...), prompt, m)
}

// Apply is Mutate for callers that have no view, such as a detail page.
func Apply(ctx context.Context, cache *query.Cache, n Notifier, resources []string, m Mutation) error {
	l := logging.FromContext(ctx).With("mutation", m.Name)
	if n == nil {
		n = discard
	}

	if err := m.Call(ctx); err != nil {
		l.Warn("mutation_failed", "error", err)
		n.Notify(ctx, Notice{Level: LevelError, Title: "Could not " + m.Name, Message: err.Error()})
		return err
	}

	cache.Invalidate(append(slices.Clone(resources), m.Related...)...)
	if m.Success != "" {
		n.Notify(ctx, Notice{Level: LevelSuccess, Title: "Done", Message: m.Success})
	}
	l.Info("mutation_succeeded")
	return nil
}

func ConfirmAndApply(ctx context.Context, c Confirmer, cache *query.Cache, n Notifier, resources []string, prompt string, m Mutation) error {
	if c == nil {
		c = pending
	}
	ok, err := c.Confirm(ctx, prompt)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCancelled
	}
	return Apply(ctx, cache, n, resources, m)
}

// Item reads one entity through the cache.
func Item[T any](ctx context.Context, cache *query.Cache, resource, id string, fn func(context.Context) (T, error)) (T, error) {
	return query.Get(ctx, cache, query.Key{Resource: resource, Kind: "item", ID: id}, fn)
}
