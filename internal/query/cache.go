// Package query caches upstream reads by Key, coalesces concurrent reads of
// the same key and drops cached data when a mutation invalidates a resource.
package query

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const DefaultStaleTime = 30 * time.Second

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

type Entry struct {
	Status    Status
	Data      any
	Err       error
	UpdatedAt time.Time
}

type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

func (o Origin) String() string {
	if o == OriginRemote {
		return "remote"
	}
	return "local"
}

// Listener is called after resources were invalidated, outside the cache lock.
type Listener func(origin Origin, resources []string)

type Cache struct {
	mu        sync.Mutex
	entries   map[Key]*Entry
	gens      map[string]uint64
	listeners []Listener

	group     singleflight.Group
	staleTime time.Duration
	now       func() time.Time
}

type Option func(*Cache)

func WithStaleTime(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.staleTime = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries:   make(map[Key]*Entry),
		gens:      make(map[string]uint64),
		staleTime: DefaultStaleTime,
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache) OnInvalidate(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Fetch returns fresh cached data for key or runs fn. Callers asking for the
// same key while fn runs share its result. fn is detached from the caller's
// cancellation so one caller leaving does not fail the others; a caller whose
// ctx ends gets ctx.Err() and the result is still cached.
func (c *Cache) Fetch(ctx context.Context, key Key, fn func(context.Context) (any, error)) (any, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.Status == StatusSuccess && c.now().Sub(e.UpdatedAt) < c.staleTime {
		data := e.Data
		c.mu.Unlock()
		cacheHits.WithLabelValues(key.Resource).Inc()
		return data, nil
	}
	gen := c.gens[key.Resource]
	if e, ok := c.entries[key]; ok {
		e.Status = StatusLoading
	} else {
		c.entries[key] = &Entry{Status: StatusLoading}
	}
	c.mu.Unlock()

	cacheMisses.WithLabelValues(key.Resource).Inc()

	flight := key.String() + "#" + strconv.FormatUint(gen, 10)
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flight, func() (any, error) {
		data, err := fn(detached)
		c.store(key, gen, data, err)
		return data, err
	})

	select {
	case res := <-ch:
		if res.Shared {
			cacheCoalesced.WithLabelValues(key.Resource).Inc()
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) store(key Key, gen uint64, data any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[key.Resource] != gen {
		cacheDiscarded.WithLabelValues(key.Resource).Inc()
		return
	}

	if err != nil {
		cacheErrors.WithLabelValues(key.Resource).Inc()
		var prev any
		if e, ok := c.entries[key]; ok {
			prev = e.Data
		}
		c.entries[key] = &Entry{Status: StatusError, Data: prev, Err: err, UpdatedAt: c.now()}
		return
	}
	c.entries[key] = &Entry{Status: StatusSuccess, Data: data, UpdatedAt: c.now()}
}

// Peek returns a copy of the entry for key without fetching.
func (c *Cache) Peek(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Invalidate drops every entry of the given resources and tells listeners.
func (c *Cache) Invalidate(resources ...string) {
	c.invalidate(OriginLocal, resources)
}

// InvalidateFromRemote is Invalidate for invalidations announced by another
// replica.
func (c *Cache) InvalidateFromRemote(resources ...string) {
	c.invalidate(OriginRemote, resources)
}

func (c *Cache) invalidate(origin Origin, resources []string) {
	if len(resources) == 0 {
		return
	}
	set := make(map[string]struct{}, len(resources))
	for _, r := range resources {
		set[r] = struct{}{}
	}

	c.mu.Lock()
	for k := range c.entries {
		if _, ok := set[k.Resource]; ok {
			delete(c.entries, k)
		}
	}
	for r := range set {
		c.gens[r]++
		cacheInvalidations.WithLabelValues(r, origin.String()).Inc()
	}
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	for _, l := range listeners {
		l(origin, resources)
	}
}

// Sweep evicts settled entries older than maxAge and reports how many went.
func (c *Cache) Sweep(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-maxAge)
	n := 0
	for k, e := range c.entries {
		if e.Status == StatusLoading {
			continue
		}
		if e.UpdatedAt.Before(cutoff) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Get is the typed form of Fetch.
func Get[T any](ctx context.Context, c *Cache, key Key, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("query: cached value for %s is %T", key, v)
	}
	return t, nil
}
