package fundcache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/quantgrid/oppscan/internal/contracts"
	"github.com/quantgrid/oppscan/pkg/logger"
)

// RefreshFunc fetches a fresh fundamentals snapshot from the upstream
// provider. It is only invoked when the cached entry is missing or
// older than the cache TTL.
type RefreshFunc func(ctx context.Context, symbol string) (*contracts.Fundamentals, error)

// Cache serves fundamentals with a long TTL so that the slow per-symbol
// provider calls happen at most once per symbol per TTL window.
// Concurrent refreshes for the same symbol are collapsed into a single
// upstream call; callers for other symbols proceed independently.
type Cache struct {
	store      Store
	ttl        time.Duration
	serveStale bool
	now        func() time.Time
	group      singleflight.Group
	logger     *logger.Logger
}

type refreshResult struct {
	fundamentals *contracts.Fundamentals
	stale        bool
}

// Option configures optional Cache behavior.
type Option func(*Cache)

// WithClock overrides the time source. Tests use this to move entries
// across the TTL boundary without sleeping.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithServeStale controls whether an expired entry is returned when
// the refresh fails. Default is true.
func WithServeStale(enabled bool) Option {
	return func(c *Cache) { c.serveStale = enabled }
}

// New creates a fundamentals cache over the given store.
func New(store Store, ttl time.Duration, log *logger.Logger, opts ...Option) *Cache {
	c := &Cache{
		store:      store,
		ttl:        ttl,
		serveStale: true,
		now:        time.Now,
		logger:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrRefresh returns the fundamentals for symbol. A fresh cached
// entry is returned without touching the provider. An expired or
// missing entry triggers refresh; if the refresh fails and an expired
// entry exists, that entry is returned with stale=true (when serving
// stale is enabled). A miss with a failed refresh returns the refresh
// error.
func (c *Cache) GetOrRefresh(ctx context.Context, symbol string, refresh RefreshFunc) (*contracts.Fundamentals, bool, error) {
	entry, err := c.store.Get(ctx, symbol)
	if err != nil {
		// A broken store read degrades to a miss; the refresh path
		// still works and the Put failure, if any, is surfaced there.
		c.logger.WithError(err).WithField("symbol", symbol).Warn("fundamentals cache read failed")
		entry = nil
	}

	if entry != nil && c.age(entry) < c.ttl {
		return &entry.Fundamentals, false, nil
	}

	v, refreshErr, _ := c.group.Do(symbol, func() (interface{}, error) {
		fresh, err := refresh(ctx, symbol)
		if err != nil {
			return nil, err
		}
		put := Entry{Fundamentals: *fresh, FetchedAt: c.now()}
		if err := c.store.Put(ctx, symbol, put); err != nil {
			return nil, &contracts.PersistenceError{Op: fmt.Sprintf("cache fundamentals for %s", symbol), Err: err}
		}
		return &refreshResult{fundamentals: fresh}, nil
	})

	if refreshErr != nil {
		if entry != nil && c.serveStale {
			c.logger.WithError(refreshErr).WithFields(map[string]interface{}{
				"symbol":     symbol,
				"fetched_at": entry.FetchedAt,
			}).Warn("refresh failed, serving stale fundamentals")
			return &entry.Fundamentals, true, nil
		}
		return nil, false, refreshErr
	}

	result := v.(*refreshResult)
	return result.fundamentals, result.stale, nil
}

// Age reports how long ago the cached entry for symbol was fetched,
// and whether an entry exists at all.
func (c *Cache) Age(ctx context.Context, symbol string) (time.Duration, bool) {
	entry, err := c.store.Get(ctx, symbol)
	if err != nil || entry == nil {
		return 0, false
	}
	return c.age(entry), true
}

func (c *Cache) age(entry *Entry) time.Duration {
	return c.now().Sub(entry.FetchedAt)
}
