package evidence

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Cached memoizes search results per normalized query.
type Cached struct {
	next  Provider
	cache *gocache.Cache
}

// NewCached wraps next with a TTL cache.
func NewCached(next Provider, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Search implements Provider.
func (c *Cached) Search(ctx context.Context, query string) ([]Item, error) {
	key := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	if v, found := c.cache.Get(key); found {
		return append([]Item(nil), v.([]Item)...), nil
	}

	items, err := c.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, append([]Item(nil), items...))
	return items, nil
}

// RateLimited spaces out calls to a provider with a token bucket.
type RateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

// NewRateLimited allows requestsPerSecond calls with the given burst.
func NewRateLimited(next Provider, requestsPerSecond float64, burst int) *RateLimited {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Search implements Provider. It blocks until a token is available or ctx ends.
func (r *RateLimited) Search(ctx context.Context, query string) ([]Item, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Search(ctx, query)
}
