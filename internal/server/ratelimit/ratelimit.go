// Package ratelimit provides per-client, per-route request limiting on
// token buckets from golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleTTL is how long an unused bucket is kept before eviction.
const idleTTL = time.Hour

// Info describes a client's standing against one route after a request.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

func defaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter keeps one token bucket per client and matched route.
type Limiter struct {
	config *Config
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stop context.CancelFunc
	done chan struct{}
}

// NewLimiter builds a limiter from config, or from defaults when config is
// nil. An enabled limiter evicts idle buckets in the background until Stop.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = defaultConfig()
	}
	l := &Limiter{
		config:  config,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stop:    func() {},
	}
	if config.Enabled && config.CleanupInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		l.stop = cancel
		l.done = make(chan struct{})
		go l.sweep(ctx, config.CleanupInterval)
	}
	return l
}

// Allow takes one token from the client's bucket for the route matching
// path and method. Unmatched paths get a bucket of their own at the default
// limit.
func (l *Limiter) Allow(clientID, path, method string) (bool, Info) {
	switch {
	case !l.config.Enabled, l.config.Whitelist[clientID]:
		return true, Info{Allowed: true}
	case l.config.Blacklist[clientID]:
		return false, Info{}
	}

	ep := EndpointConfig{Path: path, Limit: l.config.DefaultLimit, Window: l.config.DefaultWindow}
	if matched := MatchEndpoint(path, method, l.config.EndpointConfigs); matched != nil {
		ep = *matched
	}
	if ep.Exempt || ep.Limit <= 0 || ep.Window <= 0 {
		return true, Info{Allowed: true}
	}

	now := l.now()
	lim := l.bucketFor(clientID+":"+method+" "+ep.Path, ep, now)
	ok := lim.AllowN(now, 1)
	left := lim.TokensAt(now)
	perSec := float64(lim.Limit())

	info := Info{Allowed: ok, Limit: ep.Limit, Remaining: max(int(left), 0), ResetTime: now}
	if deficit := float64(lim.Burst()) - left; deficit > 0 {
		info.ResetTime = now.Add(seconds(deficit / perSec))
	}
	if !ok {
		info.RetryAfter = seconds((1 - left) / perSec)
	}
	return ok, info
}

func (l *Limiter) bucketFor(key string, ep EndpointConfig, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[key]
	if b == nil {
		burst := ep.Burst
		if burst <= 0 {
			burst = ep.Limit
		}
		b = &bucket{lim: rate.NewLimiter(rate.Limit(float64(ep.Limit)/ep.Window.Seconds()), burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (l *Limiter) sweep(ctx context.Context, every time.Duration) {
	defer close(l.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.evictIdle()
		}
	}
}

// evictIdle drops buckets unused for longer than idleTTL.
func (l *Limiter) evictIdle() {
	cutoff := l.now().Add(-idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stop ends background eviction and waits for it to exit. Calling it more
// than once is harmless.
func (l *Limiter) Stop() {
	l.stop()
	if l.done != nil {
		<-l.done
	}
}
