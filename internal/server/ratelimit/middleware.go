package ratelimit

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"
)

// ClientIP identifies the caller by the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Middleware rejects requests over the caller's limit with 429 and sets
// X-RateLimit-* headers on every limited route.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, info := l.Allow(ClientIP(r), r.URL.Path, r.Method)
		h := w.Header()
		if info.Limit > 0 {
			h.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
		}
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		body := map[string]any{
			"error":     "rate_limit_exceeded",
			"message":   "Too many requests for this route, retry later.",
			"limit":     info.Limit,
			"remaining": info.Remaining,
			"reset_at":  info.ResetTime.Format(time.RFC3339),
		}
		if info.RetryAfter > 0 {
			wait := int(info.RetryAfter.Seconds()) + 1
			body["retry_after"] = wait
			h.Set("Retry-After", strconv.Itoa(wait))
		}
		log.Printf("[rate-limit] %s %s %s denied, retry in %v", ClientIP(r), r.Method, r.URL.Path, info.RetryAfter)

		h.Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(body)
	})
}
