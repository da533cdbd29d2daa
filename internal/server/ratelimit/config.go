package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig is the limit for one route.
type EndpointConfig struct {
	Path   string        // Route pattern, "*" matches one path segment
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
	Exempt bool          // Never limited
}

// LoadConfig reads the RATE_LIMIT_* environment variables.
func LoadConfig() *Config {
	if !envValue("RATE_LIMIT_ENABLED", true, strconv.ParseBool) {
		return &Config{Enabled: false}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    envValue("RATE_LIMIT_DEFAULT_LIMIT", 1000, strconv.Atoi),
		DefaultWindow:   envValue("RATE_LIMIT_DEFAULT_WINDOW", time.Minute, time.ParseDuration),
		CleanupInterval: envValue("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute, time.ParseDuration),
		Whitelist:       parseIPList(envValue("RATE_LIMIT_WHITELIST", "", parseString)),
		Blacklist:       parseIPList(envValue("RATE_LIMIT_BLACKLIST", "", parseString)),
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the per-route limits. Buckets are shared by
// every path a route matches, so a client's verifications across many claims
// draw from one budget.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Starting verification work is the expensive path.
		{Path: "/claims", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},
		{Path: "/claims/*/runs", Method: "POST", Limit: 60, Window: time.Hour, Burst: 5},
		{Path: "/claims/*/verifications", Method: "POST", Limit: 120, Window: time.Hour, Burst: 10},

		// Human input on suspended runs
		{Path: "/runs/*/clarifications", Method: "POST", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/clarifications/*/respond", Method: "POST", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/clarifications/*/cancel", Method: "POST", Limit: 100, Window: time.Minute, Burst: 10},

		{Path: "/audit/export", Method: "GET", Limit: 10, Window: time.Minute, Burst: 2},

		// Probes and long-lived event streams
		{Path: "/health", Method: "GET", Exempt: true},
		{Path: "/claims/*/events", Method: "GET", Exempt: true},
	}
}

// envValue parses the environment variable key, falling back to def when it
// is unset or malformed.
func envValue[T any](key string, def T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func parseString(s string) (string, error) { return s, nil }

// parseIPList parses a comma-separated list of client addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == ' ' }) {
		result[ip] = true
	}
	return result
}
