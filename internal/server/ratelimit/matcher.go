package ratelimit

import (
	"strings"
)

// MatchEndpoint returns the configuration whose route matches method and
// path, or nil. Route paths are split on "/" and a "*" segment matches any
// single non-empty segment, so "/claims/*/runs" matches "/claims/{id}/runs".
// The first match in configs wins.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	segments := splitPath(path)
	for i := range configs {
		cfg := &configs[i]
		if cfg.Method == method && matchSegments(splitPath(cfg.Path), segments) {
			return cfg
		}
	}
	return nil
}

func matchSegments(pattern, segments []string) bool {
	if len(pattern) != len(segments) {
		return false
	}
	for i, p := range pattern {
		if p == "*" {
			if segments[i] == "" {
				return false
			}
			continue
		}
		if p != segments[i] {
			return false
		}
	}
	return true
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}
