// Package config provides configuration loading and validation for the
// server and the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Store kinds
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Evidence search providers
const (
	SearchNone   = "none"
	SearchStatic = "static"
	SearchGoogle = "google"
)

// Text analyzers
const (
	AnalyzerHeuristic = "heuristic"
	AnalyzerGemini    = "gemini"
)

// Config represents the service configuration that can be loaded from a JSON file.
// All fields are optional; missing values are filled from Defaults.
type Config struct {
	// Server
	Port int `json:"port,omitempty"` // HTTP listen port

	// Storage
	Store       string `json:"store,omitempty"`        // memory | postgres
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL

	// Clarifications
	DisableClarifications bool `json:"disable_clarifications,omitempty"` // Never suspend runs for human input
	SweepIntervalSeconds  int  `json:"sweep_interval_seconds,omitempty"` // How often expired requests are swept

	// Evidence search
	SearchProvider        string  `json:"search_provider,omitempty"`          // none | static | google
	EvidenceFile          string  `json:"evidence_file,omitempty"`            // JSON corpus for the static provider
	GoogleAPIKey          string  `json:"google_api_key,omitempty"`           // Custom Search API key
	GoogleCX              string  `json:"google_cx,omitempty"`                // Custom Search engine id
	SearchRatePerSecond   float64 `json:"search_rate_per_second,omitempty"`   // Outbound search rate
	SearchBurst           int     `json:"search_burst,omitempty"`             // Outbound search burst
	SearchCacheTTLSeconds int     `json:"search_cache_ttl_seconds,omitempty"` // Search result cache lifetime

	// Analysis
	Analyzer       string `json:"analyzer,omitempty"`         // heuristic | gemini
	GeminiAPIKey   string `json:"gemini_api_key,omitempty"`   // Gemini API key
	MinClaimLength int    `json:"min_claim_length,omitempty"` // Shortest accepted claim text

	// Behavior
	Verbose bool `json:"verbose,omitempty"` // Print detailed debug information
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:                  8080,
		Store:                 StoreMemory,
		SweepIntervalSeconds:  30,
		SearchProvider:        SearchStatic,
		SearchRatePerSecond:   1,
		SearchBurst:           1,
		SearchCacheTTLSeconds: 3600,
		Analyzer:              AnalyzerHeuristic,
		MinClaimLength:        10,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv overrides fields from environment variables that are set.
// Malformed numbers are reported rather than ignored.
func (c *Config) ApplyEnv() error {
	strings := map[string]*string{
		"STORE":           &c.Store,
		"DATABASE_URL":    &c.DatabaseURL,
		"SEARCH_PROVIDER": &c.SearchProvider,
		"EVIDENCE_FILE":   &c.EvidenceFile,
		"GOOGLE_API_KEY":  &c.GoogleAPIKey,
		"GOOGLE_CX":       &c.GoogleCX,
		"ANALYZER":        &c.Analyzer,
		"GEMINI_API_KEY":  &c.GeminiAPIKey,
	}
	for key, field := range strings {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*field = v
		}
	}

	ints := map[string]*int{
		"PORT":                     &c.Port,
		"SWEEP_INTERVAL_SECONDS":   &c.SweepIntervalSeconds,
		"SEARCH_BURST":             &c.SearchBurst,
		"SEARCH_CACHE_TTL_SECONDS": &c.SearchCacheTTLSeconds,
		"MIN_CLAIM_LENGTH":         &c.MinClaimLength,
	}
	for key, field := range ints {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %v", key, err)
		}
		*field = n
	}

	if v := os.Getenv("SEARCH_RATE_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid SEARCH_RATE_PER_SECOND: %v", err)
		}
		c.SearchRatePerSecond = f
	}
	if v := os.Getenv("DISABLE_CLARIFICATIONS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DISABLE_CLARIFICATIONS: %v", err)
		}
		c.DisableClarifications = b
	}
	return nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	switch c.Store {
	case "", StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config error: 'database_url' is required for the postgres store")
		}
	default:
		return fmt.Errorf("config error: unknown store %q", c.Store)
	}

	switch c.SearchProvider {
	case "", SearchNone, SearchStatic:
	case SearchGoogle:
		if c.GoogleAPIKey == "" || c.GoogleCX == "" {
			return fmt.Errorf("config error: 'google_api_key' and 'google_cx' are required for google search")
		}
	default:
		return fmt.Errorf("config error: unknown search provider %q", c.SearchProvider)
	}

	switch c.Analyzer {
	case "", AnalyzerHeuristic:
	case AnalyzerGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("config error: 'gemini_api_key' is required for the gemini analyzer")
		}
	default:
		return fmt.Errorf("config error: unknown analyzer %q", c.Analyzer)
	}

	// Validate numeric ranges
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.SweepIntervalSeconds < 0 {
		return fmt.Errorf("config error: 'sweep_interval_seconds' must be non-negative")
	}
	if c.SearchRatePerSecond < 0 || c.SearchBurst < 0 || c.SearchCacheTTLSeconds < 0 {
		return fmt.Errorf("config error: search limits must be non-negative")
	}
	if c.MinClaimLength < 0 {
		return fmt.Errorf("config error: 'min_claim_length' must be non-negative")
	}

	// Validate file paths exist (if specified)
	if c.EvidenceFile != "" {
		if _, err := os.Stat(c.EvidenceFile); os.IsNotExist(err) {
			return fmt.Errorf("config error: evidence file not found: %s", c.EvidenceFile)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Store == "" {
		result.Store = defaults.Store
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.SearchProvider == "" {
		result.SearchProvider = defaults.SearchProvider
	}
	if result.EvidenceFile == "" {
		result.EvidenceFile = defaults.EvidenceFile
	}
	if result.GoogleAPIKey == "" {
		result.GoogleAPIKey = defaults.GoogleAPIKey
	}
	if result.GoogleCX == "" {
		result.GoogleCX = defaults.GoogleCX
	}
	if result.Analyzer == "" {
		result.Analyzer = defaults.Analyzer
	}
	if result.GeminiAPIKey == "" {
		result.GeminiAPIKey = defaults.GeminiAPIKey
	}

	// Numeric fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.SweepIntervalSeconds == 0 {
		result.SweepIntervalSeconds = defaults.SweepIntervalSeconds
	}
	if result.SearchRatePerSecond == 0 {
		result.SearchRatePerSecond = defaults.SearchRatePerSecond
	}
	if result.SearchBurst == 0 {
		result.SearchBurst = defaults.SearchBurst
	}
	if result.SearchCacheTTLSeconds == 0 {
		result.SearchCacheTTLSeconds = defaults.SearchCacheTTLSeconds
	}
	if result.MinClaimLength == 0 {
		result.MinClaimLength = defaults.MinClaimLength
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// SweepInterval returns the expiry sweep period.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// SearchCacheTTL returns how long search results are cached.
func (c *Config) SearchCacheTTL() time.Duration {
	return time.Duration(c.SearchCacheTTLSeconds) * time.Second
}
