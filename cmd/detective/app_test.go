package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonathan/claim-detective/internal/config"
	"github.com/jonathan/claim-detective/internal/evidence"
	"github.com/jonathan/claim-detective/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearConfigEnv neutralizes variables a local .env may have set.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STORE", "DATABASE_URL", "SEARCH_PROVIDER", "EVIDENCE_FILE",
		"GOOGLE_API_KEY", "GOOGLE_CX", "ANALYZER", "GEMINI_API_KEY",
		"PORT", "SWEEP_INTERVAL_SECONDS", "MIN_CLAIM_LENGTH",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), cfg)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	clearConfigEnv(t)
	path := writeFile(t, "config.json", `{"port": 9000, "search_provider": "none", "min_claim_length": 20}`)
	t.Setenv("PORT", "9100")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, config.SearchNone, cfg.SearchProvider)
	assert.Equal(t, 20, cfg.MinClaimLength)
	assert.Equal(t, config.StoreMemory, cfg.Store)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "malformed file",
			file:    `{not json`,
			wantErr: "failed to load config",
		},
		{
			name:    "bad env number",
			env:     map[string]string{"PORT": "eighty"},
			wantErr: "invalid PORT",
		},
		{
			name:    "postgres without url",
			env:     map[string]string{"STORE": "postgres"},
			wantErr: "database_url",
		},
		{
			name:    "gemini without key",
			file:    `{"analyzer": "gemini"}`,
			wantErr: "gemini_api_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, "config.json", tt.file)
			}

			_, err := loadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewEvidenceProvider(t *testing.T) {
	ctx := context.Background()

	none, err := newEvidenceProvider(ctx, config.Config{SearchProvider: config.SearchNone})
	require.NoError(t, err)
	assert.Nil(t, none)

	empty, err := newEvidenceProvider(ctx, config.Config{SearchProvider: config.SearchStatic})
	require.NoError(t, err)
	assert.IsType(t, &evidence.Static{}, empty)

	corpus := writeFile(t, "corpus.json", `[
		{"url": "https://www.cdc.gov/flu/report", "title": "Flu report", "snippet": "Data confirms the vaccine reduces hospitalizations.", "keywords": ["vaccine", "hospitalizations"]}
	]`)
	loaded, err := newEvidenceProvider(ctx, config.Config{SearchProvider: config.SearchStatic, EvidenceFile: corpus})
	require.NoError(t, err)
	items, err := loaded.Search(ctx, "vaccine hospitalizations")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "cdc.gov", items[0].Domain)

	_, err = newEvidenceProvider(ctx, config.Config{SearchProvider: config.SearchStatic, EvidenceFile: filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)
}

func TestNewApp_MemoryStore(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("JWT_SECRET", "")

	cfg := config.Defaults()
	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &store.Memory{}, a.repo)
	assert.Equal(t, 6, a.orch.Registry().Len())

	srv, err := a.newServer()
	require.NoError(t, err)
	assert.NotNil(t, srv.Handler())
}
