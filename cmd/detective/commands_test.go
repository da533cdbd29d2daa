package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jonathan/claim-detective/internal/config"
	"github.com/jonathan/claim-detective/internal/server"
	"github.com/jonathan/claim-detective/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCollectClaims(t *testing.T) {
	t.Run("arguments only", func(t *testing.T) {
		got, err := collectClaims([]string{"  first claim text  ", "", "second claim text"}, "")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "first claim text", got[0].ClaimText)
	})

	t.Run("plain text file", func(t *testing.T) {
		path := writeFile(t, "claims.txt", "# comments are skipped\nThe bridge opened in 1932.\n\n  Water boils at 90 degrees at sea level.  \n")
		got, err := collectClaims([]string{"from args first"}, path)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "from args first", got[0].ClaimText)
		assert.Equal(t, "The bridge opened in 1932.", got[1].ClaimText)
		assert.Equal(t, "Water boils at 90 degrees at sea level.", got[2].ClaimText)
	})

	t.Run("json file", func(t *testing.T) {
		path := writeFile(t, "claims.json", `[{"claim_text": "The bridge opened in 1932.", "source_urls": ["https://example.com/bridge"]}]`)
		got, err := collectClaims(nil, path)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, []string{"https://example.com/bridge"}, got[0].SourceURLs)
	})

	t.Run("malformed json file", func(t *testing.T) {
		path := writeFile(t, "claims.json", `{"claim_text": "not an array"}`)
		_, err := collectClaims(nil, path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := collectClaims(nil, "does-not-exist.txt")
		assert.Error(t, err)
	})
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		wantErr string
	}{
		{name: "valid", start: "2024-01-01T00:00:00Z", end: "2024-02-01T00:00:00Z"},
		{name: "bad start", start: "yesterday", end: "2024-02-01T00:00:00Z", wantErr: "--start"},
		{name: "bad end", start: "2024-01-01T00:00:00Z", end: "2024-02-01", wantErr: "--end"},
		{name: "empty range", start: "2024-01-01T00:00:00Z", end: "2024-01-01T00:00:00Z", wantErr: "after"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := parseRange(tt.start, tt.end)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, end.After(start))
		})
	}
}

func TestVerifyCommand_JSON(t *testing.T) {
	clearConfigEnv(t)

	out, err := execute(t, "verify", "--json",
		"The city council approved a 12% budget increase for public libraries in 2024.",
		"The city council approved a 12% budget increase for public libraries in 2024.",
		"too short",
	)
	require.NoError(t, err)

	var results []verifyResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 3)

	// The two identical claims race; exactly one of them is the original.
	var completed, duplicates int
	for _, r := range results[:2] {
		if r.DuplicateOf != "" {
			duplicates++
			continue
		}
		require.NotNil(t, r.Run)
		assert.Equal(t, types.RunStateCompleted, r.Run.State)
		require.NotNil(t, r.Score)
		assert.Equal(t, types.ScoreSourcePipeline, r.Score.Source)
		completed++
	}
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, duplicates)

	assert.Nil(t, results[2].Run)
	assert.NotEmpty(t, results[2].Error)
}

func TestVerifyCommand_NoClaims(t *testing.T) {
	clearConfigEnv(t)

	_, err := execute(t, "verify", "--json=false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no claims given")
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-for-cli-tokens")
	t.Setenv("JWT_EXPIRATION_HOURS", "")

	out, err := execute(t, "token", "reviewer-7")
	require.NoError(t, err)

	jwtCfg, err := config.NewJWTConfig()
	require.NoError(t, err)
	claims, err := server.NewTokenService(jwtCfg).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "reviewer-7", claims.ActorID)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestTokenCommand_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := execute(t, "token", "reviewer-7")
	require.ErrorIs(t, err, config.ErrJWTSecretMissing)
}

func TestMigrateCommand_RequiresDatabaseURL(t *testing.T) {
	clearConfigEnv(t)

	_, err := execute(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}
