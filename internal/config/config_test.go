package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultFeedURL, cfg.FeedURL)
	assert.Equal(t, DefaultLinkBaseURL, cfg.LinkBaseURL)
	assert.Equal(t, DefaultStaleHours, cfg.StaleHours)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout())
	assert.Equal(t, "catalog.db", filepath.Base(cfg.DatabasePath))
	assert.Empty(t, cfg.SeedPath)
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultFeedURL, cfg.FeedURL)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
feed_url: https://feed.internal/api/features
database_path: /tmp/mirror.db
stale_hours: 6
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://feed.internal/api/features", cfg.FeedURL)
	assert.Equal(t, "/tmp/mirror.db", cfg.DatabasePath)
	assert.Equal(t, 6, cfg.StaleHours)

	// Unset fields keep their defaults.
	assert.Equal(t, DefaultLinkBaseURL, cfg.LinkBaseURL)
	assert.Equal(t, DefaultTimeoutSecs, cfg.FetchTimeoutSecs)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "feed_url: [unterminated")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"negative stale hours", "stale_hours: -1", "stale_hours"},
		{"negative timeout", "fetch_timeout_secs: -5", "fetch_timeout_secs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
