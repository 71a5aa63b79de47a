package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, BackendGitHub, cfg.RemoteBackend)
	assert.Equal(t, "main", cfg.GitHubBranch)
	assert.Equal(t, 30*time.Second, cfg.SyncInterval)
	assert.Equal(t, 60*time.Second, cfg.SyncSkewWindow)
	assert.True(t, cfg.SyncDeletions)
	assert.Equal(t, filepath.Join("./data", "reflections.db"), cfg.DatabasePath())
}

func TestParseEnv(t *testing.T) {
	t.Setenv("APP_DATA_DIR", "/tmp/journal")
	t.Setenv("GITHUB_TOKEN", "tok")
	t.Setenv("GITHUB_REPO", "alice/backup")
	t.Setenv("SYNC_INTERVAL", "45s")
	t.Setenv("SYNC_DELETIONS", "false")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, "/tmp/journal", cfg.DataDir)
	assert.Equal(t, "tok", cfg.GitHubToken)
	assert.Equal(t, "alice/backup", cfg.GitHubRepo)
	assert.Equal(t, 45*time.Second, cfg.SyncInterval)
	assert.False(t, cfg.SyncDeletions)
	assert.Equal(t, "main", cfg.GitHubBranch, "unset variables keep defaults")
}

func TestParseEnv_IgnoresGarbage(t *testing.T) {
	t.Setenv("SYNC_INTERVAL", "not a duration")
	t.Setenv("SYNC_DELETIONS", "maybe")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, 30*time.Second, cfg.SyncInterval)
	assert.True(t, cfg.SyncDeletions)
}

func TestParseJson(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"remote_backend": "s3",
		"s3_bucket": "journal",
		"sync_interval": "2m",
		"sync_deletions": false
	}`), 0o600))

	oldArgs := os.Args
	os.Args = []string{"reflect", "-c", path}
	t.Cleanup(func() { os.Args = oldArgs })

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, BackendS3, cfg.RemoteBackend)
	assert.Equal(t, "journal", cfg.S3Bucket)
	assert.Equal(t, 2*time.Minute, cfg.SyncInterval)
	assert.False(t, cfg.SyncDeletions)
	assert.Equal(t, "main", cfg.GitHubBranch, "absent fields keep defaults")
}

func TestLoadConfig_EnvOverridesJson(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"github_repo": "from/json"}`), 0o600))

	oldArgs := os.Args
	os.Args = []string{"reflect", "--config=" + path}
	t.Cleanup(func() { os.Args = oldArgs })

	t.Setenv("GITHUB_REPO", "from/env")

	cfg := LoadConfig()
	assert.Equal(t, "from/env", cfg.GitHubRepo)
}
