// Package config handles runtime configuration: defaults, an optional JSON
// overlay, and environment variables, in that precedence order.
package config

import (
	"path/filepath"
	"time"
)

// Backend names accepted for RemoteBackend.
const (
	BackendGitHub = "github"
	BackendS3     = "s3"
)

// Config holds runtime settings for the journal CLI.
//
// Fields:
//   - DataDir: directory holding the local database.
//   - RemoteBackend: which remote snapshot store to use ("github" or "s3").
//   - GitHubToken / GitHubRepo / GitHubBranch: contents-API backend settings.
//   - S3*: bucket settings for the S3-compatible backend; S3BaseEndpoint is
//     only needed for MinIO-style deployments.
//   - SyncInterval: periodic upload-check cadence.
//   - SyncSkewWindow: modification-time distance treated as "in sync".
//   - SyncDeletions: whether remote deletions propagate to the local store.
//   - EnrichAPIKey / EnrichBaseURL: optional content-analysis API settings.
type Config struct {
	DataDir string

	RemoteBackend string

	GitHubToken  string
	GitHubRepo   string
	GitHubBranch string

	S3Bucket       string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3BaseEndpoint string

	SyncInterval   time.Duration
	SyncSkewWindow time.Duration
	SyncDeletions  bool

	EnrichAPIKey  string
	EnrichBaseURL string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DataDir = "./data"
	c.RemoteBackend = BackendGitHub
	c.GitHubBranch = "main"
	c.S3Region = "us-east-1"
	c.SyncInterval = 30 * time.Second
	c.SyncSkewWindow = 60 * time.Second
	c.SyncDeletions = true
}

// DatabasePath is the location of the SQLite database under DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "reflections.db")
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from environment variables.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	return cfg
}
