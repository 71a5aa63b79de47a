package config

import (
	"os"
	"strconv"
	"time"
)

// parseEnv overlays cfg with values from the environment. Unset variables
// keep their current values; unparsable durations and booleans are ignored.
func parseEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString(&cfg.DataDir, "APP_DATA_DIR")
	setString(&cfg.RemoteBackend, "REMOTE_BACKEND")
	setString(&cfg.GitHubToken, "GITHUB_TOKEN")
	setString(&cfg.GitHubRepo, "GITHUB_REPO")
	setString(&cfg.GitHubBranch, "GITHUB_BRANCH")
	setString(&cfg.S3Bucket, "S3_BUCKET")
	setString(&cfg.S3Region, "S3_REGION")
	setString(&cfg.S3AccessKey, "S3_ACCESS_KEY")
	setString(&cfg.S3SecretKey, "S3_SECRET_KEY")
	setString(&cfg.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	setString(&cfg.EnrichAPIKey, "DEEPSEEK_API_KEY")
	setString(&cfg.EnrichBaseURL, "DEEPSEEK_API_BASE")

	if v, ok := os.LookupEnv("SYNC_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SyncInterval = d
		}
	}
	if v, ok := os.LookupEnv("SYNC_SKEW_WINDOW"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SyncSkewWindow = d
		}
	}
	if v, ok := os.LookupEnv("SYNC_DELETIONS"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SyncDeletions = b
		}
	}
}
