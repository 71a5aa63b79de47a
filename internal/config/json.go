package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/Benioh/reflection-journal/internal/flagx"
	"github.com/Benioh/reflection-journal/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations
// use timex.Duration so the file can say "30s" or give integer nanoseconds.
type JsonConfig struct {
	DataDir        *string         `json:"data_dir"`
	RemoteBackend  *string         `json:"remote_backend"`
	GitHubToken    *string         `json:"github_token"`
	GitHubRepo     *string         `json:"github_repo"`
	GitHubBranch   *string         `json:"github_branch"`
	S3Bucket       *string         `json:"s3_bucket"`
	S3Region       *string         `json:"s3_region"`
	S3AccessKey    *string         `json:"s3_access_key"`
	S3SecretKey    *string         `json:"s3_secret_key"`
	S3BaseEndpoint *string         `json:"s3_base_endpoint"`
	SyncInterval   *timex.Duration `json:"sync_interval"`
	SyncSkewWindow *timex.Duration `json:"sync_skew_window"`
	SyncDeletions  *bool           `json:"sync_deletions"`
	EnrichAPIKey   *string         `json:"enrich_api_key"`
	EnrichBaseURL  *string         `json:"enrich_base_url"`
}

// parseJson overlays cfg with values from the JSON file named by the
// -c/-config flag, when one was given. Fields absent from the file keep
// their current values. Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&cfg.DataDir, jc.DataDir)
	setString(&cfg.RemoteBackend, jc.RemoteBackend)
	setString(&cfg.GitHubToken, jc.GitHubToken)
	setString(&cfg.GitHubRepo, jc.GitHubRepo)
	setString(&cfg.GitHubBranch, jc.GitHubBranch)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3AccessKey, jc.S3AccessKey)
	setString(&cfg.S3SecretKey, jc.S3SecretKey)
	setString(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	setString(&cfg.EnrichAPIKey, jc.EnrichAPIKey)
	setString(&cfg.EnrichBaseURL, jc.EnrichBaseURL)

	if jc.SyncInterval != nil {
		cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
	}
	if jc.SyncSkewWindow != nil {
		cfg.SyncSkewWindow = time.Duration(jc.SyncSkewWindow.Duration)
	}
	if jc.SyncDeletions != nil {
		cfg.SyncDeletions = *jc.SyncDeletions
	}
}
