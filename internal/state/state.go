// Package state persists the small bits of sync bookkeeping that must
// survive process restarts: the last successful sync time and this
// installation's identity. Everything lives in the metadata key-value table
// co-located with the local store.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Benioh/reflection-journal/internal/dbx"
	"github.com/google/uuid"
)

const (
	keyLastSyncTime   = "last_sync_time"
	keyInstallationID = "installation_id"
	keyGitHubToken    = "github_token"
)

// Store reads and writes sync state in the metadata table.
type Store struct {
	db dbx.DBTX
}

func New(db dbx.DBTX) *Store {
	return &Store{db: db}
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metadata[%s]: %w", key, err)
	}
	return value, nil
}

func (s *Store) set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set metadata[%s]: %w", key, err)
	}
	return nil
}

// LoadLastSyncTime returns the recorded last successful sync time.
// A missing key, a read failure or an unparseable value all report
// "never synced" so startup stays non-fatal.
func (s *Store) LoadLastSyncTime(ctx context.Context) (time.Time, bool) {
	raw, err := s.get(ctx, keyLastSyncTime)
	if err != nil || len(raw) == 0 {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, string(raw))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SaveLastSyncTime durably records t as the last successful sync time.
func (s *Store) SaveLastSyncTime(ctx context.Context, t time.Time) error {
	return s.set(ctx, keyLastSyncTime, []byte(t.UTC().Format(time.RFC3339)))
}

// GitHubToken returns the stored remote access token, or "" when none has
// been saved.
func (s *Store) GitHubToken(ctx context.Context) (string, error) {
	raw, err := s.get(ctx, keyGitHubToken)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// SaveGitHubToken stores the remote access token.
func (s *Store) SaveGitHubToken(ctx context.Context, token string) error {
	return s.set(ctx, keyGitHubToken, []byte(token))
}

// InstallationID returns this installation's stable identifier, generating
// and persisting one on first use.
func (s *Store) InstallationID(ctx context.Context) (string, error) {
	raw, err := s.get(ctx, keyInstallationID)
	if err != nil {
		return "", err
	}
	if len(raw) > 0 {
		return string(raw), nil
	}

	id := uuid.NewString()
	if err := s.set(ctx, keyInstallationID, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}
