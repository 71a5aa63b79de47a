// Package remote abstracts the remote snapshot store: a versioned blob
// location holding full-snapshot backups and per-record deletion backups.
//
// Implementations map their transport errors to the sentinel errors below at
// the package boundary; callers match them with errors.Is. No implementation
// retries a call; retry policy belongs to the sync engine and the deletion
// backup queue.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Benioh/reflection-journal/internal/models"
)

var (
	// ErrNotFound means the requested blob or namespace does not exist yet.
	ErrNotFound = errors.New("not found")

	// ErrConflict means the remote rejected a write because the target
	// changed since it was last read. Recoverable; not fatal.
	ErrConflict = errors.New("remote write conflict")

	// ErrUnavailable covers transport failures and remote-side errors.
	ErrUnavailable = errors.New("remote unavailable")

	// ErrUnauthorized means the configured credentials were rejected.
	ErrUnauthorized = errors.New("unauthorized")
)

// Store is the remote snapshot store contract.
type Store interface {
	// IsConfigured reports whether credentials and a target location are
	// present and the target is reachable. Reachability is probed once and
	// cached for the lifetime of the store.
	IsConfigured(ctx context.Context) bool

	// LatestModifiedTime returns when the newest remote snapshot was last
	// written. The bool is false when the remote holds no snapshot yet.
	LatestModifiedTime(ctx context.Context) (time.Time, bool, error)

	// ReadLatestSnapshot downloads the newest snapshot, or (nil, nil) when
	// the remote holds none.
	ReadLatestSnapshot(ctx context.Context) (*models.Snapshot, error)

	// WriteSnapshot uploads snap as the current month's snapshot blob,
	// replacing the previous revision. Returns ErrConflict when the blob
	// changed underneath us since it was last read.
	WriteSnapshot(ctx context.Context, snap *models.Snapshot) error

	// AppendDeletionBackup writes one uniquely-named deletion backup blob.
	// Names embed record id and timestamp, so appends never collide.
	AppendDeletionBackup(ctx context.Context, b *models.DeletionBackup) error

	// ListDeletionBackups returns the keys of all deletion backup blobs,
	// or an empty slice when the namespace does not exist yet.
	ListDeletionBackups(ctx context.Context) ([]string, error)
}

const (
	snapshotPrefix = "reflections_backup_"
	snapshotSuffix = ".json"

	deletionNamespace = "deleted_records"
)

// snapshotName returns the blob name for t's calendar month,
// e.g. "reflections_backup_202508.json". The names sort chronologically,
// so most-recent-by-name wins on read.
func snapshotName(t time.Time) string {
	return snapshotPrefix + t.UTC().Format("200601") + snapshotSuffix
}

func isSnapshotName(name string) bool {
	return strings.HasPrefix(name, snapshotPrefix) && strings.HasSuffix(name, snapshotSuffix)
}

// deletionBackupKey builds the unique per-record backup key, partitioned by
// month: deleted_records/2025-08/deleted_17_20250830_153012.json.
func deletionBackupKey(id int64, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s/%s/deleted_%d_%s.json",
		deletionNamespace, t.Format("2006-01"), id, t.Format("20060102_150405"))
}
