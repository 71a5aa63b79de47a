package store

import (
	"context"
	"time"

	"github.com/Benioh/reflection-journal/internal/models"
)

// ListFilter narrows List results. Zero values mean "no filter";
// Limit <= 0 applies the default page size.
type ListFilter struct {
	Limit    int
	Offset   int
	Category string
	Type     models.ReflectionType
}

// Repository describes the operations the rest of the application performs
// against the authoritative local record store. Implementations are backed
// by a local SQLite database.
type Repository interface {
	// Add inserts a new record, assigns its identifier and timestamps, and
	// returns the identifier.
	Add(ctx context.Context, r *models.Reflection) (int64, error)

	// Update rewrites the user-editable fields of an existing record and
	// bumps its updated_at timestamp.
	Update(ctx context.Context, r *models.Reflection) error

	// UpdateEnrichment fills in the derived summary/tags/category fields.
	UpdateEnrichment(ctx context.Context, id int64, summary string, tags []string, category string) error

	// GetByID returns one record or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*models.Reflection, error)

	// List returns records newest-first, optionally filtered.
	List(ctx context.Context, f ListFilter) ([]models.Reflection, error)

	// Search performs a keyword search over content, summary and tags.
	Search(ctx context.Context, query string) ([]models.Reflection, error)

	// Delete removes a record or returns ErrNotFound.
	Delete(ctx context.Context, id int64) error

	// ListIDs returns the identifiers of all records.
	ListIDs(ctx context.Context) ([]int64, error)

	// Count returns the number of records.
	Count(ctx context.Context) (int, error)

	// LatestModifiedTime returns the newest updated_at across all records.
	// The bool is false when the store is empty.
	LatestModifiedTime(ctx context.Context) (time.Time, bool, error)

	// Export produces a full snapshot of the store.
	Export(ctx context.Context) (*models.Snapshot, error)

	// ReplaceAll overwrites the store wholesale with the snapshot's records,
	// preserving their identifiers and timestamps, inside one transaction.
	ReplaceAll(ctx context.Context, snap *models.Snapshot) error

	// Restore re-inserts a previously held record with its original
	// identifier and timestamps.
	Restore(ctx context.Context, r *models.Reflection) error
}
