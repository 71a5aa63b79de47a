package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Benioh/reflection-journal/internal/dbx"
	"github.com/Benioh/reflection-journal/internal/models"
)

const defaultListLimit = 50

// Timestamps are stored as RFC 3339 UTC strings so MAX(updated_at)
// compares correctly as text.
const timeLayout = time.RFC3339

// SQLiteRepository implements Repository on a local SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a repository bound to db. The schema must
// already be migrated (see Open).
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func decodeTags(s string) []string {
	if s == "" {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return []string{}
	}
	return tags
}

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(timeLayout)
}

func scanReflection(scan func(dest ...any) error) (*models.Reflection, error) {
	var (
		r                    models.Reflection
		tags                 string
		createdAt, updatedAt string
	)
	if err := scan(&r.ID, &r.Content, &r.Summary, &tags, &r.Category, &r.Type, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	r.Tags = decodeTags(tags)

	var err error
	if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if r.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &r, nil
}

// Column list shared by all read queries; embedding is deliberately
// excluded from query results to keep records light.
const reflectionColumns = `id, content, summary, tags, category, type, created_at, updated_at`

func (r *SQLiteRepository) Add(ctx context.Context, rec *models.Reflection) (int64, error) {
	now := time.Now().UTC().Truncate(time.Second)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.Before(rec.CreatedAt) {
		rec.UpdatedAt = rec.CreatedAt
	}
	if rec.Type == "" {
		rec.Type = models.TypeDaily
	}

	tags, err := encodeTags(rec.Tags)
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO reflections (content, summary, tags, category, type, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Content, rec.Summary, tags, rec.Category, rec.Type, rec.Embedding,
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt))
	if err != nil {
		return 0, fmt.Errorf("insert reflection: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	rec.ID = id
	return id, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, rec *models.Reflection) error {
	tags, err := encodeTags(rec.Tags)
	if err != nil {
		return err
	}

	rec.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx, `
		UPDATE reflections
		SET content = ?, summary = ?, tags = ?, category = ?, type = ?, updated_at = ?
		WHERE id = ?`,
		rec.Content, rec.Summary, tags, rec.Category, rec.Type, formatTime(rec.UpdatedAt), rec.ID)
	if err != nil {
		return fmt.Errorf("update reflection %d: %w", rec.ID, err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) UpdateEnrichment(ctx context.Context, id int64, summary string, tags []string, category string) error {
	encoded, err := encodeTags(tags)
	if err != nil {
		return err
	}

	now := formatTime(time.Now())
	res, err := r.db.ExecContext(ctx, `
		UPDATE reflections
		SET summary = ?, tags = ?, category = ?, updated_at = ?
		WHERE id = ?`,
		summary, encoded, category, now, id)
	if err != nil {
		return fmt.Errorf("update enrichment for %d: %w", id, err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.Reflection, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+reflectionColumns+` FROM reflections WHERE id = ?`, id)

	rec, err := scanReflection(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reflection %d: %w", id, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) List(ctx context.Context, f ListFilter) ([]models.Reflection, error) {
	query := `SELECT ` + reflectionColumns + ` FROM reflections WHERE 1=1`
	args := []any{}

	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	return r.queryReflections(ctx, query, args...)
}

func (r *SQLiteRepository) Search(ctx context.Context, q string) ([]models.Reflection, error) {
	pattern := "%" + q + "%"
	return r.queryReflections(ctx, `
		SELECT `+reflectionColumns+` FROM reflections
		WHERE content LIKE ? OR summary LIKE ? OR tags LIKE ?
		ORDER BY created_at DESC
		LIMIT ?`,
		pattern, pattern, pattern, defaultListLimit)
}

func (r *SQLiteRepository) queryReflections(ctx context.Context, query string, args ...any) ([]models.Reflection, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select reflections: %w", err)
	}
	defer rows.Close()

	var result []models.Reflection
	for rows.Next() {
		rec, err := scanReflection(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reflections: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reflections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reflection %d: %w", id, err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM reflections`)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reflections`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reflections: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) LatestModifiedTime(ctx context.Context) (time.Time, bool, error) {
	var latest sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT MAX(updated_at) FROM reflections`).Scan(&latest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest modified time: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(timeLayout, latest.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse latest modified time: %w", err)
	}
	return t, true, nil
}

func (r *SQLiteRepository) Export(ctx context.Context) (*models.Snapshot, error) {
	records, err := r.queryReflections(ctx,
		`SELECT `+reflectionColumns+` FROM reflections ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.Reflection{}
	}
	return &models.Snapshot{
		ExportedAt:  time.Now().UTC().Truncate(time.Second),
		TotalCount:  len(records),
		Reflections: records,
	}, nil
}

func (r *SQLiteRepository) ReplaceAll(ctx context.Context, snap *models.Snapshot) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM reflections`); err != nil {
			return fmt.Errorf("clear reflections: %w", err)
		}
		for i := range snap.Reflections {
			if err := insertWithID(ctx, tx, &snap.Reflections[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) Restore(ctx context.Context, rec *models.Reflection) error {
	return insertWithID(ctx, r.db, rec)
}

// insertWithID writes a record keeping its original identifier and
// timestamps, replacing any row that already has the same id.
func insertWithID(ctx context.Context, db dbx.DBTX, rec *models.Reflection) error {
	tags, err := encodeTags(rec.Tags)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reflections (id, content, summary, tags, category, type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Content, rec.Summary, tags, rec.Category, rec.Type,
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("restore reflection %d: %w", rec.ID, err)
	}
	return nil
}
