// Package store persists bookmarks in PostgreSQL with pgvector.
//
// The embedding column is untyped vector: dimensionality varies with the
// provider and is tracked per row in embedding_dim, so provider switches
// never compare incompatible vectors. Searches run exact scans; a
// personal collection stays far below the sizes where ANN indexes pay
// off.
//
// Store is safe for concurrent use by multiple goroutines.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/satchel0/satchel/internal/bookmark"
	"github.com/satchel0/satchel/internal/log"
)

// ErrNotFound is returned when a bookmark does not exist or belongs to a
// different owner.
var ErrNotFound = errors.New("bookmark not found")

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// bookmarkCols is the standard SELECT column list for scanBookmarks.
const bookmarkCols = `id, owner_id, title, url, content, content_type, category,
	tags, summary, key_points, thumbnail, favicon, metadata, image,
	created_at, updated_at, extracted_at`

// Store manages bookmark persistence.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// New creates a bookmark Store.
func New(pool *pgxpool.Pool, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool, logger: logger.With("component", "store")}, nil
}

// Create inserts a bookmark. A zero ID is assigned; timestamps are set
// server-side.
func (s *Store) Create(ctx context.Context, b *bookmark.Bookmark) error {
	if b.OwnerID == "" {
		return fmt.Errorf("owner ID is required")
	}
	if b.Title == "" {
		return fmt.Errorf("title is required")
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO bookmarks
		   (id, owner_id, title, url, content, content_type, category,
		    tags, summary, key_points, thumbnail, favicon, metadata, image, extracted_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		 RETURNING created_at, updated_at`,
		b.ID, b.OwnerID, b.Title, b.URL, b.Content, b.ContentType, b.Category,
		tagsOrEmpty(b.Tags), b.Summary, tagsOrEmpty(b.KeyPoints),
		b.Thumbnail, b.Favicon, metadataOrEmpty(b.Metadata), b.Image, b.ExtractedAt,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting bookmark: %w", err)
	}
	return nil
}

// Get loads one bookmark scoped to its owner.
func (s *Store) Get(ctx context.Context, ownerID string, id uuid.UUID) (*bookmark.Bookmark, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+bookmarkCols+` FROM bookmarks WHERE id = $1 AND owner_id = $2`,
		id, ownerID)

	b, err := scanBookmark(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading bookmark: %w", err)
	}
	return b, nil
}

// GetByID loads one bookmark without owner scoping. Internal use only
// (the embedding queue holds bare IDs); request paths go through Get.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*bookmark.Bookmark, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+bookmarkCols+` FROM bookmarks WHERE id = $1`, id)

	b, err := scanBookmark(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading bookmark: %w", err)
	}
	return b, nil
}

// Delete removes a bookmark scoped to its owner.
func (s *Store) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM bookmarks WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting bookmark: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the owner's bookmarks newest first.
func (s *Store) List(ctx context.Context, ownerID string, limit int) ([]*bookmark.Bookmark, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+bookmarkCols+`
		 FROM bookmarks
		 WHERE owner_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing bookmarks: %w", err)
	}
	defer rows.Close()

	return scanBookmarks(rows)
}

// CountForOwner returns how many bookmarks the owner has.
func (s *Store) CountForOwner(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM bookmarks WHERE owner_id = $1`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting bookmarks: %w", err)
	}
	return n, nil
}

// UpdateEmbedding writes a bookmark's vector together with its provider
// and dimensionality. Writes are last-writer-wins: concurrent regenerations
// of the same bookmark leave one complete (vector, dim, provider) triple.
func (s *Store) UpdateEmbedding(ctx context.Context, id uuid.UUID, vec []float32, dim int32, provider string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bookmarks
		 SET embedding = $1, embedding_dim = $2, embedding_provider = $3, updated_at = now()
		 WHERE id = $4`,
		pgvector.NewVector(vec), dim, provider, id)
	if err != nil {
		return fmt.Errorf("updating embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearEmbedding drops a bookmark's vector, degrading it to keyword-only
// matching until the next regeneration.
func (s *Store) ClearEmbedding(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE bookmarks
		 SET embedding = NULL, embedding_dim = NULL, embedding_provider = NULL, updated_at = now()
		 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("clearing embedding: %w", err)
	}
	return nil
}

// ListForRegeneration returns the owner's bookmark IDs oldest first, for
// paced bulk re-embedding. An empty ownerID selects every owner.
func (s *Store) ListForRegeneration(ctx context.Context, ownerID string) ([]uuid.UUID, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if ownerID == "" {
		rows, err = s.pool.Query(ctx,
			`SELECT id FROM bookmarks ORDER BY created_at ASC`)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id FROM bookmarks WHERE owner_id = $1 ORDER BY created_at ASC`, ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("listing bookmarks for regeneration: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning bookmark id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bookmark ids: %w", err)
	}
	return ids, nil
}

// scanBookmark scans one row in bookmarkCols order.
func scanBookmark(row pgx.Row) (*bookmark.Bookmark, error) {
	var (
		b           bookmark.Bookmark
		extractedAt *time.Time
	)
	err := row.Scan(
		&b.ID, &b.OwnerID, &b.Title, &b.URL, &b.Content, &b.ContentType, &b.Category,
		&b.Tags, &b.Summary, &b.KeyPoints, &b.Thumbnail, &b.Favicon,
		&b.Metadata, &b.Image, &b.CreatedAt, &b.UpdatedAt, &extractedAt,
	)
	if err != nil {
		return nil, err
	}
	b.ExtractedAt = extractedAt
	return &b, nil
}

// scanBookmarks drains rows into bookmarks.
func scanBookmarks(rows pgx.Rows) ([]*bookmark.Bookmark, error) {
	var out []*bookmark.Bookmark
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bookmark: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bookmarks: %w", err)
	}
	return out, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func metadataOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
