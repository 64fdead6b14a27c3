package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/satchel0/satchel/internal/bookmark"
)

// SearchParams is one search against the bookmarks table. QueryVec may be
// nil, in which case results come back keyword-filtered and newest first
// with zero similarity.
type SearchParams struct {
	OwnerID      string
	QueryVec     []float32
	QueryDim     int32
	ContentTypes []bookmark.ContentType
	Categories   []bookmark.Category
	Tags         []string
	Keywords     []string
	DateStart    *time.Time
	DateEnd      *time.Time
	Limit        int
}

// Match is one search hit. Similarity is cosine similarity in [-1, 1]
// when the search ran with a vector, 0 otherwise.
type Match struct {
	Bookmark   *bookmark.Bookmark `json:"bookmark"`
	Similarity float64            `json:"similarity"`
}

// Search runs the hybrid query: structured filters always apply, keyword
// matching ORs across title, content, URL, and tags, and the vector
// branch ranks by cosine similarity restricted to rows whose stored
// dimensionality matches the query vector. Limit is the candidate count
// the caller asks for; over-fetching for reranking is the caller's
// business.
func (s *Store) Search(ctx context.Context, p SearchParams) ([]Match, error) {
	if p.OwnerID == "" {
		return nil, fmt.Errorf("owner ID is required")
	}
	if p.Limit <= 0 {
		p.Limit = 30
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	where = append(where, "owner_id = "+arg(p.OwnerID))

	if len(p.ContentTypes) > 0 {
		where = append(where, "content_type = ANY("+arg(asStrings(p.ContentTypes))+")")
	}
	if len(p.Categories) > 0 {
		where = append(where, "category = ANY("+arg(asStrings(p.Categories))+")")
	}
	if len(p.Tags) > 0 {
		where = append(where, "tags && "+arg(p.Tags))
	}
	if p.DateStart != nil {
		where = append(where, "created_at >= "+arg(*p.DateStart))
	}
	if p.DateEnd != nil {
		where = append(where, "created_at < "+arg(*p.DateEnd))
	}

	if len(p.Keywords) > 0 {
		patterns := make([]string, 0, len(p.Keywords))
		for _, kw := range p.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			patterns = append(patterns, "%"+kw+"%")
		}
		if len(patterns) > 0 {
			ph := arg(patterns)
			where = append(where, fmt.Sprintf(
				`(title ILIKE ANY(%[1]s) OR content ILIKE ANY(%[1]s) OR url ILIKE ANY(%[1]s)
				  OR EXISTS (SELECT 1 FROM unnest(tags) t WHERE t ILIKE ANY(%[1]s)))`, ph))
		}
	}

	similarity := "0::float8 AS similarity"
	orderBy := "created_at DESC"
	if len(p.QueryVec) > 0 {
		vecPh := arg(pgvector.NewVector(p.QueryVec))
		similarity = fmt.Sprintf("1 - (embedding <=> %s) AS similarity", vecPh)
		orderBy = "similarity DESC"
		// Only rows with a comparable vector participate in ranking.
		where = append(where, "embedding IS NOT NULL")
		where = append(where, "embedding_dim = "+arg(p.QueryDim))
	}

	query := fmt.Sprintf(
		`SELECT %s, %s
		 FROM bookmarks
		 WHERE %s
		 ORDER BY %s
		 LIMIT %s`,
		bookmarkCols, similarity, strings.Join(where, " AND "), orderBy, arg(p.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching bookmarks: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			b           bookmark.Bookmark
			extractedAt *time.Time
			sim         float64
		)
		err := rows.Scan(
			&b.ID, &b.OwnerID, &b.Title, &b.URL, &b.Content, &b.ContentType, &b.Category,
			&b.Tags, &b.Summary, &b.KeyPoints, &b.Thumbnail, &b.Favicon,
			&b.Metadata, &b.Image, &b.CreatedAt, &b.UpdatedAt, &extractedAt,
			&sim,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		b.ExtractedAt = extractedAt
		matches = append(matches, Match{Bookmark: &b, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}
	return matches, nil
}

func asStrings[T ~string](vals []T) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}
