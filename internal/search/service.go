package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/satchel0/satchel/internal/embedding"
	"github.com/satchel0/satchel/internal/log"
	"github.com/satchel0/satchel/internal/query"
	"github.com/satchel0/satchel/internal/store"
)

// QueryParser turns raw search input into structured parameters.
type QueryParser interface {
	Parse(ctx context.Context, raw string) *query.Parsed
}

// Matcher runs the hybrid retrieval query.
type Matcher interface {
	Search(ctx context.Context, p store.SearchParams) ([]store.Match, error)
}

// VectorGenerator embeds the semantic query.
type VectorGenerator interface {
	Available() bool
	Generate(ctx context.Context, text string) (*embedding.Result, error)
}

// Ranker orders retrieved candidates for presentation.
type Ranker interface {
	Rerank(ctx context.Context, query string, candidates []store.Match, limit int) []Result
}

// Response is one answered search.
type Response struct {
	Query   string        `json:"query"`
	Parsed  *query.Parsed `json:"parsed,omitempty"`
	Results []Result      `json:"results"`
	Message string        `json:"message,omitempty"`
}

// Options tunes retrieval.
type Options struct {
	// DefaultLimit applies when the caller passes limit <= 0.
	DefaultLimit int

	// OverfetchFactor multiplies the limit for the retrieval pass so the
	// reranker has candidates to discard.
	OverfetchFactor int
}

// Service answers natural-language searches over a bookmark store.
type Service struct {
	parser    QueryParser
	matcher   Matcher
	generator VectorGenerator
	ranker    Ranker
	opts      Options
	logger    log.Logger
}

// NewService wires the search pipeline.
func NewService(parser QueryParser, matcher Matcher, generator VectorGenerator, ranker Ranker, opts Options, logger log.Logger) *Service {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.OverfetchFactor <= 0 {
		opts.OverfetchFactor = 3
	}
	return &Service{
		parser:    parser,
		matcher:   matcher,
		generator: generator,
		ranker:    ranker,
		opts:      opts,
		logger:    logger.With("component", "search"),
	}
}

// Search runs the full pipeline: parse, embed, retrieve, rerank. The
// embedding and reranking stages are best effort; only persistence
// failures surface as errors. An empty query returns an empty response
// without touching the store.
func (s *Service) Search(ctx context.Context, ownerID, rawQuery string, limit int) (*Response, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("owner ID is required")
	}
	rawQuery = strings.TrimSpace(rawQuery)
	if rawQuery == "" {
		return &Response{
			Query:   rawQuery,
			Results: []Result{},
			Message: "empty query",
		}, nil
	}
	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}

	parsed := s.parser.Parse(ctx, rawQuery)

	var (
		queryVec []float32
		queryDim int32
	)
	if s.generator.Available() && parsed.SemanticQuery != "" {
		result, err := s.generator.Generate(ctx, parsed.SemanticQuery)
		if err != nil {
			s.logger.Warn("query embedding failed", "error", err)
		} else if result != nil {
			queryVec = result.Vector
			queryDim = result.Dim
		}
	}

	params := store.SearchParams{
		OwnerID:      ownerID,
		QueryVec:     queryVec,
		QueryDim:     queryDim,
		ContentTypes: parsed.Filters.ContentTypes,
		Categories:   parsed.Filters.Categories,
		Tags:         parsed.Filters.Tags,
		Keywords:     parsed.AllKeywords(),
		DateStart:    parsed.Filters.DateStart,
		DateEnd:      parsed.Filters.DateEnd,
		Limit:        limit * s.opts.OverfetchFactor,
	}

	candidates, err := s.matcher.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("retrieving candidates: %w", err)
	}

	// The vector pass only sees embedded rows of the matching
	// dimensionality. When it comes back thin, a keyword-only pass picks
	// up bookmarks that have no vector yet.
	if len(queryVec) > 0 && len(candidates) < limit {
		supplement := params
		supplement.QueryVec = nil
		supplement.QueryDim = 0
		extra, err := s.matcher.Search(ctx, supplement)
		if err != nil {
			s.logger.Warn("keyword supplement pass failed", "error", err)
		} else {
			candidates = mergeCandidates(candidates, extra)
		}
	}

	resp := &Response{Query: rawQuery, Parsed: parsed}
	if len(candidates) == 0 {
		resp.Results = []Result{}
		resp.Message = "no bookmarks matched"
		return resp, nil
	}

	resp.Results = s.ranker.Rerank(ctx, rawQuery, candidates, limit)
	s.logger.Info("search answered",
		"owner_id", ownerID,
		"candidates", len(candidates),
		"results", len(resp.Results))
	return resp, nil
}

// mergeCandidates appends extras not already present, preserving the
// primary pass order.
func mergeCandidates(primary, extra []store.Match) []store.Match {
	seen := make(map[uuid.UUID]bool, len(primary))
	for _, m := range primary {
		seen[m.Bookmark.ID] = true
	}
	for _, m := range extra {
		if seen[m.Bookmark.ID] {
			continue
		}
		seen[m.Bookmark.ID] = true
		primary = append(primary, m)
	}
	return primary
}
