// Package search answers natural-language queries over the bookmark
// store: parse, embed, hybrid retrieval, and AI reranking with a neutral
// deterministic fallback.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/satchel0/satchel/internal/llmtext"
	"github.com/satchel0/satchel/internal/log"
	"github.com/satchel0/satchel/internal/store"
)

const rerankSystemPrompt = `You rank search candidates from a personal bookmark collection
against the user's query. Respond with a single JSON array, no markdown:
[{"id": "candidate id", "score": 0.0, "reason": "short explanation"}]
score is relevance between 0 and 1. Include only candidates worth returning,
best first. Never invent ids.`

// neutralScore is assigned to every result when reranking is
// unavailable; candidate order is preserved.
const neutralScore = 0.5

// Result is one ranked search hit.
type Result struct {
	Match  store.Match `json:"match"`
	Score  float64     `json:"score"`
	Reason string      `json:"reason,omitempty"`
}

// Reranker orders candidates by query relevance using the model. A nil
// Genkit instance degrades to neutral scoring.
type Reranker struct {
	g         *genkit.Genkit
	modelName string
	timeout   time.Duration
	logger    log.Logger
}

// NewReranker creates a reranker.
func NewReranker(g *genkit.Genkit, modelName string, timeout time.Duration, logger log.Logger) *Reranker {
	return &Reranker{
		g:         g,
		modelName: modelName,
		timeout:   timeout,
		logger:    logger.With("component", "rerank"),
	}
}

// Rerank orders candidates against the query and trims to limit. Any
// model failure returns the candidates in their incoming order with
// neutral scores; reranking never loses a search.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []store.Match, limit int) []Result {
	if len(candidates) == 0 {
		return []Result{}
	}
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}
	if r.g == nil {
		return neutral(candidates, limit)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := genkit.Generate(ctx, r.g,
		ai.WithModelName(r.modelName),
		ai.WithSystem(rerankSystemPrompt),
		ai.WithPrompt(buildRerankPrompt(query, candidates)),
	)
	if err != nil {
		r.logger.Warn("rerank generation failed", "error", err)
		return neutral(candidates, limit)
	}

	results, err := applyRanking(resp.Text(), candidates)
	if err != nil {
		r.logger.Warn("unparseable rerank response",
			"error", err,
			"response", llmtext.Truncate(resp.Text(), 200))
		return neutral(candidates, limit)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// buildRerankPrompt lists the candidates compactly; ids are what the
// model must echo back.
func buildRerankPrompt(query string, candidates []store.Match) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n\nCandidates:\n", query)
	for _, m := range candidates {
		b := m.Bookmark
		fmt.Fprintf(&sb, "- id: %s\n  title: %s\n  type: %s, category: %s\n",
			b.ID, b.Title, b.ContentType, b.Category)
		if len(b.Tags) > 0 {
			fmt.Fprintf(&sb, "  tags: %s\n", strings.Join(b.Tags, ", "))
		}
		if b.Summary != "" {
			fmt.Fprintf(&sb, "  summary: %s\n", llmtext.Truncate(b.Summary, 200))
		}
	}
	return sb.String()
}

// applyRanking matches the model's ranked ids back to candidates.
// Unknown ids are dropped; duplicate ids keep their first entry. An
// empty usable ranking is an error so the neutral fallback runs.
func applyRanking(response string, candidates []store.Match) ([]Result, error) {
	arr := llmtext.FirstArray(llmtext.StripCodeFences(response))
	if arr == "" {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var ranked []struct {
		ID     string  `json:"id"`
		Score  float64 `json:"score"`
		Reason string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(arr), &ranked); err != nil {
		return nil, fmt.Errorf("decoding ranking: %w", err)
	}

	byID := make(map[string]store.Match, len(candidates))
	for _, m := range candidates {
		byID[m.Bookmark.ID.String()] = m
	}

	var results []Result
	seen := make(map[string]bool, len(ranked))
	for _, entry := range ranked {
		m, ok := byID[entry.ID]
		if !ok || seen[entry.ID] {
			continue
		}
		seen[entry.ID] = true

		score := entry.Score
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		results = append(results, Result{Match: m, Score: score, Reason: entry.Reason})
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("ranking matched no candidates")
	}
	return results, nil
}

func neutral(candidates []store.Match, limit int) []Result {
	results := make([]Result, 0, limit)
	for _, m := range candidates[:limit] {
		results = append(results, Result{Match: m, Score: neutralScore})
	}
	return results
}
