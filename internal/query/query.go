// Package query turns natural-language search input into structured
// search parameters.
//
// Parsing is two-layered: the model extracts intent, filters, and an
// expanded semantic query; when the model is unavailable or its output
// unusable, a deterministic fallback (trigger-word tables, relative
// dates, keyword expansion) produces a usable parse instead. Parse never
// fails.
package query

import (
	"time"

	"github.com/satchel0/satchel/internal/bookmark"
)

// Filters are the structured constraints extracted from a query.
type Filters struct {
	ContentTypes []bookmark.ContentType `json:"content_types"`
	Categories   []bookmark.Category    `json:"categories"`
	Tags         []string               `json:"tags"`
	DateStart    *time.Time             `json:"date_start,omitempty"`
	DateEnd      *time.Time             `json:"date_end,omitempty"`
}

// Parsed is the structured form of a search query.
type Parsed struct {
	// Raw is the original user input.
	Raw string `json:"raw"`

	// Intent is the model's one-line reading of what the user is after.
	// The deterministic fallback leaves it empty.
	Intent string `json:"intent,omitempty"`

	// Filters narrow the candidate set before ranking.
	Filters Filters `json:"filters"`

	// Keywords are the significant terms for text matching.
	Keywords []string `json:"keywords,omitempty"`

	// ExpandedKeywords adds related terms the user did not type
	// (study -> learn, education). They widen keyword matching only.
	ExpandedKeywords []string `json:"expanded_keywords,omitempty"`

	// SemanticQuery is the text to embed for vector search. It may be a
	// model rephrasing of the query or the raw input.
	SemanticQuery string `json:"semantic_query"`

	// ContextHints carry soft signals from the query (vague recency,
	// "that thing from the talk") that map onto no filter but may help a
	// reranker or a human reading the response.
	ContextHints []string `json:"context_hints,omitempty"`

	// Confidence reflects how sure the parser is of the structure.
	// The deterministic fallback always reports 0.5.
	Confidence float64 `json:"confidence"`
}

// AllKeywords returns keywords plus expansions, deduplicated in order.
func (p *Parsed) AllKeywords() []string {
	seen := make(map[string]bool, len(p.Keywords)+len(p.ExpandedKeywords))
	out := make([]string, 0, len(p.Keywords)+len(p.ExpandedKeywords))
	for _, kw := range append(append([]string{}, p.Keywords...), p.ExpandedKeywords...) {
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}
