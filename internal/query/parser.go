package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/satchel0/satchel/internal/bookmark"
	"github.com/satchel0/satchel/internal/llmtext"
	"github.com/satchel0/satchel/internal/log"
)

const parseSystemPrompt = `You parse search queries over a personal bookmark collection.
Respond with a single JSON object, no markdown, in this exact shape:
{
  "intent": "one short sentence stating what the user is looking for",
  "content_types": ["subset of: video, product, article, tweet, note, image"],
  "categories": ["subset of: work, personal, research, inspiration, shopping, entertainment, learning"],
  "tags": ["explicit topical tags mentioned"],
  "keywords": ["significant search terms"],
  "expanded_keywords": ["related terms the user did not type"],
  "semantic_query": "a clean description of what the user wants, for vector search",
  "context_hints": ["soft signals that are not filters, e.g. vague recency"],
  "date_range": "one of: none, today, yesterday, last_week, last_month",
  "confidence": 0.0
}
Only include filters the query clearly implies. confidence is between 0 and 1.`

// modelParse is the wire shape of the model response.
type modelParse struct {
	Intent           string   `json:"intent"`
	ContentTypes     []string `json:"content_types"`
	Categories       []string `json:"categories"`
	Tags             []string `json:"tags"`
	Keywords         []string `json:"keywords"`
	ExpandedKeywords []string `json:"expanded_keywords"`
	SemanticQuery    string   `json:"semantic_query"`
	ContextHints     []string `json:"context_hints"`
	DateRange        string   `json:"date_range"`
	Confidence       float64  `json:"confidence"`
}

// Parser turns raw queries into Parsed structures. A nil Genkit instance
// routes every parse through the deterministic fallback.
type Parser struct {
	g         *genkit.Genkit
	modelName string
	timeout   time.Duration
	logger    log.Logger
	now       func() time.Time
}

// NewParser creates a parser.
func NewParser(g *genkit.Genkit, modelName string, timeout time.Duration, logger log.Logger) *Parser {
	return &Parser{
		g:         g,
		modelName: modelName,
		timeout:   timeout,
		logger:    logger.With("component", "query-parser"),
		now:       time.Now,
	}
}

// Parse analyzes a query. It never fails: any model problem falls back
// to the deterministic parse.
func (p *Parser) Parse(ctx context.Context, raw string) *Parsed {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return &Parsed{Raw: "", Confidence: 1}
	}
	if p.g == nil {
		return parseFallback(raw, p.now())
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := genkit.Generate(ctx, p.g,
		ai.WithModelName(p.modelName),
		ai.WithSystem(parseSystemPrompt),
		ai.WithPrompt("Query: "+raw),
	)
	if err != nil {
		p.logger.Warn("query parse generation failed", "error", err)
		return parseFallback(raw, p.now())
	}

	parsed, err := p.convert(raw, resp.Text())
	if err != nil {
		p.logger.Warn("unparseable query parse response",
			"error", err,
			"response", llmtext.Truncate(resp.Text(), 200))
		return parseFallback(raw, p.now())
	}
	return parsed
}

// convert validates the model output against the taxonomies; unknown
// values are dropped, not errors. A response with no usable structure at
// all is rejected so the fallback runs.
func (p *Parser) convert(raw, response string) (*Parsed, error) {
	obj := llmtext.FirstObject(llmtext.StripCodeFences(response))
	if obj == "" {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var mp modelParse
	if err := json.Unmarshal([]byte(obj), &mp); err != nil {
		return nil, fmt.Errorf("decoding parse: %w", err)
	}

	parsed := &Parsed{
		Raw:              raw,
		Intent:           strings.TrimSpace(mp.Intent),
		Keywords:         cleanTerms(mp.Keywords),
		ExpandedKeywords: cleanTerms(mp.ExpandedKeywords),
		SemanticQuery:    strings.TrimSpace(mp.SemanticQuery),
		ContextHints:     cleanTerms(mp.ContextHints),
		Confidence:       mp.Confidence,
	}
	if parsed.SemanticQuery == "" {
		parsed.SemanticQuery = raw
	}
	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	}
	if parsed.Confidence > 1 {
		parsed.Confidence = 1
	}

	for _, t := range mp.ContentTypes {
		if ct := bookmark.ContentType(strings.ToLower(strings.TrimSpace(t))); ct.Valid() {
			parsed.Filters.ContentTypes = append(parsed.Filters.ContentTypes, ct)
		}
	}
	for _, c := range mp.Categories {
		if cat := bookmark.Category(strings.ToLower(strings.TrimSpace(c))); cat.Valid() {
			parsed.Filters.Categories = append(parsed.Filters.Categories, cat)
		}
	}
	parsed.Filters.Tags = bookmark.NormalizeTags(mp.Tags, 0)

	parsed.Filters.DateStart, parsed.Filters.DateEnd = namedDateRange(mp.DateRange, p.now())

	if len(parsed.Keywords) == 0 && parsed.SemanticQuery == "" &&
		len(parsed.Filters.ContentTypes) == 0 && len(parsed.Filters.Categories) == 0 {
		return nil, fmt.Errorf("parse has no usable structure")
	}
	return parsed, nil
}

// namedDateRange maps the model's date_range enum to bounds.
func namedDateRange(name string, now time.Time) (*time.Time, *time.Time) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "yesterday":
		end := now.Truncate(24 * time.Hour)
		start := end.Add(-24 * time.Hour)
		return &start, &end
	case "today":
		start := now.Truncate(24 * time.Hour)
		return &start, nil
	case "last_week":
		start := now.Add(-7 * 24 * time.Hour)
		return &start, nil
	case "last_month":
		start := now.Add(-30 * 24 * time.Hour)
		return &start, nil
	}
	return nil, nil
}

func cleanTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
