// Package enrich runs the save-time pipeline: classify, extract, analyze,
// tag, persist, and queue the embedding. Every AI step is best-effort;
// degraded saves are normal operation, not errors.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/satchel0/satchel/internal/bookmark"
	"github.com/satchel0/satchel/internal/config"
	"github.com/satchel0/satchel/internal/llmtext"
	"github.com/satchel0/satchel/internal/log"
)

const tagSystemPrompt = `You tag items saved to a personal bookmark collection.
Respond with a single JSON array of 3 to 5 lowercase topical tags, nothing else.
Tags are short noun phrases (2-30 characters). No explanations, no markdown.`

const analysisSystemPrompt = `You summarize items saved to a personal bookmark collection.
Respond with a single JSON object, no markdown, in this exact shape:
{
  "summary": "two or three sentence summary",
  "key_points": ["up to five key points"],
  "suggested_tags": ["up to five lowercase topical tags"],
  "category": "one of: %s"
}`

// ContentAnalysis is the model's summary of a saved item. SuggestedTags
// are a second tag source merged with GenerateTags output.
type ContentAnalysis struct {
	Summary       string            `json:"summary"`
	KeyPoints     []string          `json:"key_points"`
	SuggestedTags []string          `json:"suggested_tags"`
	Category      bookmark.Category `json:"category"`
}

// Tagger generates tags and content analyses. A nil Genkit instance
// disables it; every call then returns the degraded result immediately.
type Tagger struct {
	g         *genkit.Genkit
	modelName string
	limits    config.Limits
	timeout   time.Duration
	logger    log.Logger
}

// NewTagger creates a tagger.
func NewTagger(g *genkit.Genkit, modelName string, limits config.Limits, timeout time.Duration, logger log.Logger) *Tagger {
	return &Tagger{
		g:         g,
		modelName: modelName,
		limits:    limits,
		timeout:   timeout,
		logger:    logger.With("component", "tagger"),
	}
}

// Available reports whether a model is wired up.
func (t *Tagger) Available() bool { return t.g != nil }

// GenerateTags asks the model for topical tags. It returns an empty slice
// on any failure; the bookmark keeps its user tags.
func (t *Tagger) GenerateTags(ctx context.Context, b *bookmark.Bookmark) []string {
	if t.g == nil {
		return []string{}
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	prompt := buildTagPrompt(b, t.limits.ContentCharBudget)
	resp, err := genkit.Generate(ctx, t.g,
		ai.WithModelName(t.modelName),
		ai.WithSystem(tagSystemPrompt),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		t.logger.Warn("tag generation failed", "title", b.Title, "error", err)
		return []string{}
	}

	tags, err := parseTags(resp.Text(), t.limits.MaxTagsAI)
	if err != nil {
		t.logger.Warn("unparseable tag response",
			"title", b.Title,
			"error", err,
			"response", llmtext.Truncate(resp.Text(), 200))
		return []string{}
	}
	return tags
}

// AnalyzeContent asks the model for a summary, key points, and category.
// It returns nil when the content is below the analysis threshold or on
// any failure.
func (t *Tagger) AnalyzeContent(ctx context.Context, b *bookmark.Bookmark) *ContentAnalysis {
	if t.g == nil {
		return nil
	}
	if len(strings.TrimSpace(b.Content)) < t.limits.MinAnalysisChars {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	system := fmt.Sprintf(analysisSystemPrompt, joinCategories())
	resp, err := genkit.Generate(ctx, t.g,
		ai.WithModelName(t.modelName),
		ai.WithSystem(system),
		ai.WithPrompt(buildAnalysisPrompt(b, t.limits.ContentCharBudget)),
	)
	if err != nil {
		t.logger.Warn("content analysis failed", "title", b.Title, "error", err)
		return nil
	}

	analysis, err := parseAnalysis(resp.Text(), t.limits.MaxTagsAI)
	if err != nil {
		t.logger.Warn("unparseable analysis response",
			"title", b.Title,
			"error", err,
			"response", llmtext.Truncate(resp.Text(), 200))
		return nil
	}
	return analysis
}

func buildTagPrompt(b *bookmark.Bookmark, contentBudget int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", b.Title)
	if b.URL != "" {
		fmt.Fprintf(&sb, "URL: %s\n", b.URL)
	}
	fmt.Fprintf(&sb, "Type: %s\n", b.ContentType)
	if b.Summary != "" {
		fmt.Fprintf(&sb, "Summary: %s\n", b.Summary)
	}
	if b.Image != nil && b.Image.Description != "" {
		fmt.Fprintf(&sb, "Image: %s\n", b.Image.Description)
	}
	if content := strings.TrimSpace(b.Content); content != "" {
		fmt.Fprintf(&sb, "Content:\n%s\n", llmtext.Truncate(content, contentBudget))
	}
	return sb.String()
}

func buildAnalysisPrompt(b *bookmark.Bookmark, contentBudget int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", b.Title)
	if b.URL != "" {
		fmt.Fprintf(&sb, "URL: %s\n", b.URL)
	}
	fmt.Fprintf(&sb, "Content:\n%s\n", llmtext.Truncate(b.Content, contentBudget))
	return sb.String()
}

// parseTags extracts the first JSON array from the response and
// normalizes it.
func parseTags(raw string, max int) ([]string, error) {
	arr := llmtext.FirstArray(llmtext.StripCodeFences(raw))
	if arr == "" {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var tags []string
	if err := json.Unmarshal([]byte(arr), &tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	return bookmark.NormalizeTags(tags, max), nil
}

// parseAnalysis extracts and validates the analysis object. An invalid
// category falls back to personal rather than rejecting the summary.
func parseAnalysis(raw string, maxTags int) (*ContentAnalysis, error) {
	obj := llmtext.FirstObject(llmtext.StripCodeFences(raw))
	if obj == "" {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var analysis ContentAnalysis
	if err := json.Unmarshal([]byte(obj), &analysis); err != nil {
		return nil, fmt.Errorf("decoding analysis: %w", err)
	}
	if strings.TrimSpace(analysis.Summary) == "" {
		return nil, fmt.Errorf("analysis has no summary")
	}

	if !analysis.Category.Valid() {
		analysis.Category = bookmark.CategoryPersonal
	}
	if len(analysis.KeyPoints) > 5 {
		analysis.KeyPoints = analysis.KeyPoints[:5]
	}
	analysis.SuggestedTags = bookmark.NormalizeTags(analysis.SuggestedTags, maxTags)
	return &analysis, nil
}

func joinCategories() string {
	names := make([]string, len(bookmark.Categories))
	for i, c := range bookmark.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
