package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/satchel0/satchel/internal/bookmark"
	"github.com/satchel0/satchel/internal/config"
	"github.com/satchel0/satchel/internal/llmtext"
	"github.com/satchel0/satchel/internal/log"
	"github.com/satchel0/satchel/internal/scrape"
)

// ErrInvalidInput marks save failures caused by the request itself.
// Everything else a failed Save returns is an infrastructure problem.
var ErrInvalidInput = errors.New("invalid save input")

// MetadataExtractor is the scraping dependency of the save pipeline.
type MetadataExtractor interface {
	Extract(ctx context.Context, rawURL string, ct bookmark.ContentType) (*scrape.Metadata, error)
}

// ImageAnalyzer is the vision dependency. Analyze never fails; it
// returns a low-confidence fallback instead.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, imageURL, hint string) *bookmark.ImageAnalysis
}

// BookmarkCreator is the persistence dependency of the save pipeline.
type BookmarkCreator interface {
	Create(ctx context.Context, b *bookmark.Bookmark) error
}

// Enqueuer accepts bookmark IDs for asynchronous embedding.
type Enqueuer interface {
	Enqueue(id uuid.UUID) bool
}

// SaveInput is one save request. PageURL, AltText, and SurroundingText
// carry the context an image was found in; they feed the vision hint.
type SaveInput struct {
	OwnerID         string
	URL             string
	Title           string // optional override; extraction fills it otherwise
	Note            string // free text for URL-less notes
	Tags            []string
	AsImage         bool   // treat URL as an image even without an image extension
	PageURL         string // page the image was saved from
	AltText         string // alt attribute of the image, when the client has it
	SurroundingText string // text near the image on the source page
}

// Service runs the synchronous part of the save pipeline. Only
// validation and persistence failures abort a save; every AI or network
// enrichment step degrades instead.
type Service struct {
	extractor MetadataExtractor
	vision    ImageAnalyzer
	tagger    *Tagger
	store     BookmarkCreator
	queue     Enqueuer
	limits    config.Limits
	logger    log.Logger
}

// NewService wires the save pipeline.
func NewService(extractor MetadataExtractor, vision ImageAnalyzer, tagger *Tagger,
	store BookmarkCreator, queue Enqueuer, limits config.Limits, logger log.Logger) *Service {
	return &Service{
		extractor: extractor,
		vision:    vision,
		tagger:    tagger,
		store:     store,
		queue:     queue,
		limits:    limits,
		logger:    logger.With("component", "enrich"),
	}
}

// Save classifies, enriches, and persists one bookmark, then queues its
// embedding. The returned bookmark reflects everything enrichment
// managed to produce.
func (s *Service) Save(ctx context.Context, in SaveInput) (*bookmark.Bookmark, error) {
	if in.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner ID is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.URL) == "" && strings.TrimSpace(in.Note) == "" && strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: a URL, note, or title is required", ErrInvalidInput)
	}

	ct := bookmark.Classify(in.URL)
	if in.AsImage && in.URL != "" {
		ct = bookmark.TypeImage
	}

	b := &bookmark.Bookmark{
		OwnerID:     in.OwnerID,
		URL:         strings.TrimSpace(in.URL),
		Title:       strings.TrimSpace(in.Title),
		Content:     strings.TrimSpace(in.Note),
		ContentType: ct,
		Category:    bookmark.CategoryPersonal,
		Metadata:    map[string]string{},
	}

	if pageURL := strings.TrimSpace(in.PageURL); pageURL != "" {
		b.Metadata["page_url"] = pageURL
	}

	s.extract(ctx, b)

	if ct == bookmark.TypeImage && s.vision != nil {
		b.Image = s.vision.Analyze(ctx, b.URL, visionHint(b.Title, in))
	}

	suggested := s.analyze(ctx, b)
	b.Tags = bookmark.MergeTags(append(s.tagger.GenerateTags(ctx, b), suggested...), in.Tags, s.limits.MaxTagsMerged)

	if b.Title == "" {
		b.Title = fallbackTitle(b)
	}

	if err := s.store.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("saving bookmark: %w", err)
	}

	if !s.queue.Enqueue(b.ID) {
		s.logger.Warn("embedding queue full, bookmark saved without vector", "id", b.ID)
	}

	s.logger.Info("bookmark saved",
		"id", b.ID,
		"type", b.ContentType,
		"category", b.Category,
		"tags", len(b.Tags))
	return b, nil
}

// extract runs metadata extraction. Failures leave the bookmark with
// whatever the caller supplied plus an extract_error marker.
func (s *Service) extract(ctx context.Context, b *bookmark.Bookmark) {
	if b.URL == "" || b.ContentType == bookmark.TypeNote {
		return
	}

	md, err := s.extractor.Extract(ctx, b.URL, b.ContentType)
	if err != nil {
		s.logger.Warn("metadata extraction failed", "url", b.URL, "error", err)
		b.Metadata["extract_error"] = err.Error()
		return
	}

	if b.Title == "" {
		b.Title = md.Title
	}
	if b.Content == "" {
		b.Content = md.Content
	}
	if b.Content == "" {
		b.Content = md.Description
	}
	b.Thumbnail = md.Thumbnail
	b.Favicon = md.Favicon
	for k, v := range md.Extra {
		b.Metadata[k] = v
	}
	if md.Description != "" {
		b.Metadata["description"] = md.Description
	}

	now := time.Now()
	b.ExtractedAt = &now
}

// analyze fills summary, key points, and category from the content
// analysis when one is produced, and returns its suggested tags for the
// tag merge.
func (s *Service) analyze(ctx context.Context, b *bookmark.Bookmark) []string {
	analysis := s.tagger.AnalyzeContent(ctx, b)
	if analysis == nil {
		return nil
	}
	b.Summary = analysis.Summary
	b.KeyPoints = analysis.KeyPoints
	b.Category = analysis.Category
	return analysis.SuggestedTags
}

// visionHint assembles the context block for image analysis from the
// title and whatever the client sent about where the image appeared.
func visionHint(title string, in SaveInput) string {
	parts := make([]string, 0, 4)
	if title != "" {
		parts = append(parts, title)
	}
	if alt := strings.TrimSpace(in.AltText); alt != "" {
		parts = append(parts, "alt text: "+alt)
	}
	if sur := strings.TrimSpace(in.SurroundingText); sur != "" {
		parts = append(parts, "nearby text: "+sur)
	}
	if pageURL := strings.TrimSpace(in.PageURL); pageURL != "" {
		parts = append(parts, "found on: "+pageURL)
	}
	return strings.Join(parts, "\n")
}

// fallbackTitle guarantees a non-empty title for the NOT NULL constraint
// when extraction produced nothing.
func fallbackTitle(b *bookmark.Bookmark) string {
	if b.URL != "" {
		return b.URL
	}
	if b.Content != "" {
		return llmtext.Cut(b.Content, 60)
	}
	return "Untitled"
}
