package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/satchel0/satchel/internal/bookmark"
	"github.com/satchel0/satchel/internal/embedding"
	"github.com/satchel0/satchel/internal/log"
)

// EmbeddingStore is the persistence surface the queue needs.
type EmbeddingStore interface {
	ListForRegeneration(ctx context.Context, ownerID string) ([]uuid.UUID, error)
	UpdateEmbedding(ctx context.Context, id uuid.UUID, vec []float32, dim int32, provider string) error
}

// VectorGenerator produces embedding vectors; nil results mean no
// provider could embed and the bookmark stays keyword-only.
type VectorGenerator interface {
	Available() bool
	Generate(ctx context.Context, text string) (*embedding.Result, error)
}

// BookmarkLoader loads bookmarks by ID regardless of owner; the queue
// holds only IDs.
type BookmarkLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*bookmark.Bookmark, error)
}

// queueCapacity bounds the embedding backlog. Saves never block on it;
// a full queue drops the job and leaves the bookmark for regeneration.
const queueCapacity = 256

// Queue embeds bookmarks in the background. Saves return before the
// vector exists; the queue processes IDs one at a time and failures are
// logged, not retried (Regenerate sweeps them up later).
type Queue struct {
	store     EmbeddingStore
	loader    BookmarkLoader
	generator VectorGenerator
	weights   embedding.ComposeWeights
	timeout   time.Duration
	jobs      chan uuid.UUID
	logger    log.Logger
}

// NewQueue creates the embedding queue. Run must be started for enqueued
// work to happen.
func NewQueue(store EmbeddingStore, loader BookmarkLoader, generator VectorGenerator,
	weights embedding.ComposeWeights, timeout time.Duration, logger log.Logger) *Queue {
	return &Queue{
		store:     store,
		loader:    loader,
		generator: generator,
		weights:   weights,
		timeout:   timeout,
		jobs:      make(chan uuid.UUID, queueCapacity),
		logger:    logger.With("component", "embed-queue"),
	}
}

// Enqueue schedules a bookmark for embedding. It never blocks; false
// means the queue is full and the job was dropped.
func (q *Queue) Enqueue(id uuid.UUID) bool {
	select {
	case q.jobs <- id:
		return true
	default:
		return false
	}
}

// Run processes jobs until ctx is canceled. Call it in its own
// goroutine.
func (q *Queue) Run(ctx context.Context) {
	q.logger.Debug("embedding queue started")
	for {
		select {
		case <-ctx.Done():
			q.logger.Debug("embedding queue stopped")
			return
		case id := <-q.jobs:
			if err := q.Process(ctx, id); err != nil {
				q.logger.Warn("embedding failed", "id", id, "error", err)
			}
		}
	}
}

// Process embeds one bookmark synchronously: load, compose, generate,
// persist. A nil generation result is not an error; the bookmark simply
// keeps no vector.
func (q *Queue) Process(ctx context.Context, id uuid.UUID) error {
	if !q.generator.Available() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	b, err := q.loader.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("loading bookmark: %w", err)
	}

	text := embedding.ComposeText(b, q.weights)
	if text == "" {
		return nil
	}

	result, err := q.generator.Generate(ctx, text)
	if err != nil {
		return fmt.Errorf("generating embedding: %w", err)
	}
	if result == nil {
		return nil
	}

	if err := q.store.UpdateEmbedding(ctx, id, result.Vector, result.Dim, result.Provider); err != nil {
		return fmt.Errorf("storing embedding: %w", err)
	}

	q.logger.Debug("bookmark embedded",
		"id", id, "provider", result.Provider, "dim", result.Dim)
	return nil
}

// Regenerate re-embeds every bookmark of an owner (or all owners when
// ownerID is empty), paced by the limiter to stay under provider rate
// limits. It returns how many bookmarks were successfully embedded; the
// first context error aborts, individual failures are logged and
// skipped.
func (q *Queue) Regenerate(ctx context.Context, ownerID string, limiter *rate.Limiter) (int, error) {
	ids, err := q.store.ListForRegeneration(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("listing bookmarks: %w", err)
	}

	done := 0
	for _, id := range ids {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return done, err
			}
		}
		if err := q.Process(ctx, id); err != nil {
			if ctx.Err() != nil {
				return done, ctx.Err()
			}
			q.logger.Warn("regeneration skipped bookmark", "id", id, "error", err)
			continue
		}
		done++
	}

	q.logger.Info("regeneration finished", "owner", ownerID, "total", len(ids), "embedded", done)
	return done, nil
}
