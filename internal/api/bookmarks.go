package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/satchel0/satchel/internal/bookmark"
	"github.com/satchel0/satchel/internal/enrich"
	"github.com/satchel0/satchel/internal/log"
	"github.com/satchel0/satchel/internal/store"
)

// maxSaveBody caps save request bodies; a bookmark save is small.
const maxSaveBody = 64 * 1024

// Saver runs the enrichment pipeline for one bookmark.
type Saver interface {
	Save(ctx context.Context, in enrich.SaveInput) (*bookmark.Bookmark, error)
}

// BookmarkReader serves the keyed read and delete operations.
type BookmarkReader interface {
	Get(ctx context.Context, ownerID string, id uuid.UUID) (*bookmark.Bookmark, error)
	List(ctx context.Context, ownerID string, limit int) ([]*bookmark.Bookmark, error)
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
	CountForOwner(ctx context.Context, ownerID string) (int64, error)
}

type bookmarkHandler struct {
	saver  Saver
	store  BookmarkReader
	logger log.Logger
}

// saveRequest is the body for POST /api/v1/bookmarks and
// POST /api/v1/bookmarks/image. The context fields matter for image
// saves, where the page around the image grounds the vision analysis.
type saveRequest struct {
	URL             string   `json:"url"`
	Title           string   `json:"title"`
	Note            string   `json:"note"`
	Tags            []string `json:"tags"`
	PageURL         string   `json:"page_url"`
	AltText         string   `json:"alt_text"`
	SurroundingText string   `json:"surrounding_text"`
}

// save handles POST /api/v1/bookmarks.
func (h *bookmarkHandler) save(w http.ResponseWriter, r *http.Request) {
	h.handleSave(w, r, false)
}

// saveImage handles POST /api/v1/bookmarks/image; the URL is treated as
// an image regardless of its extension.
func (h *bookmarkHandler) saveImage(w http.ResponseWriter, r *http.Request) {
	h.handleSave(w, r, true)
}

func (h *bookmarkHandler) handleSave(w http.ResponseWriter, r *http.Request, asImage bool) {
	owner, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSaveBody)

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	b, err := h.saver.Save(r.Context(), enrich.SaveInput{
		OwnerID:         owner,
		URL:             req.URL,
		Title:           req.Title,
		Note:            req.Note,
		Tags:            req.Tags,
		AsImage:         asImage,
		PageURL:         req.PageURL,
		AltText:         req.AltText,
		SurroundingText: req.SurroundingText,
	})
	if err != nil {
		if errors.Is(err, enrich.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), h.logger)
			return
		}
		h.logger.Error("saving bookmark", "error", err, "owner_id", owner)
		writeError(w, http.StatusInternalServerError, "save_failed", "failed to save bookmark", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, b, h.logger)
}

// get handles GET /api/v1/bookmarks/{id}.
func (h *bookmarkHandler) get(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid bookmark ID", h.logger)
		return
	}

	b, err := h.store.Get(r.Context(), owner, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "bookmark not found", h.logger)
			return
		}
		h.logger.Error("getting bookmark", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "get_failed", "failed to get bookmark", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, b, h.logger)
}

// list handles GET /api/v1/bookmarks.
func (h *bookmarkHandler) list(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}

	limit := min(parseIntParam(r, "limit", 50), 200)

	bookmarks, err := h.store.List(r.Context(), owner, limit)
	if err != nil {
		h.logger.Error("listing bookmarks", "error", err, "owner_id", owner)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list bookmarks", h.logger)
		return
	}

	total, err := h.store.CountForOwner(r.Context(), owner)
	if err != nil {
		h.logger.Error("counting bookmarks", "error", err, "owner_id", owner)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list bookmarks", h.logger)
		return
	}

	if bookmarks == nil {
		bookmarks = []*bookmark.Bookmark{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": bookmarks,
		"total": total,
	}, h.logger)
}

// remove handles DELETE /api/v1/bookmarks/{id}.
func (h *bookmarkHandler) remove(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid bookmark ID", h.logger)
		return
	}

	if err := h.store.Delete(r.Context(), owner, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "bookmark not found", h.logger)
			return
		}
		h.logger.Error("deleting bookmark", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to delete bookmark", h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseIntParam reads a positive integer query parameter with a default.
func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
