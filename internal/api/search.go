package api

import (
	"context"
	"net/http"

	"github.com/satchel0/satchel/internal/log"
	"github.com/satchel0/satchel/internal/search"
)

// Searcher answers natural-language queries.
type Searcher interface {
	Search(ctx context.Context, ownerID, query string, limit int) (*search.Response, error)
}

type searchHandler struct {
	searcher Searcher
	logger   log.Logger
}

// search handles GET /api/v1/search?q=...&limit=...
func (h *searchHandler) search(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}

	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "query_required", "q parameter is required", h.logger)
		return
	}
	limit := min(parseIntParam(r, "limit", 10), 50)

	resp, err := h.searcher.Search(r.Context(), owner, q, limit)
	if err != nil {
		h.logger.Error("searching bookmarks", "error", err, "owner_id", owner)
		writeError(w, http.StatusInternalServerError, "search_failed", "search failed", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp, h.logger)
}
