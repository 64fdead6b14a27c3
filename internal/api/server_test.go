package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satchel0/satchel/internal/bookmark"
	"github.com/satchel0/satchel/internal/enrich"
	"github.com/satchel0/satchel/internal/log"
	"github.com/satchel0/satchel/internal/search"
	"github.com/satchel0/satchel/internal/store"
)

type fakeSaver struct {
	lastInput enrich.SaveInput
	err       error
	panics    bool
}

func (f *fakeSaver) Save(_ context.Context, in enrich.SaveInput) (*bookmark.Bookmark, error) {
	if f.panics {
		panic("boom")
	}
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	return &bookmark.Bookmark{
		ID:          uuid.New(),
		OwnerID:     in.OwnerID,
		Title:       "Saved Title",
		URL:         in.URL,
		ContentType: bookmark.TypeArticle,
		Category:    bookmark.CategoryPersonal,
		Tags:        []string{"go"},
	}, nil
}

type fakeSearcher struct {
	lastQuery string
	lastLimit int
	resp      *search.Response
	err       error
}

func (f *fakeSearcher) Search(_ context.Context, _, query string, limit int) (*search.Response, error) {
	f.lastQuery = query
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &search.Response{Query: query, Results: []search.Result{}}, nil
}

type fakeReader struct {
	bookmarks map[uuid.UUID]*bookmark.Bookmark
	deleted   []uuid.UUID
}

func newFakeReader() *fakeReader {
	return &fakeReader{bookmarks: map[uuid.UUID]*bookmark.Bookmark{}}
}

func (f *fakeReader) Get(_ context.Context, ownerID string, id uuid.UUID) (*bookmark.Bookmark, error) {
	b, ok := f.bookmarks[id]
	if !ok || b.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return b, nil
}

func (f *fakeReader) List(_ context.Context, ownerID string, _ int) ([]*bookmark.Bookmark, error) {
	var out []*bookmark.Bookmark
	for _, b := range f.bookmarks {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeReader) Delete(_ context.Context, ownerID string, id uuid.UUID) error {
	b, ok := f.bookmarks[id]
	if !ok || b.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(f.bookmarks, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeReader) CountForOwner(_ context.Context, ownerID string) (int64, error) {
	var n int64
	for _, b := range f.bookmarks {
		if b.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func newTestServer(t *testing.T, saver *fakeSaver, searcher *fakeSearcher, reader *fakeReader) http.Handler {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Logger:   log.NewNop(),
		Saver:    saver,
		Searcher: searcher,
		Store:    reader,
	})
	require.NoError(t, err)
	return srv.Handler()
}

func doRequest(h http.Handler, method, target, owner, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if owner != "" {
		req.Header.Set(ownerHeader, owner)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNewServerRequiresDependencies(t *testing.T) {
	_, err := NewServer(ServerConfig{Logger: log.NewNop()})
	assert.Error(t, err)
}

func TestSaveBookmark(t *testing.T) {
	saver := &fakeSaver{}
	h := newTestServer(t, saver, &fakeSearcher{}, newFakeReader())

	w := doRequest(h, http.MethodPost, "/api/v1/bookmarks", "owner-1",
		`{"url": "https://go.dev/blog/loopvar", "tags": ["go"]}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "owner-1", saver.lastInput.OwnerID)
	assert.Equal(t, "https://go.dev/blog/loopvar", saver.lastInput.URL)
	assert.False(t, saver.lastInput.AsImage)

	var b bookmark.Bookmark
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	assert.Equal(t, "Saved Title", b.Title)
}

func TestSaveImageForcesImageInput(t *testing.T) {
	saver := &fakeSaver{}
	h := newTestServer(t, saver, &fakeSearcher{}, newFakeReader())

	w := doRequest(h, http.MethodPost, "/api/v1/bookmarks/image", "owner-1",
		`{"url": "https://example.com/chart"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, saver.lastInput.AsImage)
}

func TestSaveImageCarriesContextFields(t *testing.T) {
	saver := &fakeSaver{}
	h := newTestServer(t, saver, &fakeSearcher{}, newFakeReader())

	w := doRequest(h, http.MethodPost, "/api/v1/bookmarks/image", "owner-1",
		`{"url": "https://example.com/chart.png",
		  "page_url": "https://example.com/report",
		  "alt_text": "Revenue by quarter",
		  "surrounding_text": "Q3 grew 12% over Q2"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "https://example.com/report", saver.lastInput.PageURL)
	assert.Equal(t, "Revenue by quarter", saver.lastInput.AltText)
	assert.Equal(t, "Q3 grew 12% over Q2", saver.lastInput.SurroundingText)
}

func TestSaveRequiresOwnerHeader(t *testing.T) {
	h := newTestServer(t, &fakeSaver{}, &fakeSearcher{}, newFakeReader())

	w := doRequest(h, http.MethodPost, "/api/v1/bookmarks", "", `{"url": "https://example.com"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "owner_required", body.Error)
}

func TestSaveInvalidBody(t *testing.T) {
	h := newTestServer(t, &fakeSaver{}, &fakeSearcher{}, newFakeReader())

	w := doRequest(h, http.MethodPost, "/api/v1/bookmarks", "owner-1", "not json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSaveValidationFailure(t *testing.T) {
	saver := &fakeSaver{err: fmt.Errorf("%w: a URL, note, or title is required", enrich.ErrInvalidInput)}
	h := newTestServer(t, saver, &fakeSearcher{}, newFakeReader())

	w := doRequest(h, http.MethodPost, "/api/v1/bookmarks", "owner-1", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "invalid_input", body.Error)
}

func TestSavePersistenceFailure(t *testing.T) {
	saver := &fakeSaver{err: errors.New("saving bookmark: connection refused")}
	h := newTestServer(t, saver, &fakeSearcher{}, newFakeReader())

	w := doRequest(h, http.MethodPost, "/api/v1/bookmarks", "owner-1",
		`{"url": "https://example.com"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "save_failed", body.Error)
	assert.NotContains(t, body.Message, "connection refused")
}

func TestGetBookmark(t *testing.T) {
	reader := newFakeReader()
	id := uuid.New()
	reader.bookmarks[id] = &bookmark.Bookmark{ID: id, OwnerID: "owner-1", Title: "Kept"}
	h := newTestServer(t, &fakeSaver{}, &fakeSearcher{}, reader)

	w := doRequest(h, http.MethodGet, "/api/v1/bookmarks/"+id.String(), "owner-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var b bookmark.Bookmark
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	assert.Equal(t, "Kept", b.Title)
}

func TestGetBookmarkOwnerScoped(t *testing.T) {
	reader := newFakeReader()
	id := uuid.New()
	reader.bookmarks[id] = &bookmark.Bookmark{ID: id, OwnerID: "owner-1"}
	h := newTestServer(t, &fakeSaver{}, &fakeSearcher{}, reader)

	w := doRequest(h, http.MethodGet, "/api/v1/bookmarks/"+id.String(), "owner-2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetBookmarkInvalidID(t *testing.T) {
	h := newTestServer(t, &fakeSaver{}, &fakeSearcher{}, newFakeReader())

	w := doRequest(h, http.MethodGet, "/api/v1/bookmarks/not-a-uuid", "owner-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListBookmarks(t *testing.T) {
	reader := newFakeReader()
	for i := 0; i < 3; i++ {
		id := uuid.New()
		reader.bookmarks[id] = &bookmark.Bookmark{ID: id, OwnerID: "owner-1", Title: fmt.Sprintf("b%d", i)}
	}
	h := newTestServer(t, &fakeSaver{}, &fakeSearcher{}, reader)

	w := doRequest(h, http.MethodGet, "/api/v1/bookmarks", "owner-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Items []bookmark.Bookmark `json:"items"`
		Total int64               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Items, 3)
	assert.Equal(t, int64(3), body.Total)
}

func TestDeleteBookmark(t *testing.T) {
	reader := newFakeReader()
	id := uuid.New()
	reader.bookmarks[id] = &bookmark.Bookmark{ID: id, OwnerID: "owner-1"}
	h := newTestServer(t, &fakeSaver{}, &fakeSearcher{}, reader)

	w := doRequest(h, http.MethodDelete, "/api/v1/bookmarks/"+id.String(), "owner-1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Len(t, reader.deleted, 1)

	w = doRequest(h, http.MethodDelete, "/api/v1/bookmarks/"+id.String(), "owner-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearch(t *testing.T) {
	searcher := &fakeSearcher{resp: &search.Response{
		Query:   "cooking videos",
		Results: []search.Result{},
		Message: "no bookmarks matched",
	}}
	h := newTestServer(t, &fakeSaver{}, searcher, newFakeReader())

	w := doRequest(h, http.MethodGet, "/api/v1/search?q=cooking+videos&limit=5", "owner-1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cooking videos", searcher.lastQuery)
	assert.Equal(t, 5, searcher.lastLimit)

	var resp search.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "no bookmarks matched", resp.Message)
}

func TestSearchRequiresQuery(t *testing.T) {
	h := newTestServer(t, &fakeSaver{}, &fakeSearcher{}, newFakeReader())

	w := doRequest(h, http.MethodGet, "/api/v1/search", "owner-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchCapsLimit(t *testing.T) {
	searcher := &fakeSearcher{}
	h := newTestServer(t, &fakeSaver{}, searcher, newFakeReader())

	doRequest(h, http.MethodGet, "/api/v1/search?q=x&limit=9999", "owner-1", "")
	assert.Equal(t, 50, searcher.lastLimit)
}

func TestSearchFailure(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("connection refused")}
	h := newTestServer(t, &fakeSaver{}, searcher, newFakeReader())

	w := doRequest(h, http.MethodGet, "/api/v1/search?q=x", "owner-1", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, &fakeSaver{}, &fakeSearcher{}, newFakeReader())

	w := doRequest(h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestReadinessWithoutPool(t *testing.T) {
	h := newTestServer(t, &fakeSaver{}, &fakeSearcher{}, newFakeReader())

	w := doRequest(h, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPanicRecovery(t *testing.T) {
	saver := &fakeSaver{panics: true}
	h := newTestServer(t, saver, &fakeSearcher{}, newFakeReader())

	w := doRequest(h, http.MethodPost, "/api/v1/bookmarks", "owner-1", `{"url": "https://example.com"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal_error", body.Error)
}

func TestSecurityHeaders(t *testing.T) {
	h := newTestServer(t, &fakeSaver{}, &fakeSearcher{}, newFakeReader())

	w := doRequest(h, http.MethodGet, "/api/v1/bookmarks", "owner-1", "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
