// Package api exposes the save and search pipelines over a JSON HTTP
// API. Handlers are thin; all behavior lives in the services behind the
// Saver, Searcher, and BookmarkReader interfaces.
package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/satchel0/satchel/internal/log"
)

// ServerConfig contains the dependencies for the API server.
type ServerConfig struct {
	Logger   log.Logger
	Saver    Saver          // required
	Searcher Searcher       // required
	Store    BookmarkReader // required
	Pool     *pgxpool.Pool  // optional: nil disables pool stats in /ready
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Saver == nil || cfg.Searcher == nil || cfg.Store == nil {
		return nil, errors.New("saver, searcher, and store are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	bh := &bookmarkHandler{saver: cfg.Saver, store: cfg.Store, logger: logger}
	sh := &searchHandler{searcher: cfg.Searcher, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/bookmarks", bh.save)
	mux.HandleFunc("POST /api/v1/bookmarks/image", bh.saveImage)
	mux.HandleFunc("GET /api/v1/bookmarks", bh.list)
	mux.HandleFunc("GET /api/v1/bookmarks/{id}", bh.get)
	mux.HandleFunc("DELETE /api/v1/bookmarks/{id}", bh.remove)
	mux.HandleFunc("GET /api/v1/search", sh.search)

	// Middleware stack, outermost first: Recovery -> Logging -> Routes.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
