package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/satchel0/satchel/internal/bookmark"
	"github.com/satchel0/satchel/internal/embedding"
	"github.com/satchel0/satchel/internal/log"
	"github.com/satchel0/satchel/internal/query"
	"github.com/satchel0/satchel/internal/store"
)

type fakeParser struct {
	parsed *query.Parsed
}

func (f *fakeParser) Parse(_ context.Context, raw string) *query.Parsed {
	if f.parsed != nil {
		return f.parsed
	}
	return &query.Parsed{Raw: raw, SemanticQuery: raw, Keywords: []string{raw}}
}

type fakeMatcher struct {
	calls   []store.SearchParams
	results [][]store.Match
	err     error
}

func (f *fakeMatcher) Search(_ context.Context, p store.SearchParams) ([]store.Match, error) {
	f.calls = append(f.calls, p)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	out := f.results[0]
	f.results = f.results[1:]
	return out, nil
}

type fakeVecGen struct {
	result *embedding.Result
	err    error
}

func (f *fakeVecGen) Available() bool { return f.result != nil || f.err != nil }

func (f *fakeVecGen) Generate(context.Context, string) (*embedding.Result, error) {
	return f.result, f.err
}

func newTestService(parser QueryParser, matcher Matcher, gen VectorGenerator) *Service {
	return NewService(parser, matcher, gen,
		NewReranker(nil, "", time.Second, log.NewNop()),
		Options{DefaultLimit: 10, OverfetchFactor: 3},
		log.NewNop())
}

func TestSearchEmptyQuerySkipsStore(t *testing.T) {
	matcher := &fakeMatcher{}
	svc := newTestService(&fakeParser{}, matcher, &fakeVecGen{})

	resp, err := svc.Search(context.Background(), "owner-1", "   ", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 0 || resp.Message == "" {
		t.Errorf("resp = %+v, want empty results with message", resp)
	}
	if len(matcher.calls) != 0 {
		t.Error("store queried for an empty search")
	}
}

func TestSearchRequiresOwner(t *testing.T) {
	svc := newTestService(&fakeParser{}, &fakeMatcher{}, &fakeVecGen{})
	if _, err := svc.Search(context.Background(), "", "query", 10); err == nil {
		t.Error("Search without owner succeeded")
	}
}

func TestSearchVectorPassCarriesQueryVector(t *testing.T) {
	vec := []float32{0.1, 0.2, 0.3}
	matcher := &fakeMatcher{results: [][]store.Match{candidateSet(5)}}
	svc := newTestService(&fakeParser{}, matcher,
		&fakeVecGen{result: &embedding.Result{Vector: vec, Dim: 3, Provider: "gemini"}})

	resp, err := svc.Search(context.Background(), "owner-1", "cooking", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matcher.calls) != 1 {
		t.Fatalf("store calls = %d, want 1", len(matcher.calls))
	}

	p := matcher.calls[0]
	if len(p.QueryVec) != 3 || p.QueryDim != 3 {
		t.Errorf("QueryVec dim = %d/%d, want 3/3", len(p.QueryVec), p.QueryDim)
	}
	if p.Limit != 15 {
		t.Errorf("Limit = %d, want overfetched 15", p.Limit)
	}
	if len(resp.Results) != 5 {
		t.Errorf("results = %d, want all 5 candidates", len(resp.Results))
	}
}

func TestSearchThinVectorResultsGetKeywordSupplement(t *testing.T) {
	vectorHits := candidateSet(2)
	keywordHits := append([]store.Match{vectorHits[0]}, candidateSet(3)...)

	matcher := &fakeMatcher{results: [][]store.Match{vectorHits, keywordHits}}
	svc := newTestService(&fakeParser{}, matcher,
		&fakeVecGen{result: &embedding.Result{Vector: []float32{1}, Dim: 1, Provider: "gemini"}})

	resp, err := svc.Search(context.Background(), "owner-1", "cooking", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matcher.calls) != 2 {
		t.Fatalf("store calls = %d, want vector pass plus supplement", len(matcher.calls))
	}
	if len(matcher.calls[1].QueryVec) != 0 {
		t.Error("supplement pass still carried the query vector")
	}
	// 2 vector hits + 3 new keyword hits, the shared one deduplicated.
	if len(resp.Results) != 5 {
		t.Errorf("results = %d, want 5 merged", len(resp.Results))
	}
	if resp.Results[0].Match.Bookmark.ID != vectorHits[0].Bookmark.ID {
		t.Error("vector pass order not preserved after merge")
	}
}

func TestSearchNoVectorSinglePass(t *testing.T) {
	matcher := &fakeMatcher{results: [][]store.Match{candidateSet(1)}}
	svc := newTestService(&fakeParser{}, matcher, &fakeVecGen{})

	if _, err := svc.Search(context.Background(), "owner-1", "cooking", 5); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matcher.calls) != 1 {
		t.Errorf("store calls = %d, want 1 keyword-only pass", len(matcher.calls))
	}
	if len(matcher.calls[0].QueryVec) != 0 {
		t.Error("keyword-only pass carried a vector")
	}
}

func TestSearchEmbeddingFailureDegradesToKeywords(t *testing.T) {
	matcher := &fakeMatcher{results: [][]store.Match{candidateSet(2)}}
	svc := newTestService(&fakeParser{}, matcher, &fakeVecGen{err: errors.New("quota")})

	resp, err := svc.Search(context.Background(), "owner-1", "cooking", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matcher.calls[0].QueryVec) != 0 {
		t.Error("failed embedding still produced a vector pass")
	}
	if len(resp.Results) != 2 {
		t.Errorf("results = %d, want 2", len(resp.Results))
	}
}

func TestSearchNoMatches(t *testing.T) {
	svc := newTestService(&fakeParser{}, &fakeMatcher{}, &fakeVecGen{})

	resp, err := svc.Search(context.Background(), "owner-1", "nothing here", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 0 || resp.Message == "" {
		t.Errorf("resp = %+v, want empty results with message", resp)
	}
}

func TestSearchStoreFailure(t *testing.T) {
	svc := newTestService(&fakeParser{}, &fakeMatcher{err: errors.New("connection refused")}, &fakeVecGen{})
	if _, err := svc.Search(context.Background(), "owner-1", "query", 5); err == nil {
		t.Error("store failure did not surface")
	}
}

func TestSearchAppliesParsedFilters(t *testing.T) {
	start := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)
	parser := &fakeParser{parsed: &query.Parsed{
		Raw:           "cooking videos from last week",
		SemanticQuery: "cooking videos",
		Keywords:      []string{"cooking"},
		ExpandedKeywords: []string{
			"recipe",
		},
		Filters: query.Filters{
			ContentTypes: []bookmark.ContentType{bookmark.TypeVideo},
			DateStart:    &start,
		},
		Confidence: 0.9,
	}}

	matcher := &fakeMatcher{results: [][]store.Match{candidateSet(1)}}
	svc := newTestService(parser, matcher, &fakeVecGen{})

	resp, err := svc.Search(context.Background(), "owner-1", "cooking videos from last week", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	p := matcher.calls[0]
	if len(p.ContentTypes) != 1 || p.ContentTypes[0] != bookmark.TypeVideo {
		t.Errorf("ContentTypes = %v", p.ContentTypes)
	}
	if p.DateStart == nil || !p.DateStart.Equal(start) {
		t.Errorf("DateStart = %v", p.DateStart)
	}
	if len(p.Keywords) != 2 {
		t.Errorf("Keywords = %v, want keywords plus expansions", p.Keywords)
	}
	if resp.Parsed == nil || resp.Parsed.Confidence != 0.9 {
		t.Error("parsed query not echoed in response")
	}
}
