package enrich

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/satchel0/satchel/internal/bookmark"
	"github.com/satchel0/satchel/internal/config"
	"github.com/satchel0/satchel/internal/log"
	"github.com/satchel0/satchel/internal/testutil"
)

func testLimits() config.Limits {
	return config.Limits{
		MaxTagsAI:         5,
		MaxTagsMerged:     8,
		MinTagLen:         2,
		MaxTagLen:         30,
		MinAnalysisChars:  100,
		ContentCharBudget: 2000,
		TotalCharBudget:   8000,
		OverfetchFactor:   3,
	}
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{"clean array", `["go","testing","web"]`, []string{"go", "testing", "web"}, false},
		{"fenced", "```json\n[\"go\",\"web\"]\n```", []string{"go", "web"}, false},
		{"with prose", `Sure! ["go","api"] there you go`, []string{"go", "api"}, false},
		{"normalized and capped", `["GO","go","a","one","two","three","four","five"]`,
			[]string{"go", "one", "two", "three", "four"}, false},
		{"no array", "cannot tag this", nil, true},
		{"broken json", `["go",`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTags(tt.raw, 5)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseTags(%q) = %v, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTags(%q) error: %v", tt.raw, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseTags(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseAnalysis(t *testing.T) {
	got, err := parseAnalysis(`{"summary":"A guide.","key_points":["a","b"],"category":"learning"}`, 5)
	if err != nil {
		t.Fatalf("parseAnalysis error: %v", err)
	}
	if got.Category != bookmark.CategoryLearning || got.Summary != "A guide." {
		t.Errorf("parseAnalysis = %+v", got)
	}
}

func TestParseAnalysisNormalizesSuggestedTags(t *testing.T) {
	got, err := parseAnalysis(`{"summary":"A bread primer.",
		"suggested_tags":["Sourdough","sourdough","x","baking","bread","yeast","flour","oven"],
		"category":"learning"}`, 5)
	if err != nil {
		t.Fatalf("parseAnalysis error: %v", err)
	}
	want := []string{"sourdough", "baking", "bread", "yeast", "flour"}
	if !reflect.DeepEqual(got.SuggestedTags, want) {
		t.Errorf("SuggestedTags = %v, want %v", got.SuggestedTags, want)
	}
}

func TestParseAnalysisInvalidCategoryFallsBack(t *testing.T) {
	got, err := parseAnalysis(`{"summary":"Something.","category":"finance"}`, 5)
	if err != nil {
		t.Fatalf("parseAnalysis error: %v", err)
	}
	if got.Category != bookmark.CategoryPersonal {
		t.Errorf("Category = %q, want fallback personal", got.Category)
	}
}

func TestParseAnalysisRequiresSummary(t *testing.T) {
	if _, err := parseAnalysis(`{"key_points":["a"],"category":"work"}`, 5); err == nil {
		t.Error("analysis without summary accepted")
	}
}

func TestGenerateTagsWithMockModel(t *testing.T) {
	g := testutil.SetupGenkit(t)
	mock := testutil.NewMockLLM(`["fallback"]`)
	mock.AddResponse("concurrency", `["golang","concurrency","patterns"]`)
	mock.RegisterModel(g)

	tagger := NewTagger(g, testutil.ModelName, testLimits(), 5*time.Second, log.NewNop())

	b := &bookmark.Bookmark{Title: "Go Concurrency Patterns", ContentType: bookmark.TypeArticle}
	got := tagger.GenerateTags(context.Background(), b)
	want := []string{"golang", "concurrency", "patterns"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GenerateTags = %v, want %v", got, want)
	}
}

func TestGenerateTagsModelFailure(t *testing.T) {
	g := testutil.SetupGenkit(t)
	mock := testutil.NewMockLLM("")
	mock.FailWith(errors.New("quota exceeded"))
	mock.RegisterModel(g)

	tagger := NewTagger(g, testutil.ModelName, testLimits(), 5*time.Second, log.NewNop())

	got := tagger.GenerateTags(context.Background(), &bookmark.Bookmark{Title: "x"})
	if len(got) != 0 {
		t.Errorf("GenerateTags on failure = %v, want empty", got)
	}
}

func TestGenerateTagsNilModel(t *testing.T) {
	tagger := NewTagger(nil, "", testLimits(), time.Second, log.NewNop())
	if got := tagger.GenerateTags(context.Background(), &bookmark.Bookmark{Title: "x"}); len(got) != 0 {
		t.Errorf("GenerateTags without model = %v, want empty", got)
	}
}

func TestAnalyzeContentThreshold(t *testing.T) {
	g := testutil.SetupGenkit(t)
	mock := testutil.NewMockLLM(`{"summary":"s","category":"work"}`)
	mock.RegisterModel(g)

	tagger := NewTagger(g, testutil.ModelName, testLimits(), 5*time.Second, log.NewNop())

	short := &bookmark.Bookmark{Title: "x", Content: "too short"}
	if got := tagger.AnalyzeContent(context.Background(), short); got != nil {
		t.Errorf("AnalyzeContent below threshold = %+v, want nil", got)
	}
	if calls := mock.Calls(); len(calls) != 0 {
		t.Errorf("model called for below-threshold content")
	}
}
