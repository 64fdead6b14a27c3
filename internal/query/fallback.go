package query

import (
	"strings"
	"time"

	"github.com/satchel0/satchel/internal/bookmark"
)

// fallbackConfidence marks parses produced without the model.
const fallbackConfidence = 0.5

// stopwords are dropped from keyword extraction.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "i": true, "me": true, "my": true,
	"that": true, "this": true, "those": true, "these": true,
	"to": true, "of": true, "in": true, "on": true, "for": true,
	"about": true, "with": true, "from": true, "and": true, "or": true,
	"find": true, "show": true, "search": true, "get": true, "saved": true,
	"bookmark": true, "bookmarks": true, "something": true, "stuff": true,
	"things": true, "want": true, "need": true, "was": true, "were": true,
	"is": true, "are": true, "it": true,
}

// typeTriggers maps query words to content type filters.
var typeTriggers = map[string]bookmark.ContentType{
	"video": bookmark.TypeVideo, "videos": bookmark.TypeVideo,
	"watch": bookmark.TypeVideo, "watched": bookmark.TypeVideo,
	"youtube": bookmark.TypeVideo,
	"product": bookmark.TypeProduct, "products": bookmark.TypeProduct,
	"buy": bookmark.TypeProduct, "bought": bookmark.TypeProduct,
	"article": bookmark.TypeArticle, "articles": bookmark.TypeArticle,
	"post": bookmark.TypeArticle, "blog": bookmark.TypeArticle,
	"tweet": bookmark.TypeTweet, "tweets": bookmark.TypeTweet,
	"image": bookmark.TypeImage, "images": bookmark.TypeImage,
	"photo": bookmark.TypeImage, "photos": bookmark.TypeImage,
	"picture": bookmark.TypeImage, "screenshot": bookmark.TypeImage,
	"note": bookmark.TypeNote, "notes": bookmark.TypeNote,
}

// categoryTriggers maps query words to category filters.
var categoryTriggers = map[string]bookmark.Category{
	"study": bookmark.CategoryLearning, "learn": bookmark.CategoryLearning,
	"learning": bookmark.CategoryLearning, "course": bookmark.CategoryLearning,
	"tutorial": bookmark.CategoryLearning,
	"work": bookmark.CategoryWork, "job": bookmark.CategoryWork,
	"meeting": bookmark.CategoryWork,
	"research": bookmark.CategoryResearch, "paper": bookmark.CategoryResearch,
	"shopping": bookmark.CategoryShopping, "shop": bookmark.CategoryShopping,
	"fun": bookmark.CategoryEntertainment, "funny": bookmark.CategoryEntertainment,
	"movie": bookmark.CategoryEntertainment, "game": bookmark.CategoryEntertainment,
	"inspiration": bookmark.CategoryInspiration, "design": bookmark.CategoryInspiration,
	"idea": bookmark.CategoryInspiration, "ideas": bookmark.CategoryInspiration,
}

// expansions widens keywords with related terms the user did not type.
var expansions = map[string][]string{
	"study":       {"learn", "education", "tutorial"},
	"learn":       {"study", "education", "tutorial"},
	"math":        {"mathematics", "algebra"},
	"cook":        {"cooking", "recipe"},
	"cooking":     {"recipe", "kitchen"},
	"recipe":      {"cooking", "food"},
	"code":        {"programming", "development"},
	"coding":      {"programming", "development"},
	"programming": {"coding", "development", "software"},
	"golang":      {"go"},
	"js":          {"javascript"},
	"ml":          {"machine learning", "ai"},
	"ai":          {"artificial intelligence", "machine learning"},
	"workout":     {"fitness", "exercise"},
	"travel":      {"trip", "vacation"},
}

// parseFallback produces a structured parse without the model: trigger
// tables for type and category filters, stopword-stripped keywords with
// expansion, and relative date ranges. Confidence is fixed at 0.5.
func parseFallback(raw string, now time.Time) *Parsed {
	p := &Parsed{
		Raw:           raw,
		SemanticQuery: raw,
		Confidence:    fallbackConfidence,
	}

	lower := strings.ToLower(raw)
	p.Filters.DateStart, p.Filters.DateEnd = relativeDates(lower, now)

	seenType := map[bookmark.ContentType]bool{}
	seenCat := map[bookmark.Category]bool{}

	for _, word := range strings.Fields(lower) {
		word = strings.Trim(word, ".,!?\"'()")
		if word == "" {
			continue
		}

		if ct, ok := typeTriggers[word]; ok && !seenType[ct] {
			seenType[ct] = true
			p.Filters.ContentTypes = append(p.Filters.ContentTypes, ct)
		}
		if cat, ok := categoryTriggers[word]; ok && !seenCat[cat] {
			seenCat[cat] = true
			p.Filters.Categories = append(p.Filters.Categories, cat)
		}

		if stopwords[word] || isDateWord(word) {
			continue
		}
		p.Keywords = append(p.Keywords, word)
		for _, exp := range expansions[word] {
			p.ExpandedKeywords = append(p.ExpandedKeywords, exp)
		}
	}

	return p
}

// dateWords are consumed by relativeDates and excluded from keywords.
var dateWords = map[string]bool{
	"yesterday": true, "today": true, "last": true, "past": true,
	"week": true, "month": true, "recently": true, "recent": true,
}

func isDateWord(word string) bool { return dateWords[word] }

// relativeDates maps common relative phrases to a [start, end) range.
func relativeDates(lower string, now time.Time) (*time.Time, *time.Time) {
	switch {
	case strings.Contains(lower, "yesterday"):
		end := now.Truncate(24 * time.Hour)
		start := end.Add(-24 * time.Hour)
		return &start, &end
	case strings.Contains(lower, "today"):
		start := now.Truncate(24 * time.Hour)
		return &start, nil
	case strings.Contains(lower, "last week"), strings.Contains(lower, "past week"), strings.Contains(lower, "recently"):
		start := now.Add(-7 * 24 * time.Hour)
		return &start, nil
	case strings.Contains(lower, "last month"), strings.Contains(lower, "past month"):
		start := now.Add(-30 * 24 * time.Hour)
		return &start, nil
	}
	return nil, nil
}
