// Package bookmark defines the core record type of satchel and the
// taxonomies every other layer (enrichment prompts, query parsing, search
// filters) references. The taxonomy value sets live here so prompts and
// filter logic can never drift apart.
package bookmark

import (
	"time"

	"github.com/google/uuid"
)

// ContentType classifies what kind of thing a bookmark points at.
type ContentType string

// Content type taxonomy. Classification is structural (URL patterns), not
// semantic: a blog post about a video is still an article.
const (
	TypeVideo   ContentType = "video"
	TypeProduct ContentType = "product"
	TypeArticle ContentType = "article"
	TypeTweet   ContentType = "tweet"
	TypeNote    ContentType = "note"
	TypeImage   ContentType = "image"
)

// ContentTypes lists every valid content type, in classifier precedence
// order for the URL-pattern checks (video before product before tweet
// before image; article is the web-URL default, note is the no-URL case).
var ContentTypes = []ContentType{
	TypeVideo, TypeProduct, TypeArticle, TypeTweet, TypeNote, TypeImage,
}

// Valid reports whether the content type is one of the known values.
func (t ContentType) Valid() bool {
	switch t {
	case TypeVideo, TypeProduct, TypeArticle, TypeTweet, TypeNote, TypeImage:
		return true
	}
	return false
}

// Category is the life-area a bookmark belongs to, assigned by the AI
// tagger (or defaulted) rather than derived from the URL.
type Category string

// Category taxonomy.
const (
	CategoryWork          Category = "work"
	CategoryPersonal      Category = "personal"
	CategoryResearch      Category = "research"
	CategoryInspiration   Category = "inspiration"
	CategoryShopping      Category = "shopping"
	CategoryEntertainment Category = "entertainment"
	CategoryLearning      Category = "learning"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryWork, CategoryPersonal, CategoryResearch, CategoryInspiration,
	CategoryShopping, CategoryEntertainment, CategoryLearning,
}

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	switch c {
	case CategoryWork, CategoryPersonal, CategoryResearch, CategoryInspiration,
		CategoryShopping, CategoryEntertainment, CategoryLearning:
		return true
	}
	return false
}

// ImageAnalysis holds the vision model's reading of an image bookmark.
// A zero Confidence with the "unavailable" description marks the fallback
// produced when vision analysis failed; the bookmark is still saved.
type ImageAnalysis struct {
	OCRText     string   `json:"ocr_text"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Objects     []string `json:"objects"`
	Confidence  float64  `json:"confidence"`
}

// Bookmark is a saved item after enrichment. Embedding state lives in the
// store, not here: vectors are written asynchronously and queried, never
// carried around with the record.
type Bookmark struct {
	ID          uuid.UUID         `json:"id"`
	OwnerID     string            `json:"owner_id"`
	Title       string            `json:"title"`
	URL         string            `json:"url,omitempty"`
	Content     string            `json:"content,omitempty"`
	ContentType ContentType       `json:"content_type"`
	Category    Category          `json:"category"`
	Tags        []string          `json:"tags"`
	Summary     string            `json:"summary,omitempty"`
	KeyPoints   []string          `json:"key_points,omitempty"`
	Thumbnail   string            `json:"thumbnail,omitempty"`
	Favicon     string            `json:"favicon,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Image       *ImageAnalysis    `json:"image,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	ExtractedAt *time.Time        `json:"extracted_at,omitempty"`
}
