package embedding

import (
	"net/url"
	"strings"

	"github.com/satchel0/satchel/internal/bookmark"
	"github.com/satchel0/satchel/internal/llmtext"
)

// ComposeWeights controls how much of each field goes into the embedded
// text. Repetition is the weighting mechanism: repeating the title and
// tags biases the vector toward what the user actually searches by.
type ComposeWeights struct {
	TitleRepeat   int // times the title is repeated
	TagRepeat     int // times the joined tag list is repeated
	ContentBudget int // max content characters included
	TotalBudget   int // hard cap on the composed text
}

// DefaultWeights match the values retrieval quality was tuned against.
var DefaultWeights = ComposeWeights{
	TitleRepeat:   3,
	TagRepeat:     2,
	ContentBudget: 2000,
	TotalBudget:   8000,
}

// ComposeText builds the text a bookmark is embedded from: weighted
// title and tags, summary, a bounded slice of content, the image
// description when present, and the bare domain (so "that github thing"
// style queries land). The result is capped at TotalBudget characters.
func ComposeText(b *bookmark.Bookmark, w ComposeWeights) string {
	var sb strings.Builder

	appendRepeated(&sb, b.Title, w.TitleRepeat)
	if len(b.Tags) > 0 {
		appendRepeated(&sb, strings.Join(b.Tags, " "), w.TagRepeat)
	}
	appendPart(&sb, b.Summary)
	for _, kp := range b.KeyPoints {
		appendPart(&sb, kp)
	}

	if b.Image != nil {
		appendPart(&sb, b.Image.Description)
		appendPart(&sb, b.Image.OCRText)
		appendPart(&sb, strings.Join(b.Image.Tags, " "))
	}

	appendPart(&sb, llmtext.Cut(strings.TrimSpace(b.Content), w.ContentBudget))

	appendPart(&sb, domainOf(b.URL))

	return llmtext.Cut(strings.TrimSpace(sb.String()), w.TotalBudget)
}

func appendRepeated(sb *strings.Builder, part string, times int) {
	part = strings.TrimSpace(part)
	if part == "" {
		return
	}
	for i := 0; i < times; i++ {
		appendPart(sb, part)
	}
}

func appendPart(sb *strings.Builder, part string) {
	part = strings.TrimSpace(part)
	if part == "" {
		return
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(part)
}

// domainOf returns the bare host of a URL, without the www prefix.
func domainOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
