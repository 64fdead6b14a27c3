package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/satchel0/satchel/internal/bookmark"
	"github.com/satchel0/satchel/internal/llmtext"
	"github.com/satchel0/satchel/internal/log"
)

// maxContentChars caps extracted article text. Longer bodies add noise to
// tagging and are truncated again by the embedding composer anyway.
const maxContentChars = 20000

// Extractor handles one family of URLs. CanHandle is probed in priority
// order; the first extractor that claims a URL extracts it.
type Extractor interface {
	CanHandle(u *url.URL) bool
	Extract(ctx context.Context, u *url.URL) (*Metadata, error)
}

// Scraper selects an extractor for a URL and runs it. The article
// extractor sits last in the priority list and claims every URL, so
// selection never comes up empty.
type Scraper struct {
	extractors []Extractor
	image      *imageExtractor
	logger     log.Logger
}

// NewScraper creates a scraper on top of a fetcher.
func NewScraper(fetcher *Fetcher, logger log.Logger) *Scraper {
	lg := logger.With("component", "scraper")
	image := &imageExtractor{}
	return &Scraper{
		image: image,
		extractors: []Extractor{
			image,
			&videoExtractor{fetcher: fetcher},
			&productExtractor{fetcher: fetcher},
			&tweetExtractor{fetcher: fetcher},
			&articleExtractor{fetcher: fetcher, logger: lg},
		},
		logger: lg,
	}
}

// Extract runs the first capable extractor for the URL and returns its
// metadata. ct overrides selection only for images, where the caller may
// force image handling onto an extensionless URL. On any failure it
// returns the error and a nil Metadata; the caller decides how to
// degrade.
func (s *Scraper) Extract(ctx context.Context, rawURL string, ct bookmark.ContentType) (*Metadata, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", rawURL, err)
	}

	ex := s.selectExtractor(u)
	if ct == bookmark.TypeImage {
		ex = s.image
	}

	md, err := ex.Extract(ctx, u)
	if err != nil {
		return nil, err
	}
	if md.Title == "" {
		md.Title = rawURL
	}
	return md, nil
}

// selectExtractor walks the priority list. The article extractor at the
// end accepts everything.
func (s *Scraper) selectExtractor(u *url.URL) Extractor {
	for _, ex := range s.extractors {
		if ex.CanHandle(u) {
			return ex
		}
	}
	return s.extractors[len(s.extractors)-1]
}

// imageExtractor builds metadata for a direct image URL without fetching
// it. The title is the filename; the image itself is the thumbnail. Any
// further understanding comes from vision analysis.
type imageExtractor struct{}

func (*imageExtractor) CanHandle(u *url.URL) bool {
	return bookmark.Classify(u.String()) == bookmark.TypeImage
}

func (*imageExtractor) Extract(_ context.Context, u *url.URL) (*Metadata, error) {
	title := u.String()
	if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
		title = base
	}
	return &Metadata{
		Title:     title,
		Thumbnail: u.String(),
		Extra:     map[string]string{},
	}, nil
}

// videoExtractor adds video id, channel, and duration on top of the base
// metadata when the page exposes them through meta tags or JSON-LD.
type videoExtractor struct {
	fetcher *Fetcher
}

func (*videoExtractor) CanHandle(u *url.URL) bool {
	return bookmark.Classify(u.String()) == bookmark.TypeVideo
}

func (e *videoExtractor) Extract(ctx context.Context, u *url.URL) (*Metadata, error) {
	page, err := e.fetcher.Fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}
	md := extractBase(page)
	extractVideoExtras(page, md)
	return md, nil
}

// productExtractor adds price and brand on top of the base metadata.
type productExtractor struct {
	fetcher *Fetcher
}

func (*productExtractor) CanHandle(u *url.URL) bool {
	return bookmark.Classify(u.String()) == bookmark.TypeProduct
}

func (e *productExtractor) Extract(ctx context.Context, u *url.URL) (*Metadata, error) {
	page, err := e.fetcher.Fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}
	md := extractBase(page)
	extractProductExtras(page, md)
	return md, nil
}

// tweetExtractor relies on base extraction alone; tweets carry their
// text in og:description.
type tweetExtractor struct {
	fetcher *Fetcher
}

func (*tweetExtractor) CanHandle(u *url.URL) bool {
	return bookmark.Classify(u.String()) == bookmark.TypeTweet
}

func (e *tweetExtractor) Extract(ctx context.Context, u *url.URL) (*Metadata, error) {
	page, err := e.fetcher.Fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}
	return extractBase(page), nil
}

// articleExtractor is the default handler: it claims every URL and runs
// readability over the page for the body text.
type articleExtractor struct {
	fetcher *Fetcher
	logger  log.Logger
}

func (*articleExtractor) CanHandle(*url.URL) bool { return true }

func (e *articleExtractor) Extract(ctx context.Context, u *url.URL) (*Metadata, error) {
	page, err := e.fetcher.Fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}
	md := extractBase(page)
	e.fillArticle(page, md)
	return md, nil
}

// fillArticle runs readability over the page and stores the article
// text. Extraction failures are logged and leave the description as the
// only content.
func (e *articleExtractor) fillArticle(page *Page, md *Metadata) {
	article, err := readability.FromReader(bytes.NewReader(page.Body), page.URL)
	if err != nil {
		e.logger.Warn("readability extraction failed",
			"url", page.URL.String(), "error", err)
		return
	}

	md.Content = llmtext.Cut(strings.TrimSpace(article.TextContent), maxContentChars)

	if md.Title == "" {
		md.Title = article.Title
	}
	if md.Description == "" {
		md.Description = article.Excerpt
	}
	if md.Thumbnail == "" {
		md.Thumbnail = article.Image
	}
	if byline := strings.TrimSpace(article.Byline); byline != "" {
		md.Extra["author"] = byline
	}
}

// extractVideoExtras adds video id, channel, and duration when the page
// exposes them through meta tags or JSON-LD.
func extractVideoExtras(page *Page, md *Metadata) {
	if id := videoID(page.URL); id != "" {
		md.Extra["video_id"] = id
	}
	if channel := metaContent(page.Doc, "og:video:tag", "author"); channel != "" {
		md.Extra["channel"] = channel
	}
	if dur := metaContent(page.Doc, "video:duration", "og:video:duration"); dur != "" {
		md.Extra["duration"] = dur
	}

	// YouTube puts channel and duration in VideoObject JSON-LD.
	page.Doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var obj struct {
			Type     string `json:"@type"`
			Name     string `json:"name"`
			Author   string `json:"author"`
			Duration string `json:"duration"`
		}
		if err := json.Unmarshal([]byte(sel.Text()), &obj); err != nil {
			return true
		}
		if obj.Type != "VideoObject" {
			return true
		}
		if obj.Author != "" && md.Extra["channel"] == "" {
			md.Extra["channel"] = obj.Author
		}
		if obj.Duration != "" && md.Extra["duration"] == "" {
			md.Extra["duration"] = obj.Duration
		}
		return false
	})
}

// videoID pulls the platform video identifier out of a watch URL.
func videoID(u *url.URL) string {
	if u == nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch {
	case host == "youtu.be":
		return strings.Trim(u.Path, "/")
	case strings.HasSuffix(host, "youtube.com"):
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		for _, prefix := range []string{"/shorts/", "/embed/"} {
			if strings.HasPrefix(u.Path, prefix) {
				return strings.Trim(strings.TrimPrefix(u.Path, prefix), "/")
			}
		}
	case host == "vimeo.com":
		return strings.Trim(u.Path, "/")
	}
	return ""
}

// extractProductExtras adds price and brand from OpenGraph product tags
// or Product JSON-LD.
func extractProductExtras(page *Page, md *Metadata) {
	if price := metaContent(page.Doc, "product:price:amount", "og:price:amount"); price != "" {
		md.Extra["price"] = price
		if cur := metaContent(page.Doc, "product:price:currency", "og:price:currency"); cur != "" {
			md.Extra["currency"] = cur
		}
	}
	if brand := metaContent(page.Doc, "product:brand", "og:brand"); brand != "" {
		md.Extra["brand"] = brand
	}

	page.Doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var obj struct {
			Type   string          `json:"@type"`
			Brand  json.RawMessage `json:"brand"`
			Offers struct {
				Price         json.Number `json:"price"`
				PriceCurrency string      `json:"priceCurrency"`
			} `json:"offers"`
		}
		if err := json.Unmarshal([]byte(sel.Text()), &obj); err != nil {
			return true
		}
		if obj.Type != "Product" {
			return true
		}
		if p := obj.Offers.Price.String(); p != "" && md.Extra["price"] == "" {
			md.Extra["price"] = p
			if obj.Offers.PriceCurrency != "" {
				md.Extra["currency"] = obj.Offers.PriceCurrency
			}
		}
		if brand := brandName(obj.Brand); brand != "" && md.Extra["brand"] == "" {
			md.Extra["brand"] = brand
		}
		return false
	})
}

// brandName handles the two JSON-LD brand shapes: a plain string or a
// {"name": ...} object.
func brandName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Name
	}
	return ""
}
