// Package scrape fetches bookmarked pages and extracts metadata from them.
//
// Fetching is polite (bounded parallelism, per-domain delay, size cap) and
// SSRF-safe (every URL and every resolved IP is validated). Extraction is
// layered: OpenGraph first, twitter card and document fallbacks after, so
// a page missing any given tag still yields usable metadata.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/satchel0/satchel/internal/config"
	"github.com/satchel0/satchel/internal/log"
	"github.com/satchel0/satchel/internal/security"
)

// userAgent identifies satchel to the sites it fetches. A browser-like UA
// avoids the bot blocks that break OpenGraph extraction on many sites.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36 satchel/1.0"

// Page is one fetched document.
type Page struct {
	URL  *url.URL
	Body []byte
	Doc  *goquery.Document
}

// Fetcher retrieves pages through a shared colly collector that enforces
// the configured politeness limits across all fetches.
type Fetcher struct {
	base      *colly.Collector
	validator *security.URLValidator
	logger    log.Logger
}

// NewFetcher builds a fetcher from the scraper configuration. transport
// overrides the SSRF-validating transport when non-nil (tests only).
func NewFetcher(cfg config.ScraperConfig, validator *security.URLValidator, transport http.RoundTripper, logger log.Logger) (*Fetcher, error) {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.MaxBodySize(cfg.MaxBodyKB*1024),
		colly.IgnoreRobotsTxt(),
	)
	c.SetRequestTimeout(time.Duration(cfg.TimeoutMs) * time.Millisecond)

	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       time.Duration(cfg.DelayMs) * time.Millisecond,
	}); err != nil {
		return nil, fmt.Errorf("configuring fetch limits: %w", err)
	}

	if transport == nil {
		transport = validator.Transport()
	}
	c.WithTransport(transport)

	return &Fetcher{
		base:      c,
		validator: validator,
		logger:    logger.With("component", "fetcher"),
	}, nil
}

// Fetch retrieves and parses a single page. The URL is validated before
// any network activity.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if err := f.validator.Validate(rawURL); err != nil {
		return nil, fmt.Errorf("unsafe URL: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Clone shares the limit rules of the base collector but gives this
	// fetch its own callbacks.
	c := f.base.Clone()

	var (
		body     []byte
		finalURL *url.URL
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		finalURL = r.Request.URL
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("fetching %s: %w", rawURL, err)
	})

	start := time.Now()
	if err := c.Visit(rawURL); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if body == nil {
		return nil, fmt.Errorf("fetching %s: empty response", rawURL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", rawURL, err)
	}

	f.logger.Debug("page fetched",
		"url", rawURL,
		"bytes", len(body),
		"elapsed", time.Since(start))

	return &Page{URL: finalURL, Body: body, Doc: doc}, nil
}
