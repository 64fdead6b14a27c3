package scrape

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Metadata is what extraction yields for one bookmark. Extra holds
// type-specific fields (video id, channel, price) as strings; it feeds
// the JSONB metadata column unchanged.
type Metadata struct {
	Title       string
	Description string
	Content     string
	Thumbnail   string
	Favicon     string
	Extra       map[string]string
}

// metaContent returns the first non-empty content attribute among meta
// tags matching any of the given property or name values.
func metaContent(doc *goquery.Document, keys ...string) string {
	for _, key := range keys {
		sel := `meta[property="` + key + `"], meta[name="` + key + `"]`
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// extractBase pulls the metadata every page type shares, with layered
// fallbacks so missing tags degrade instead of failing.
func extractBase(page *Page) *Metadata {
	doc := page.Doc
	md := &Metadata{Extra: map[string]string{}}

	md.Title = metaContent(doc, "og:title", "twitter:title")
	if md.Title == "" {
		md.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if md.Title == "" {
		md.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	md.Description = metaContent(doc, "og:description", "twitter:description", "description")

	md.Thumbnail = resolveRef(page.URL, metaContent(doc, "og:image", "twitter:image"))
	md.Favicon = extractFavicon(page)

	if site := metaContent(doc, "og:site_name"); site != "" {
		md.Extra["site_name"] = site
	}

	return md
}

// extractFavicon finds the page icon, defaulting to /favicon.ico on the
// page's host.
func extractFavicon(page *Page) string {
	for _, sel := range []string{
		`link[rel="icon"]`,
		`link[rel="shortcut icon"]`,
		`link[rel="apple-touch-icon"]`,
	} {
		if href, ok := page.Doc.Find(sel).First().Attr("href"); ok {
			if resolved := resolveRef(page.URL, href); resolved != "" {
				return resolved
			}
		}
	}
	if page.URL == nil {
		return ""
	}
	return page.URL.Scheme + "://" + page.URL.Host + "/favicon.ico"
}

// resolveRef resolves ref against base, returning "" for empty or
// unparseable refs. Absolute refs pass through.
func resolveRef(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil || u.IsAbs() {
		return u.String()
	}
	return base.ResolveReference(u).String()
}
