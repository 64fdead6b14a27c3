package bookmark

import (
	"net/url"
	"path"
	"strings"
)

// Pattern tables checked against the host and path of a URL. Order
// matters: video wins over product wins over tweet wins over image
// extension, and anything else with a URL is an article.
var (
	videoHosts = []string{
		"youtube.com", "youtu.be", "vimeo.com", "tiktok.com", "twitch.tv",
	}
	productHosts = []string{
		"amazon.", "ebay.", "etsy.com", "aliexpress.",
	}
	tweetHosts = []string{
		"twitter.com", "x.com",
	}
	imageExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
		".webp": true, ".svg": true, ".avif": true,
	}
)

// Classify determines the content type of a URL from its structure alone,
// with no network access. An empty URL is a note. Unparseable or
// unrecognized URLs fall back to article, so classification never fails.
func Classify(rawURL string) ContentType {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return TypeNote
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return TypeArticle
	}

	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	p := strings.ToLower(u.Path)

	for _, vh := range videoHosts {
		if hostMatches(host, vh) {
			// A YouTube channel or search page is not a video; require a
			// watch path on youtube.com specifically.
			if vh == "youtube.com" && !strings.Contains(p, "/watch") && !strings.HasPrefix(p, "/shorts/") && !strings.HasPrefix(p, "/embed/") {
				break
			}
			return TypeVideo
		}
	}

	for _, ph := range productHosts {
		if strings.HasPrefix(host, ph) || strings.Contains(host, "."+ph) {
			return TypeProduct
		}
	}
	if strings.Contains(p, "/product/") || strings.Contains(p, "/products/") || strings.Contains(p, "/item/") {
		return TypeProduct
	}

	for _, th := range tweetHosts {
		if hostMatches(host, th) && strings.Contains(p, "/status/") {
			return TypeTweet
		}
	}

	if imageExtensions[strings.ToLower(path.Ext(p))] {
		return TypeImage
	}

	return TypeArticle
}

// hostMatches reports whether host equals pattern or is a subdomain of it.
func hostMatches(host, pattern string) bool {
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}
