// Package vision analyzes image bookmarks with a multimodal model.
//
// The analyzer downloads the image through the SSRF-validating client,
// sends it to the vision model as an inline data URI, and parses the
// structured response. Analysis is best-effort by contract: Analyze never
// returns an error, it returns a low-confidence fallback instead, and the
// bookmark is saved either way.
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/satchel0/satchel/internal/bookmark"
	"github.com/satchel0/satchel/internal/llmtext"
	"github.com/satchel0/satchel/internal/log"
)

const (
	// maxImageBytes caps downloaded image size (inline data URIs have
	// model-side limits well below this).
	maxImageBytes = 8 << 20

	// maxListEntries caps tags and objects from the model.
	maxListEntries = 10
)

const systemPrompt = `You analyze images saved to a personal bookmark collection.
Respond with a single JSON object, no markdown, in this exact shape:
{
  "ocr_text": "all readable text in the image, empty string if none",
  "description": "one or two sentences describing the image",
  "tags": ["lowercase", "topical", "tags"],
  "objects": ["visible", "objects"],
  "confidence": 0.0
}
confidence is your overall confidence in this analysis between 0 and 1.`

// Analyzer calls the vision model for image bookmarks.
type Analyzer struct {
	g         *genkit.Genkit
	modelName string
	client    *http.Client
	timeout   time.Duration
	logger    log.Logger
}

// NewAnalyzer creates an analyzer. client must be the SSRF-validating
// client; g may be nil, in which case every analysis yields the fallback.
func NewAnalyzer(g *genkit.Genkit, modelName string, client *http.Client, timeout time.Duration, logger log.Logger) *Analyzer {
	return &Analyzer{
		g:         g,
		modelName: modelName,
		client:    client,
		timeout:   timeout,
		logger:    logger.With("component", "vision"),
	}
}

// Fallback is the analysis recorded when the model is unavailable or its
// output is unusable. Confidence zero marks it as a placeholder a later
// re-analysis may replace.
func Fallback() *bookmark.ImageAnalysis {
	return &bookmark.ImageAnalysis{
		Description: "Image analysis unavailable",
		Tags:        []string{"image"},
		Objects:     []string{},
		Confidence:  0,
	}
}

// Analyze downloads and analyzes the image at imageURL. hint carries any
// surrounding text (page title, alt text) to ground the analysis. The
// returned analysis is never nil and Analyze never fails the save path.
func (a *Analyzer) Analyze(ctx context.Context, imageURL, hint string) *bookmark.ImageAnalysis {
	if a.g == nil {
		return Fallback()
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	part, err := a.fetchImagePart(ctx, imageURL)
	if err != nil {
		a.logger.Warn("image fetch failed", "url", imageURL, "error", err)
		return Fallback()
	}

	prompt := "Analyze this image."
	if hint = strings.TrimSpace(hint); hint != "" {
		prompt += " Context from where it was saved: " + llmtext.Truncate(hint, 300)
	}

	resp, err := genkit.Generate(ctx, a.g,
		ai.WithModelName(a.modelName),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(ai.NewUserMessage(part, ai.NewTextPart(prompt))),
	)
	if err != nil {
		a.logger.Warn("vision generation failed", "url", imageURL, "error", err)
		return Fallback()
	}

	analysis, err := parseAnalysis(resp.Text())
	if err != nil {
		a.logger.Warn("unparseable vision response",
			"url", imageURL,
			"error", err,
			"response", llmtext.Truncate(resp.Text(), 200))
		return Fallback()
	}
	return analysis
}

// fetchImagePart downloads the image and wraps it as an inline media
// part. Content type comes from the bytes, not the URL.
func (a *Analyzer) fetchImagePart(ctx context.Context, imageURL string) (*ai.Part, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image body")
	}

	mediaType := http.DetectContentType(data)
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, fmt.Errorf("not an image (detected %s)", mediaType)
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	return ai.NewMediaPart(mediaType, "data:"+mediaType+";base64,"+encoded), nil
}

// parseAnalysis extracts and sanitizes the model's JSON. Confidence is
// clamped to [0,1]; tag and object lists are normalized and capped.
func parseAnalysis(raw string) (*bookmark.ImageAnalysis, error) {
	obj := llmtext.FirstObject(llmtext.StripCodeFences(raw))
	if obj == "" {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var analysis bookmark.ImageAnalysis
	if err := json.Unmarshal([]byte(obj), &analysis); err != nil {
		return nil, fmt.Errorf("decoding analysis: %w", err)
	}

	if analysis.Description == "" && analysis.OCRText == "" {
		return nil, fmt.Errorf("analysis has no description or text")
	}

	if analysis.Confidence < 0 {
		analysis.Confidence = 0
	}
	if analysis.Confidence > 1 {
		analysis.Confidence = 1
	}

	analysis.Tags = bookmark.NormalizeTags(analysis.Tags, maxListEntries)
	analysis.Objects = capList(analysis.Objects, maxListEntries)
	return &analysis, nil
}

// capList lowercases and trims entries, dropping empties, capped at max.
func capList(list []string, max int) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.ToLower(strings.TrimSpace(s)); s == "" {
			continue
		}
		out = append(out, s)
		if len(out) >= max {
			break
		}
	}
	return out
}
