// Package embedding turns bookmarks and queries into vectors.
//
// Providers form an ordered fallback chain (Gemini first, OpenAI second
// when configured). Each provider has a fixed dimensionality, recorded
// next to every stored vector; vectors from different providers are never
// compared. When every provider fails, generation reports no vector and
// no error, and the affected bookmark simply stays keyword-searchable.
package embedding

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"google.golang.org/genai"

	"github.com/satchel0/satchel/internal/llmtext"
	"github.com/satchel0/satchel/internal/log"
)

// Provider is one embedding backend with its fixed output dimensionality.
type Provider struct {
	Name     string // recorded in embedding_provider
	Dim      int32
	Embedder ai.Embedder
	Options  any // provider-specific EmbedRequest options, may be nil
}

// NewGeminiProvider builds the Gemini provider, truncated to dim via
// OutputDimensionality so the free-tier embedder yields compact vectors.
func NewGeminiProvider(g *genkit.Genkit, model string, dim int32) Provider {
	return Provider{
		Name:     "gemini",
		Dim:      dim,
		Embedder: googlegenai.GoogleAIEmbedder(g, model),
		Options:  &genai.EmbedContentConfig{OutputDimensionality: &dim},
	}
}

// NewOpenAIProvider builds the OpenAI provider. The plugin registers its
// embedders during Init; the lookup returns a zero-Embedder Provider if
// the model is unknown, which the generator treats as absent.
func NewOpenAIProvider(g *genkit.Genkit, model string, dim int32) Provider {
	return Provider{
		Name:     "openai",
		Dim:      dim,
		Embedder: genkit.LookupEmbedder(g, api.NewName("openai", model)),
	}
}

// Result is one successful embedding.
type Result struct {
	Vector   []float32
	Dim      int32
	Provider string
}

// Generator runs the provider fallback chain.
type Generator struct {
	providers []Provider
	logger    log.Logger
}

// NewGenerator creates a generator over the given providers, tried in
// order. Providers with a nil Embedder are skipped.
func NewGenerator(providers []Provider, logger log.Logger) *Generator {
	active := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.Embedder != nil {
			active = append(active, p)
		}
	}
	return &Generator{
		providers: active,
		logger:    logger.With("component", "embedding"),
	}
}

// Available reports whether at least one provider is configured.
func (g *Generator) Available() bool {
	return len(g.providers) > 0
}

// ActiveDim returns the dimensionality of the primary provider, or 0
// when no provider is configured. Search uses this to select comparable
// stored vectors.
func (g *Generator) ActiveDim() int32 {
	if len(g.providers) == 0 {
		return 0
	}
	return g.providers[0].Dim
}

// ActiveProvider returns the primary provider name, or "".
func (g *Generator) ActiveProvider() string {
	if len(g.providers) == 0 {
		return ""
	}
	return g.providers[0].Name
}

// Generate embeds text with the first provider that succeeds. It returns
// nil with no error when no provider is configured or all of them fail;
// callers treat a nil Result as "no vector" and proceed.
func (g *Generator) Generate(ctx context.Context, text string) (*Result, error) {
	if text == "" {
		return nil, fmt.Errorf("embedding empty text")
	}

	for _, p := range g.providers {
		resp, err := p.Embedder.Embed(ctx, &ai.EmbedRequest{
			Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
			Options: p.Options,
		})
		if err != nil {
			g.logger.Warn("embedding provider failed",
				"provider", p.Name, "error", err)
			continue
		}
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
			g.logger.Warn("embedding provider returned empty response",
				"provider", p.Name)
			continue
		}

		vec := resp.Embeddings[0].Embedding
		if int32(len(vec)) != p.Dim {
			g.logger.Warn("embedding has unexpected dimensionality",
				"provider", p.Name, "want", p.Dim, "got", len(vec))
			continue
		}
		return &Result{Vector: vec, Dim: p.Dim, Provider: p.Name}, nil
	}

	if len(g.providers) > 0 {
		g.logger.Warn("all embedding providers failed", "text", llmtext.Truncate(text, 80))
	}
	return nil, nil
}
