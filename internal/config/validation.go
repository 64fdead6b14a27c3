package config

import (
	"fmt"
	"os"
	"strings"
)

// validSSLModes lists the PostgreSQL SSL modes accepted by Validate.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks the configuration for correctness. It returns the first
// error found; errors wrap the package sentinels for errors.Is checks.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q (must be %q or %q)",
			ErrInvalidProvider, c.Provider, ProviderGemini, ProviderOpenAI)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.VisionModel) == "" {
		return fmt.Errorf("%w: vision model name is empty", ErrInvalidModelName)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %.2f (must be between 0 and 2)",
			ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens <= 0 || c.MaxTokens > 128000 {
		return fmt.Errorf("%w: %d (must be between 1 and 128000)",
			ErrInvalidMaxTokens, c.MaxTokens)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d (must be between 1 and 65535)",
			ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	if err := c.Scraper.validate(); err != nil {
		return err
	}
	return c.Limits.validate()
}

func (s ScraperConfig) validate() error {
	if s.Parallelism < 1 || s.Parallelism > 16 {
		return fmt.Errorf("%w: parallelism %d (must be between 1 and 16)",
			ErrInvalidScraperConfig, s.Parallelism)
	}
	if s.DelayMs < 0 {
		return fmt.Errorf("%w: delay_ms %d (must not be negative)",
			ErrInvalidScraperConfig, s.DelayMs)
	}
	if s.TimeoutMs < 100 {
		return fmt.Errorf("%w: timeout_ms %d (must be at least 100)",
			ErrInvalidScraperConfig, s.TimeoutMs)
	}
	if s.MaxBodyKB < 1 {
		return fmt.Errorf("%w: max_body_kb %d (must be at least 1)",
			ErrInvalidScraperConfig, s.MaxBodyKB)
	}
	return nil
}

func (l Limits) validate() error {
	if l.MaxTagsAI < 1 {
		return fmt.Errorf("%w: max_tags_ai %d", ErrInvalidLimits, l.MaxTagsAI)
	}
	if l.MaxTagsMerged < l.MaxTagsAI {
		return fmt.Errorf("%w: max_tags_merged %d below max_tags_ai %d",
			ErrInvalidLimits, l.MaxTagsMerged, l.MaxTagsAI)
	}
	if l.MinTagLen < 1 || l.MaxTagLen < l.MinTagLen {
		return fmt.Errorf("%w: tag length bounds %d..%d",
			ErrInvalidLimits, l.MinTagLen, l.MaxTagLen)
	}
	if l.MinAnalysisChars < 0 {
		return fmt.Errorf("%w: min_analysis_chars %d", ErrInvalidLimits, l.MinAnalysisChars)
	}
	if l.ContentCharBudget < 1 || l.TotalCharBudget < l.ContentCharBudget {
		return fmt.Errorf("%w: char budgets content=%d total=%d",
			ErrInvalidLimits, l.ContentCharBudget, l.TotalCharBudget)
	}
	if l.OverfetchFactor < 1 {
		return fmt.Errorf("%w: overfetch_factor %d", ErrInvalidLimits, l.OverfetchFactor)
	}
	return nil
}

// HasGeminiKey reports whether a Gemini API key is present in the
// environment. The Genkit plugin reads the key itself; this is used to
// decide which plugins to initialize.
func HasGeminiKey() bool {
	return os.Getenv("GEMINI_API_KEY") != "" || os.Getenv("GOOGLE_API_KEY") != ""
}

// HasOpenAIKey reports whether an OpenAI API key is present.
func HasOpenAIKey() bool {
	return os.Getenv("OPENAI_API_KEY") != ""
}
