package config

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Provider:            ProviderGemini,
		ModelName:           "gemini-2.5-flash",
		VisionModel:         "gemini-2.5-flash",
		Temperature:         0.3,
		MaxTokens:           1024,
		GeminiEmbedderModel: DefaultGeminiEmbedderModel,
		OpenAIEmbedderModel: DefaultOpenAIEmbedderModel,
		TagTimeoutMs:        15000,
		VisionTimeoutMs:     20000,
		EmbedTimeoutMs:      30000,
		RegenDelayMs:        500,
		PostgresHost:        "localhost",
		PostgresPort:        5432,
		PostgresUser:        "satchel",
		PostgresPassword:    "secret-password-value",
		PostgresDBName:      "satchel",
		PostgresSSLMode:     "disable",
		ListenAddr:          ":8080",
		Scraper: ScraperConfig{
			Parallelism: 2,
			DelayMs:     1000,
			TimeoutMs:   30000,
			MaxBodyKB:   10240,
		},
		Limits: Limits{
			MaxTagsAI:         5,
			MaxTagsMerged:     8,
			MinTagLen:         2,
			MaxTagLen:         30,
			MinAnalysisChars:  100,
			ContentCharBudget: 2000,
			TotalCharBudget:   8000,
			OverfetchFactor:   3,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"nil provider", func(c *Config) { c.Provider = "" }, ErrInvalidProvider},
		{"unknown provider", func(c *Config) { c.Provider = "claude" }, ErrInvalidProvider},
		{"empty model", func(c *Config) { c.ModelName = " " }, ErrInvalidModelName},
		{"empty vision model", func(c *Config) { c.VisionModel = "" }, ErrInvalidModelName},
		{"temperature too high", func(c *Config) { c.Temperature = 2.5 }, ErrInvalidTemperature},
		{"temperature negative", func(c *Config) { c.Temperature = -0.1 }, ErrInvalidTemperature},
		{"zero max tokens", func(c *Config) { c.MaxTokens = 0 }, ErrInvalidMaxTokens},
		{"empty host", func(c *Config) { c.PostgresHost = "" }, ErrInvalidPostgresHost},
		{"port out of range", func(c *Config) { c.PostgresPort = 70000 }, ErrInvalidPostgresPort},
		{"empty db name", func(c *Config) { c.PostgresDBName = "" }, ErrInvalidPostgresDBName},
		{"bad ssl mode", func(c *Config) { c.PostgresSSLMode = "maybe" }, ErrInvalidPostgresSSLMode},
		{"zero parallelism", func(c *Config) { c.Scraper.Parallelism = 0 }, ErrInvalidScraperConfig},
		{"tiny timeout", func(c *Config) { c.Scraper.TimeoutMs = 50 }, ErrInvalidScraperConfig},
		{"merged cap below ai cap", func(c *Config) { c.Limits.MaxTagsMerged = 3 }, ErrInvalidLimits},
		{"inverted tag bounds", func(c *Config) { c.Limits.MaxTagLen = 1 }, ErrInvalidLimits},
		{"total budget below content budget", func(c *Config) { c.Limits.TotalCharBudget = 100 }, ErrInvalidLimits},
		{"zero overfetch", func(c *Config) { c.Limits.OverfetchFactor = 0 }, ErrInvalidLimits},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want errors.Is(%v)", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNil(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Fatalf("Validate() on nil = %v, want ErrConfigNil", err)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		want   string
	}{
		{"empty", "", ""},
		{"short fully masked", "abc", maskedValue},
		{"exactly eight fully masked", "12345678", maskedValue},
		{"long keeps edges", "sk-1234567890abcdef", "sk<" + maskedValue + ">ef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskSecret(tt.secret); got != tt.want {
				t.Errorf("maskSecret(%q) = %q, want %q", tt.secret, got, tt.want)
			}
		})
	}
}

func TestMarshalJSONMasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Datadog.APIKey = "dd-api-key-1234567890"

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	s := string(data)
	if strings.Contains(s, cfg.PostgresPassword) {
		t.Error("marshaled config contains postgres password")
	}
	if strings.Contains(s, "dd-api-key-1234567890") {
		t.Error("marshaled config contains datadog api key")
	}
	if !strings.Contains(s, maskedValue) {
		t.Error("marshaled config has no masked placeholder")
	}
}

func TestFullModelName(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		want     string
	}{
		{"gemini unqualified", ProviderGemini, "gemini-2.5-flash", "googleai/gemini-2.5-flash"},
		{"openai unqualified", ProviderOpenAI, "gpt-4o-mini", "openai/gpt-4o-mini"},
		{"already qualified", ProviderGemini, "openai/gpt-4o", "openai/gpt-4o"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Provider: tt.provider, ModelName: tt.model}
			if got := c.FullModelName(); got != tt.want {
				t.Errorf("FullModelName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPostgresURL(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "p@ss word"

	got := cfg.PostgresURL()
	if strings.Contains(got, "p@ss word") {
		t.Error("PostgresURL() did not escape the password")
	}
	if !strings.HasPrefix(got, "postgres://") {
		t.Errorf("PostgresURL() = %q, want postgres:// prefix", got)
	}
	if !strings.Contains(got, "sslmode=disable") {
		t.Errorf("PostgresURL() = %q, missing sslmode", got)
	}
}
