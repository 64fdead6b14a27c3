package llmtext

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fences", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  ```json\n[1,2]\n```  ", "[1,2]"},
		{"plain text", "no json here", "no json here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.in); got != tt.want {
				t.Errorf("StripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFirstObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"with preamble", `Here is the result: {"a":1} hope it helps`, `{"a":1}`},
		{"nested", `{"a":{"b":2}}`, `{"a":{"b":2}}`},
		{"brace inside string", `{"a":"}{"}`, `{"a":"}{"}`},
		{"escaped quote inside string", `{"a":"say \"hi\" {now}"}`, `{"a":"say \"hi\" {now}"}`},
		{"unbalanced", `{"a":1`, ""},
		{"none", "nothing", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FirstObject(tt.in); got != tt.want {
				t.Errorf("FirstObject(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFirstArray(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare array", `["a","b"]`, `["a","b"]`},
		{"with prose", `Tags: ["go","web"] as requested.`, `["go","web"]`},
		{"nested arrays", `[[1],[2]]`, `[[1],[2]]`},
		{"bracket inside string", `["a]b"]`, `["a]b"]`},
		{"none", "{}", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FirstArray(tt.in); got != tt.want {
				t.Errorf("FirstArray(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate("hello world", 5); got != "hello..." {
		t.Errorf("Truncate long = %q", got)
	}
	if got := Truncate("héllo wörld", 5); got != "héllo..." {
		t.Errorf("Truncate multibyte = %q", got)
	}
}

func TestCut(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"shorter than max", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"ascii cut", "hello world", 5, "hello"},
		{"cut lands mid rune", "ab日本語", 4, "ab"},
		{"cut lands on boundary", "ab日本語", 5, "ab日"},
		{"zero budget", "abc", 0, ""},
		{"negative budget", "abc", -1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cut(tt.in, tt.max); got != tt.want {
				t.Errorf("Cut(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestCutAlwaysValidUTF8(t *testing.T) {
	s := "ab" + strings.Repeat("書評と感想", 20)
	for max := 0; max <= len(s)+1; max++ {
		got := Cut(s, max)
		if !utf8.ValidString(got) {
			t.Fatalf("Cut(s, %d) produced invalid UTF-8: %q", max, got)
		}
		if len(got) > max {
			t.Fatalf("Cut(s, %d) returned %d bytes", max, len(got))
		}
	}
}
