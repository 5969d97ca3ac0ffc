package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"google.golang.org/genai"
)

func TestGeminiModelMapping(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"gemini-flash", "gemini-2.5-flash"},
		{"gemini-pro", "gemini-2.5-pro"},
		{"gemini-2.0-flash", "gemini-2.0-flash"},
	}
	for _, tt := range tests {
		got := resolveModel(tt.input, geminiModels)
		if got != tt.expected {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestBuildGeminiSchema(t *testing.T) {
	def := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":  map[string]any{"type": "string"},
			"age":   map[string]any{"type": "integer"},
			"grade": map[string]any{"type": "string", "enum": []any{"A", "B", "C"}},
			"scores": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "integer"},
			},
		},
		"required": []any{"name", "age"},
	}

	schema := buildGeminiSchema(def)

	if schema.Type != "OBJECT" {
		t.Fatalf("expected OBJECT type, got %s", schema.Type)
	}
	if len(schema.Properties) != 4 {
		t.Fatalf("expected 4 properties, got %d", len(schema.Properties))
	}
	if schema.Properties["name"].Type != "STRING" {
		t.Fatalf("expected STRING for name, got %s", schema.Properties["name"].Type)
	}
	if schema.Properties["age"].Type != "INTEGER" {
		t.Fatalf("expected INTEGER for age, got %s", schema.Properties["age"].Type)
	}
	if len(schema.Properties["grade"].Enum) != 3 {
		t.Fatalf("expected 3 enum values, got %d", len(schema.Properties["grade"].Enum))
	}
	if schema.Properties["scores"].Type != "ARRAY" {
		t.Fatalf("expected ARRAY for scores, got %s", schema.Properties["scores"].Type)
	}
	if schema.Properties["scores"].Items.Type != "INTEGER" {
		t.Fatalf("expected INTEGER for scores items, got %s", schema.Properties["scores"].Items.Type)
	}
	if len(schema.Required) != 2 {
		t.Fatalf("expected 2 required fields, got %d", len(schema.Required))
	}
}

func TestMapGeminiError(t *testing.T) {
	t.Run("resource exhausted with retry info", func(t *testing.T) {
		apiErr := genai.APIError{
			Code:    429,
			Status:  "RESOURCE_EXHAUSTED",
			Message: "Quota exceeded",
			Details: []map[string]any{
				{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "37s"},
			},
		}
		rl, ok := AsRateLimit(mapGeminiError(apiErr))
		if !ok {
			t.Fatal("expected ErrRateLimit")
		}
		if rl.RetryAfter != 37*time.Second {
			t.Fatalf("expected 37s, got %s", rl.RetryAfter)
		}
	})

	t.Run("rate limit hint in message", func(t *testing.T) {
		apiErr := genai.APIError{Code: 429, Message: "Please retry in 4.5s."}
		rl, ok := AsRateLimit(mapGeminiError(apiErr))
		if !ok {
			t.Fatal("expected ErrRateLimit")
		}
		if rl.RetryAfter != 4500*time.Millisecond {
			t.Fatalf("expected 4.5s, got %s", rl.RetryAfter)
		}
	})

	t.Run("wrapped api error", func(t *testing.T) {
		err := fmt.Errorf("generate: %w", genai.APIError{Code: 503, Message: "overloaded"})
		var unavail *ErrProviderUnavailable
		if !errors.As(mapGeminiError(err), &unavail) {
			t.Fatal("expected ErrProviderUnavailable")
		}
	})

	t.Run("untyped quota message", func(t *testing.T) {
		if _, ok := AsRateLimit(mapGeminiError(errors.New("quota exceeded for project"))); !ok {
			t.Fatal("expected ErrRateLimit")
		}
	})

	t.Run("deadline passes through", func(t *testing.T) {
		if !errors.Is(mapGeminiError(context.DeadlineExceeded), context.DeadlineExceeded) {
			t.Fatal("expected deadline to pass through")
		}
	})
}
