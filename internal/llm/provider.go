package llm

import "context"

// Provider is the text-generation service abstraction. Adapters classify
// provider failures into the typed errors in errors.go so that callers never
// inspect provider-specific error messages.
type Provider interface {
	// Generate sends a prompt (optionally with history) and returns the
	// generated text.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the model.
type Request struct {
	// System is the system prompt.
	System string

	// Messages is the conversation history, oldest first. Single-turn
	// prompts carry one user message.
	Messages []Message

	// Schema, when set, asks the provider for native JSON output shaped
	// like the schema. Callers still validate the text they get back.
	Schema *Schema

	MaxTokens   int
	Temperature float64
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the model.
type Schema struct {
	// Name identifies this schema, kebab-case, e.g. "answer-verdict".
	Name        string
	Description string
	Definition  map[string]any
}

// Response holds the model's output.
type Response struct {
	// Text is the generated output exactly as returned by the provider.
	Text string

	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason is normalized to "end", "max_tokens" or "error".
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// UserPrompt is a convenience for the common single-message request.
func UserPrompt(prompt string) []Message {
	return []Message{{Role: RoleUser, Content: prompt}}
}
