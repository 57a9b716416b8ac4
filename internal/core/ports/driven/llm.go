package driven

import "context"

// ChatMessage represents a single role-tagged message in a prompt.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// CompletionService generates answer text from a role-tagged prompt.
// One call per question; failures propagate to the caller without retry.
type CompletionService interface {
	// Complete produces a completion for the given messages.
	Complete(ctx context.Context, messages []ChatMessage, maxTokens int) (string, error)

	// ModelName returns the name of the completion model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}
