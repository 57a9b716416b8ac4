// Package openai provides a completion service adapter backed by the
// OpenAI chat completions API.
package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/grounder/internal/core/ports/driven"
)

// Ensure CompletionService implements the interface.
var _ driven.CompletionService = (*CompletionService)(nil)

// Default configuration values.
const (
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the OpenAI completion service.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL overrides the API base URL for compatible providers.
	BaseURL string

	// Model is the completion model to use (default: gpt-4o-mini).
	Model string

	// Timeout is the per-request timeout (default: 120s).
	Timeout time.Duration

	// Temperature controls randomness. Grounded answering wants it low.
	Temperature float32
}

// CompletionService generates answers via the OpenAI chat API.
type CompletionService struct {
	client      *openai.Client
	model       string
	timeout     time.Duration
	temperature float32
}

// New creates a new OpenAI completion service.
func New(cfg Config) (*CompletionService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &CompletionService{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		temperature: cfg.Temperature,
	}, nil
}

// Complete produces a completion for the given role-tagged messages.
// One request per call; a timeout or provider error propagates to the
// caller without retry.
func (s *CompletionService) Complete(ctx context.Context, messages []driven.ChatMessage, maxTokens int) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}

	resp, err := s.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    chatMessages,
		MaxTokens:   maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty completion response")
	}

	return resp.Choices[0].Message.Content, nil
}

// ModelName returns the name of the completion model being used.
func (s *CompletionService) ModelName() string {
	return s.model
}

// Close releases resources.
func (s *CompletionService) Close() error {
	return nil
}
