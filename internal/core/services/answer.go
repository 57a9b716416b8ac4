package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/custodia-labs/grounder/internal/core/domain"
	"github.com/custodia-labs/grounder/internal/core/ports/driven"
	"github.com/custodia-labs/grounder/internal/core/ports/driving"
	"github.com/custodia-labs/grounder/internal/logger"
)

// Ensure AnswerService implements the interface.
var _ driving.Answerer = (*AnswerService)(nil)

// Retriever is the slice of retrieval the answer service needs.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]domain.RetrievedDocument, error)
}

// AnswerConfig configures answering.
type AnswerConfig struct {
	// MaxAnswerTokens caps the completion length.
	MaxAnswerTokens int

	// MaxConcurrent bounds how many questions run the pipeline at once.
	// 0 means unbounded.
	MaxConcurrent int
}

// DefaultMaxAnswerTokens is used when the config leaves the cap unset.
const DefaultMaxAnswerTokens = 1024

// AnswerService runs the query pipeline: retrieve, prune, assemble the
// grounded prompt, complete, and resolve citation markers back to source
// metadata.
//
// Each Ask is one synchronous unit of work; concurrent callers are
// admitted through a bounded gate so a burst of questions does not pile
// onto the embedding and completion providers. External-call failures
// propagate to the caller without retry.
type AnswerService struct {
	retriever  Retriever
	pruner     *Pruner
	completion driven.CompletionService
	prompts    driven.PromptStore
	cfg        AnswerConfig
	gate       chan struct{}
}

// NewAnswerService creates an answer service.
func NewAnswerService(
	retriever Retriever,
	pruner *Pruner,
	completion driven.CompletionService,
	prompts driven.PromptStore,
	cfg AnswerConfig,
) *AnswerService {
	if cfg.MaxAnswerTokens <= 0 {
		cfg.MaxAnswerTokens = DefaultMaxAnswerTokens
	}

	var gate chan struct{}
	if cfg.MaxConcurrent > 0 {
		gate = make(chan struct{}, cfg.MaxConcurrent)
	}

	return &AnswerService{
		retriever:  retriever,
		pruner:     pruner,
		completion: completion,
		prompts:    prompts,
		cfg:        cfg,
		gate:       gate,
	}
}

// Ask answers the question against the indexed corpus.
func (s *AnswerService) Ask(ctx context.Context, question string) (*domain.Answer, error) {
	if s.completion == nil {
		return nil, domain.ErrCompletionUnavailable
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}

	if s.gate != nil {
		select {
		case s.gate <- struct{}{}:
			defer func() { <-s.gate }()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	retrieved, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	final := s.pruner.Prune(retrieved)
	logger.Debug("Context: %d documents, %d tokens", len(final), totalTokens(final))

	messages, err := s.assemblePrompt(question, final)
	if err != nil {
		return nil, fmt.Errorf("assemble prompt: %w", err)
	}

	text, err := s.completion.Complete(ctx, messages, s.cfg.MaxAnswerTokens)
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}

	normalized := NormalizeCitations(text)

	return &domain.Answer{
		Text:      normalized,
		Model:     s.completion.ModelName(),
		Citations: resolveCitations(normalized, final),
	}, nil
}

// assemblePrompt loads the role-tagged skeleton and replaces the user
// placeholder with the question plus each surviving document's content,
// suffixed with its doc number.
func (s *AnswerService) assemblePrompt(question string, docs []domain.ParsedDocument) ([]driven.ChatMessage, error) {
	skeleton, err := s.prompts.Skeleton()
	if err != nil {
		return nil, fmt.Errorf("load skeleton: %w", err)
	}

	var block strings.Builder
	block.WriteString(question)
	for _, d := range docs {
		block.WriteString("\n\n")
		block.WriteString(d.Content)
		fmt.Fprintf(&block, " [%d]", d.DocNum)
	}

	messages := make([]driven.ChatMessage, len(skeleton))
	replaced := false
	for i, msg := range skeleton {
		messages[i] = msg
		if msg.Role == "user" && strings.Contains(msg.Content, driven.UserPlaceholder) {
			messages[i].Content = strings.Replace(msg.Content, driven.UserPlaceholder, block.String(), 1)
			replaced = true
		}
	}
	if !replaced {
		return nil, fmt.Errorf("prompt skeleton has no user placeholder %q", driven.UserPlaceholder)
	}

	return messages, nil
}

// citationVariants matches the citation spellings models produce:
// "Document 3", "(Document 3)", "[Document 3]" and "Document[3]",
// case-insensitive.
var citationVariants = regexp.MustCompile(`(?i)[(\[]?document\s*\[?\s*(\d+)(?:\s*\])?[)\]]?`)

// citationMarker matches the canonical [n] form.
var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// NormalizeCitations rewrites all citation variants in the answer text
// into canonical [n] form.
func NormalizeCitations(text string) string {
	return citationVariants.ReplaceAllString(text, "[$1]")
}

// resolveCitations collects the distinct document numbers referenced in
// the normalized answer, in first-mention order, and maps each into the
// final pruned working set. Numbers outside the set are dropped with a
// warning, never an error.
func resolveCitations(text string, docs []domain.ParsedDocument) []domain.Citation {
	citations := make([]domain.Citation, 0)
	seen := make(map[int]bool)

	for _, m := range citationMarker.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true

		if n < 1 || n > len(docs) {
			logger.Warn("citation [%d] out of range (have %d documents), dropping", n, len(docs))
			continue
		}

		// docs is score-descending with DocNum i+1, so n-1 indexes it.
		doc := docs[n-1]
		citations = append(citations, domain.Citation{
			DocNum: n,
			Title:  doc.Title,
			URL:    doc.URL,
		})
	}

	return citations
}
