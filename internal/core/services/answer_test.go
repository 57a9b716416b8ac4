package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/grounder/internal/core/domain"
	"github.com/custodia-labs/grounder/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockRetriever implements Retriever for testing.
type mockRetriever struct {
	docs []domain.RetrievedDocument
	err  error
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string) ([]domain.RetrievedDocument, error) {
	return m.docs, m.err
}

// mockCompletion implements driven.CompletionService for testing.
type mockCompletion struct {
	answer      string
	err         error
	gotMessages []driven.ChatMessage
}

func (m *mockCompletion) Complete(_ context.Context, messages []driven.ChatMessage, _ int) (string, error) {
	m.gotMessages = messages
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

func (m *mockCompletion) ModelName() string { return "mock-chat" }
func (m *mockCompletion) Close() error      { return nil }

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	skeleton []driven.ChatMessage
	err      error
}

func (m *mockPromptStore) Skeleton() ([]driven.ChatMessage, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.skeleton != nil {
		return m.skeleton, nil
	}
	return []driven.ChatMessage{
		{Role: "system", Content: "Answer from the provided documents only."},
		{Role: "user", Content: driven.UserPlaceholder},
	}, nil
}

func (m *mockPromptStore) Reload() error { return nil }

func newTestAnswerService(r Retriever, c driven.CompletionService, budget int) *AnswerService {
	pruner := NewPruner(wordTokenizer{}, PrunerConfig{TokenBudget: budget})
	return NewAnswerService(r, pruner, c, &mockPromptStore{}, AnswerConfig{})
}

// --- Tests ---

func TestNormalizeCitations(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", "See Document 2 for details.", "See [2] for details."},
		{"parenthesised", "As stated (Document 3).", "As stated [3]."},
		{"bracketed", "Known limits [Document 4] apply.", "Known limits [4] apply."},
		{"bracket suffix", "Per Document[5] this holds.", "Per [5] this holds."},
		{"lower case", "see document 1.", "see [1]."},
		{"already canonical", "See [2].", "See [2]."},
		{"multiple", "Document 1 and (Document 2).", "[1] and [2]."},
		{"no citations", "Nothing to cite here.", "Nothing to cite here."},
		{"spacing kept after bare", "Try Document 12, then Document 3 again.", "Try [12], then [3] again."},
		{"similar word untouched", "The documentation 3 pages long.", "The documentation 3 pages long."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCitations(tt.in))
		})
	}
}

func TestAsk_CitationRoundTrip(t *testing.T) {
	// Pre-prune score order: X (.9), Y (.8), Z (.5), so rank 2 is Y.
	// Budget forces the lowest-scoring soft (Y) out, so the final set
	// is X=1, Z=2. A citation [2] must resolve to Z, not to Y.
	retriever := &mockRetriever{docs: []domain.RetrievedDocument{
		docOf("X", domain.DocTypeSoft, 0.9, 50),
		docOf("Y", domain.DocTypeSoft, 0.8, 600),
		docOf("Z", domain.DocTypeHard, 0.5, 50),
	}}
	completion := &mockCompletion{answer: "It works as described in Document 2."}

	svc := newTestAnswerService(retriever, completion, 200)

	answer, err := svc.Ask(context.Background(), "does it work?")
	require.NoError(t, err)

	assert.Equal(t, "It works as described in [2].", answer.Text)
	assert.Equal(t, "mock-chat", answer.Model)

	require.Len(t, answer.Citations, 1)
	assert.Equal(t, 2, answer.Citations[0].DocNum)
	assert.Equal(t, "title Z", answer.Citations[0].Title)
	assert.Equal(t, "https://example.com/Z", answer.Citations[0].URL)
}

func TestAsk_OutOfRangeCitationDropped(t *testing.T) {
	retriever := &mockRetriever{docs: []domain.RetrievedDocument{
		docOf("A", domain.DocTypeSoft, 0.9, 50),
	}}
	completion := &mockCompletion{answer: "See [1] and also [7]."}

	svc := newTestAnswerService(retriever, completion, 1000)

	answer, err := svc.Ask(context.Background(), "q")
	require.NoError(t, err)

	require.Len(t, answer.Citations, 1)
	assert.Equal(t, 1, answer.Citations[0].DocNum)
}

func TestAsk_NoCitationsIsValid(t *testing.T) {
	retriever := &mockRetriever{docs: []domain.RetrievedDocument{
		docOf("A", domain.DocTypeSoft, 0.9, 50),
	}}
	completion := &mockCompletion{answer: "I don't know."}

	svc := newTestAnswerService(retriever, completion, 1000)

	answer, err := svc.Ask(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, answer.Citations)
}

func TestAsk_DuplicateCitationsCollapsed(t *testing.T) {
	retriever := &mockRetriever{docs: []domain.RetrievedDocument{
		docOf("A", domain.DocTypeSoft, 0.9, 50),
		docOf("B", domain.DocTypeHard, 0.8, 50),
	}}
	completion := &mockCompletion{answer: "Both [1] and [2], again [1]."}

	svc := newTestAnswerService(retriever, completion, 1000)

	answer, err := svc.Ask(context.Background(), "q")
	require.NoError(t, err)

	require.Len(t, answer.Citations, 2)
	assert.Equal(t, 1, answer.Citations[0].DocNum)
	assert.Equal(t, 2, answer.Citations[1].DocNum)
}

func TestAsk_PromptContainsNumberedDocuments(t *testing.T) {
	retriever := &mockRetriever{docs: []domain.RetrievedDocument{
		docOf("A", domain.DocTypeSoft, 0.9, 5),
		docOf("B", domain.DocTypeHard, 0.8, 5),
	}}
	completion := &mockCompletion{answer: "ok"}

	svc := newTestAnswerService(retriever, completion, 1000)

	_, err := svc.Ask(context.Background(), "the question")
	require.NoError(t, err)

	require.Len(t, completion.gotMessages, 2)
	user := completion.gotMessages[1].Content
	assert.Contains(t, user, "the question")
	assert.Contains(t, user, "[1]")
	assert.Contains(t, user, "[2]")
	assert.NotContains(t, user, driven.UserPlaceholder)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	svc := newTestAnswerService(&mockRetriever{}, &mockCompletion{}, 1000)

	_, err := svc.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAsk_CompletionErrorPropagates(t *testing.T) {
	retriever := &mockRetriever{docs: []domain.RetrievedDocument{
		docOf("A", domain.DocTypeSoft, 0.9, 5),
	}}
	completion := &mockCompletion{err: errors.New("upstream timeout")}

	svc := newTestAnswerService(retriever, completion, 1000)

	_, err := svc.Ask(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "upstream timeout"))
}

func TestAsk_RetrieveErrorPropagates(t *testing.T) {
	retriever := &mockRetriever{err: errors.New("index down")}
	svc := newTestAnswerService(retriever, &mockCompletion{}, 1000)

	_, err := svc.Ask(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index down")
}

func TestAsk_SkeletonWithoutPlaceholder(t *testing.T) {
	retriever := &mockRetriever{docs: []domain.RetrievedDocument{
		docOf("A", domain.DocTypeSoft, 0.9, 5),
	}}
	pruner := NewPruner(wordTokenizer{}, PrunerConfig{TokenBudget: 1000})
	prompts := &mockPromptStore{skeleton: []driven.ChatMessage{
		{Role: "system", Content: "no placeholder anywhere"},
	}}
	svc := NewAnswerService(retriever, pruner, &mockCompletion{answer: "x"}, prompts, AnswerConfig{})

	_, err := svc.Ask(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "placeholder")
}

func TestAsk_NilCompletion(t *testing.T) {
	pruner := NewPruner(wordTokenizer{}, PrunerConfig{TokenBudget: 1000})
	svc := NewAnswerService(&mockRetriever{}, pruner, nil, &mockPromptStore{}, AnswerConfig{})

	_, err := svc.Ask(context.Background(), "q")
	assert.ErrorIs(t, err, domain.ErrCompletionUnavailable)
}
