// Package tiktoken provides token counting backed by the tiktoken BPE
// vocabularies. Counts must match the completion model's own tokeniser
// or the context budget drifts.
package tiktoken

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/custodia-labs/grounder/internal/core/ports/driven"
)

// Ensure Tokenizer implements the interface.
var _ driven.Tokenizer = (*Tokenizer)(nil)

// DefaultEncoding is used when a model has no registered encoding.
const DefaultEncoding = "cl100k_base"

// Tokenizer counts tokens using a fixed BPE encoding.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewForModel creates a tokenizer matching the given model's encoding,
// falling back to cl100k_base for unknown models.
func NewForModel(model string) (*Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return NewForEncoding(DefaultEncoding)
	}
	return &Tokenizer{encoding: enc, name: encodingName(model)}, nil
}

// NewForEncoding creates a tokenizer for a named encoding.
func NewForEncoding(name string) (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("load encoding %q: %w", name, err)
	}
	return &Tokenizer{encoding: enc, name: name}, nil
}

// Count returns the number of tokens in text.
func (t *Tokenizer) Count(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// Encoding returns the name of the encoding in use.
func (t *Tokenizer) Encoding() string {
	return t.name
}

func encodingName(model string) string {
	if name, ok := tiktoken.MODEL_TO_ENCODING[model]; ok {
		return name
	}
	for prefix, name := range tiktoken.MODEL_PREFIX_TO_ENCODING {
		if strings.HasPrefix(model, prefix) {
			return name
		}
	}
	return DefaultEncoding
}
