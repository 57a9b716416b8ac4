// Package chunker provides a token-aware text splitting processor.
package chunker

import (
	"strings"

	"github.com/custodia-labs/grounder/internal/core/ports/driven"
)

// DefaultGoalTokens is the default target chunk length in tokens.
const DefaultGoalTokens = 512

// DefaultMaxTokens is the default hard chunk length cap in tokens.
const DefaultMaxTokens = 768

// Processor splits document content into token-bounded chunks.
// Chunks aim for the goal length and never exceed the maximum, with
// boundaries chosen on natural text breaks when possible.
type Processor struct {
	tokenizer driven.Tokenizer
	goal      int
	max       int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithGoalTokens sets the target chunk length in tokens.
func WithGoalTokens(goal int) Option {
	return func(p *Processor) {
		if goal > 0 {
			p.goal = goal
		}
	}
}

// WithMaxTokens sets the hard chunk length cap in tokens.
func WithMaxTokens(max int) Option {
	return func(p *Processor) {
		if max > 0 {
			p.max = max
		}
	}
}

// New creates a new chunker with the given tokenizer and options.
func New(tokenizer driven.Tokenizer, opts ...Option) *Processor {
	p := &Processor{
		tokenizer: tokenizer,
		goal:      DefaultGoalTokens,
		max:       DefaultMaxTokens,
	}

	for _, opt := range opts {
		opt(p)
	}

	// The goal must not exceed the cap.
	if p.goal > p.max {
		p.goal = p.max
	}

	return p
}

// Split divides content into chunks of at most max tokens, packing
// natural segments (paragraphs, then sentences) until the goal length is
// reached. Whitespace-only content produces no chunks.
func (p *Processor) Split(content string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	segments := p.boundedSegments(content)

	var chunks []string
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		text := strings.TrimSpace(current.String())
		if text != "" {
			chunks = append(chunks, text)
		}
		current.Reset()
		currentTokens = 0
	}

	for _, seg := range segments {
		segTokens := p.tokenizer.Count(seg)

		if currentTokens+segTokens > p.max {
			flush()
		}
		current.WriteString(seg)
		currentTokens += segTokens

		if currentTokens >= p.goal {
			flush()
		}
	}
	flush()

	return chunks
}

// boundedSegments splits content into natural segments, each guaranteed
// to fit within the token cap on its own.
func (p *Processor) boundedSegments(content string) []string {
	var out []string
	for _, seg := range splitNatural(content) {
		if p.tokenizer.Count(seg) <= p.max {
			out = append(out, seg)
			continue
		}
		out = append(out, p.hardSplit(seg)...)
	}
	return out
}

// hardSplit bisects a segment that exceeds the cap, preferring a space
// near the midpoint, until every piece fits.
func (p *Processor) hardSplit(seg string) []string {
	if p.tokenizer.Count(seg) <= p.max {
		return []string{seg}
	}

	runes := []rune(seg)
	if len(runes) < 2 {
		// A single rune over the cap cannot be split further.
		return []string{seg}
	}

	mid := len(runes) / 2

	// Scan outward from the midpoint for a space to break on.
	cut := mid
	for offset := 0; offset < mid; offset++ {
		if runes[mid-offset] == ' ' {
			cut = mid - offset + 1
			break
		}
		if mid+offset < len(runes) && runes[mid+offset] == ' ' {
			cut = mid + offset + 1
			break
		}
	}
	if cut <= 0 || cut >= len(runes) {
		cut = mid
	}

	left := string(runes[:cut])
	right := string(runes[cut:])

	return append(p.hardSplit(left), p.hardSplit(right)...)
}

// splitNatural splits content into segments on paragraph breaks, falling
// back to sentence terminators and newlines. Delimiters stay attached to
// the preceding segment so no text is lost.
func splitNatural(content string) []string {
	var segments []string
	var current strings.Builder

	runes := []rune(content)
	for i, r := range runes {
		current.WriteRune(r)

		boundary := false
		switch r {
		case '\n':
			boundary = true
		case '.', '!', '?':
			// Sentence end only when followed by whitespace or EOF.
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				boundary = true
			}
		}

		if boundary {
			segments = append(segments, current.String())
			current.Reset()
		}
	}

	if current.Len() > 0 {
		segments = append(segments, current.String())
	}

	return segments
}
