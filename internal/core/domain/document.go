package domain

import (
	"fmt"
	"strings"
)

// DocType classifies indexed content.
// "hard" marks authoritative or structural content, "soft" marks general
// prose. Retrieval queries the two classes independently and the pruner
// protects diversity between them.
type DocType string

const (
	// DocTypeHard marks authoritative/structural content.
	DocTypeHard DocType = "hard"

	// DocTypeSoft marks general content.
	DocTypeSoft DocType = "soft"
)

// Valid reports whether the doc type is one of the known classes.
func (d DocType) Valid() bool {
	return d == DocTypeHard || d == DocTypeSoft
}

// Document is a raw unit of content fetched by a connector.
// Documents are ephemeral: they exist for the duration of one ingestion
// run and are discarded after chunking.
type Document struct {
	// Content is the raw page text before cleaning.
	Content string

	// Title is the human-readable title. May be empty; a title is then
	// derived from Location during normalisation.
	Title string

	// Location is the original URL or file path of the document.
	Location string
}

// Chunk is a token-bounded slice of a document's text.
// It is the unit of embedding and storage. Chunks are owned by the
// ingestion run that created them and are superseded wholesale when their
// source is re-indexed.
type Chunk struct {
	// Content is the cleaned chunk text.
	Content string

	// Title is the derived title of the originating document.
	Title string

	// URL is the original location of the originating document.
	URL string

	// Resource identifies the source that produced this chunk.
	Resource string

	// Domain is the deployment/site the chunk belongs to.
	Domain string

	// SourceType is the connector type that fetched the document.
	SourceType SourceType

	// DocType classifies the chunk as hard or soft content.
	DocType DocType

	// Ordinal is the position of the chunk within its source, assigned
	// sequentially across the whole ingestion run of the source.
	Ordinal int
}

// VectorID returns the deterministic vector identifier for the chunk:
// sourceType-resource-ordinal. Re-ingesting a source therefore produces
// the same identifier space on every run.
func (c Chunk) VectorID() string {
	return fmt.Sprintf("%s-%s-%d", c.SourceType, c.Resource, c.Ordinal)
}

// EmbedText returns the text that is embedded for this chunk: the
// lower-cased content suffixed with the lower-cased title, so the title
// terms contribute to both dense and sparse representations.
func (c Chunk) EmbedText() string {
	return strings.ToLower(c.Content) + " " + strings.ToLower(c.Title)
}

// Equal reports whether two chunks are structurally identical.
// Used by change detection: any differing field marks the chunk changed.
func (c Chunk) Equal(other Chunk) bool {
	return c == other
}

// SnapshotFilename derives the snapshot filename for the chunk from its
// title and ordinal. Characters that are unsafe in filenames are replaced
// so titles from arbitrary sources cannot escape the snapshot directory.
func (c Chunk) SnapshotFilename() string {
	return fmt.Sprintf("%s-%d.json", sanitizeFilename(c.Title), c.Ordinal)
}

// sanitizeFilename replaces path separators and other unsafe characters
// with underscores.
func sanitizeFilename(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "untitled"
	}
	return b.String()
}

// ChunkStats summarises one ingestion run of a source.
type ChunkStats struct {
	// Pages is the number of documents that survived the minimum-length
	// filter and were chunked.
	Pages int

	// Chunks is the total number of chunks produced.
	Chunks int

	// MinTokens is the smallest chunk token count.
	MinTokens int

	// MaxTokens is the largest chunk token count.
	MaxTokens int

	// TotalTokens is the sum of all chunk token counts.
	TotalTokens int
}

// AvgTokens returns the mean chunk token count, or 0 for an empty run.
func (s ChunkStats) AvgTokens() float64 {
	if s.Chunks == 0 {
		return 0
	}
	return float64(s.TotalTokens) / float64(s.Chunks)
}

// Observe folds one chunk's token count into the stats.
func (s *ChunkStats) Observe(tokens int) {
	if s.Chunks == 0 || tokens < s.MinTokens {
		s.MinTokens = tokens
	}
	if tokens > s.MaxTokens {
		s.MaxTokens = tokens
	}
	s.Chunks++
	s.TotalTokens += tokens
}
