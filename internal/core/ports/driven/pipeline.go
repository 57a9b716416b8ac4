package driven

import "github.com/custodia-labs/grounder/internal/core/domain"

// Normaliser cleans a raw document and guarantees it has a title.
type Normaliser interface {
	// Normalise returns the cleaned document. Pure text transformation;
	// it never fails.
	Normalise(doc domain.Document, source domain.Source) domain.Document
}

// Chunker splits cleaned content into token-bounded pieces.
type Chunker interface {
	// Split returns the chunk texts. Whitespace-only content yields
	// none.
	Split(content string) []string
}
