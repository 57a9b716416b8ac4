package domain

// RetrievedDocument is a query-time result hydrated from vector-store
// metadata. It lives for the duration of one request.
type RetrievedDocument struct {
	// ID is the vector identifier.
	ID string

	// Content is the chunk text.
	Content string

	// Title is the chunk title.
	Title string

	// URL is the original location.
	URL string

	// DocType is the hard/soft class of the chunk.
	DocType DocType

	// Score is the relevance score reported by the index.
	Score float64
}

// ParsedDocument is a RetrievedDocument annotated for pruning and prompt
// assembly.
//
// DocNum is the 1-based rank of the document within the current working
// set. It is recomputed on every structural change to the set (removal or
// re-sort) and must never be treated as a stable identifier.
type ParsedDocument struct {
	RetrievedDocument

	// DocNum is the 1-based rank by descending score.
	DocNum int

	// TokenCount is the tokenizer length of Content.
	TokenCount int
}

// Citation links a document number referenced in an answer back to its
// source metadata. Numbers refer to the final pruned working set, not the
// original retrieval order.
type Citation struct {
	// DocNum is the document number as cited in the answer.
	DocNum int

	// Title is the cited document's title.
	Title string

	// URL is the cited document's location.
	URL string
}

// Answer is the structured result of one question.
// An empty Citations slice is a valid, non-error result.
type Answer struct {
	// Text is the completion text with citations normalised to [n] form.
	Text string

	// Model identifies the completion model that produced the text.
	Model string

	// Citations are the resolved source references, in first-mention order.
	Citations []Citation
}
