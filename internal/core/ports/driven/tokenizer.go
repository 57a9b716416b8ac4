package driven

// Tokenizer counts tokens in the completion model's encoding.
// Chunk bounds, the minimum-page filter and the pruning budget are all
// expressed in these tokens, so every component must share one tokenizer.
type Tokenizer interface {
	// Count returns the number of tokens in the text.
	Count(text string) int

	// Encoding returns the name of the encoding in use.
	Encoding() string
}
