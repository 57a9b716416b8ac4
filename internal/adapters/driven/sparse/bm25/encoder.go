// Package bm25 provides a sparse lexical encoder using BM25 term
// weighting. Vectors produced here complement dense embeddings in
// hybrid retrieval by rewarding exact keyword overlap.
package bm25

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/custodia-labs/grounder/internal/core/ports/driven"
)

// Ensure Encoder implements the interface.
var _ driven.SparseEncoder = (*Encoder)(nil)

// Default BM25 parameters.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// Config holds BM25 tuning parameters.
type Config struct {
	// K1 controls term-frequency saturation (default: 1.5).
	K1 float64

	// B controls document-length normalisation (default: 0.75).
	B float64
}

// Encoder computes sparse BM25 vectors. Corpus statistics are fitted
// per FitEncode batch; each ingestion run re-fits on its own chunks, so
// weights are consistent within a source but not across runs.
type Encoder struct {
	k1 float64
	b  float64
}

// New creates a BM25 encoder.
func New(cfg Config) *Encoder {
	if cfg.K1 <= 0 {
		cfg.K1 = DefaultK1
	}
	if cfg.B <= 0 || cfg.B > 1 {
		cfg.B = DefaultB
	}
	return &Encoder{k1: cfg.K1, b: cfg.B}
}

// FitEncode fits document frequencies over the batch and returns one
// BM25-weighted sparse vector per input text.
func (e *Encoder) FitEncode(_ context.Context, texts []string) ([]driven.SparseVector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	tokenised := make([][]string, len(texts))
	docFreq := make(map[string]int)
	var totalLen int
	for i, text := range texts {
		tokens := tokenise(text)
		tokenised[i] = tokens
		totalLen += len(tokens)
		for _, term := range uniqueTerms(tokens) {
			docFreq[term]++
		}
	}
	avgLen := float64(totalLen) / float64(len(texts))
	if avgLen == 0 {
		avgLen = 1
	}

	n := float64(len(texts))
	out := make([]driven.SparseVector, len(texts))
	for i, tokens := range tokenised {
		tf := termFrequencies(tokens)
		docLen := float64(len(tokens))

		vec := driven.SparseVector{
			Indices: make([]uint32, 0, len(tf)),
			Values:  make([]float32, 0, len(tf)),
		}
		for _, term := range sortedTerms(tf) {
			freq := float64(tf[term])
			idf := math.Log(1 + (n-float64(docFreq[term])+0.5)/(float64(docFreq[term])+0.5))
			score := idf * freq * (e.k1 + 1) / (freq + e.k1*(1-e.b+e.b*docLen/avgLen))
			if score <= 0 {
				continue
			}
			vec.Indices = append(vec.Indices, termIndex(term))
			vec.Values = append(vec.Values, float32(score))
		}
		out[i] = vec
	}
	return out, nil
}

// EncodeQuery returns a term-frequency vector for the query. Query-side
// weighting carries no corpus statistics; the document side already
// encodes rarity.
func (e *Encoder) EncodeQuery(_ context.Context, text string) (driven.SparseVector, error) {
	tf := termFrequencies(tokenise(text))

	vec := driven.SparseVector{
		Indices: make([]uint32, 0, len(tf)),
		Values:  make([]float32, 0, len(tf)),
	}
	for _, term := range sortedTerms(tf) {
		vec.Indices = append(vec.Indices, termIndex(term))
		vec.Values = append(vec.Values, float32(tf[term]))
	}
	return vec, nil
}

// tokenise lowercases and splits on non-alphanumeric runes, dropping
// single-character tokens.
func tokenise(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}

func termFrequencies(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}

func uniqueTerms(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	var out []string
	for _, t := range tokens {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// sortedTerms returns map keys in index order so vectors are
// deterministic for identical input.
func sortedTerms(tf map[string]int) []string {
	terms := make([]string, 0, len(tf))
	for t := range tf {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		return termIndex(terms[i]) < termIndex(terms[j])
	})
	return terms
}

// termIndex maps a term into the sparse dimension space.
func termIndex(term string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(term))
	return h.Sum32()
}
