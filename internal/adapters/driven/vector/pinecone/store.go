// Package pinecone provides a hosted hybrid vector store on Pinecone.
// The index must be dotproduct-metric so dense and sparse components
// combine in a single query.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/grounder/internal/core/domain"
	"github.com/custodia-labs/grounder/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Default configuration values.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultBatchSize = 100
)

// Config holds configuration for the Pinecone store.
type Config struct {
	// APIKey is the Pinecone API key (required).
	APIKey string

	// IndexHost is the data-plane host of the index, e.g.
	// "https://grounder-abc123.svc.us-east-1-aws.pinecone.io" (required).
	IndexHost string

	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration
}

// Store talks to a Pinecone hybrid index over its REST data plane.
type Store struct {
	apiKey string
	host   string
	client *http.Client
}

// New creates a Pinecone-backed store.
func New(cfg Config) (*Store, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone: API key is required")
	}
	if cfg.IndexHost == "" {
		return nil, fmt.Errorf("pinecone: index host is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Store{
		apiKey: cfg.APIKey,
		host:   cfg.IndexHost,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type sparsePayload struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

type vectorPayload struct {
	ID           string         `json:"id"`
	Values       []float32      `json:"values"`
	SparseValues *sparsePayload `json:"sparseValues,omitempty"`
	Metadata     map[string]any `json:"metadata"`
}

// EnsureIndex verifies the index exists and carries the expected
// dimensionality.
func (s *Store) EnsureIndex(ctx context.Context, dimensions int) error {
	var resp struct {
		Dimension int `json:"dimension"`
	}
	if err := s.post(ctx, "/describe_index_stats", map[string]any{}, &resp); err != nil {
		return fmt.Errorf("describe index: %w", err)
	}
	if resp.Dimension != dimensions {
		return fmt.Errorf("describe index: %w: index has %d dimensions, want %d",
			domain.ErrDimensionMismatch, resp.Dimension, dimensions)
	}
	return nil
}

// Upsert writes records in batches of batchSize.
func (s *Store) Upsert(ctx context.Context, namespace string, records []driven.VectorRecord, batchSize int) error {
	if len(records) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}

		vectors := make([]vectorPayload, 0, end-start)
		for _, rec := range records[start:end] {
			payload := vectorPayload{
				ID:       rec.ID,
				Values:   rec.Dense,
				Metadata: chunkMetadata(rec.Metadata),
			}
			if !rec.Sparse.IsZero() {
				payload.SparseValues = &sparsePayload{
					Indices: rec.Sparse.Indices,
					Values:  rec.Sparse.Values,
				}
			}
			vectors = append(vectors, payload)
		}

		body := map[string]any{"vectors": vectors, "namespace": namespace}
		if err := s.post(ctx, "/vectors/upsert", body, nil); err != nil {
			return fmt.Errorf("upsert batch at %d: %w", start, err)
		}
	}
	return nil
}

// Query runs a hybrid similarity search restricted by the filter.
func (s *Store) Query(ctx context.Context, namespace string, dense []float32, sparse driven.SparseVector, filter driven.Filter, topK int) ([]driven.Match, error) {
	body := map[string]any{
		"namespace":       namespace,
		"topK":            topK,
		"vector":          dense,
		"includeMetadata": true,
	}
	if !sparse.IsZero() {
		body["sparseVector"] = sparsePayload{Indices: sparse.Indices, Values: sparse.Values}
	}
	if f := metadataFilter(filter); f != nil {
		body["filter"] = f
	}

	var resp struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}
	if err := s.post(ctx, "/query", body, &resp); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	matches := make([]driven.Match, len(resp.Matches))
	for i, m := range resp.Matches {
		matches[i] = driven.Match{
			ID:       m.ID,
			Score:    m.Score,
			Metadata: metadataChunk(m.Metadata),
		}
	}
	return matches, nil
}

// DeleteByFilter removes all vectors matching the metadata filter.
func (s *Store) DeleteByFilter(ctx context.Context, namespace string, filter driven.Filter) error {
	body := map[string]any{"namespace": namespace}
	if f := metadataFilter(filter); f != nil {
		body["filter"] = f
	} else {
		body["deleteAll"] = true
	}

	if err := s.post(ctx, "/vectors/delete", body, nil); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Stats returns the number of vectors matching the filter.
func (s *Store) Stats(ctx context.Context, namespace string, filter *driven.Filter) (int, error) {
	body := map[string]any{}
	if filter != nil {
		if f := metadataFilter(*filter); f != nil {
			body["filter"] = f
		}
	}

	var resp struct {
		Namespaces map[string]struct {
			VectorCount int `json:"vectorCount"`
		} `json:"namespaces"`
		TotalVectorCount int `json:"totalVectorCount"`
	}
	if err := s.post(ctx, "/describe_index_stats", body, &resp); err != nil {
		return 0, fmt.Errorf("describe index: %w", err)
	}

	if ns, ok := resp.Namespaces[namespace]; ok {
		return ns.VectorCount, nil
	}
	return 0, nil
}

// Close releases resources.
func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// post sends a JSON request to the index data plane and decodes the
// response into out when non-nil.
func (s *Store) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.host+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Api-Key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVectorStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("pinecone %s: status %d: %s", path, resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// metadataFilter builds a Pinecone equality filter, nil when empty.
func metadataFilter(filter driven.Filter) map[string]any {
	clauses := map[string]any{}
	if filter.DocType != "" {
		clauses["doc_type"] = map[string]any{"$eq": string(filter.DocType)}
	}
	if filter.Resource != "" {
		clauses["resource"] = map[string]any{"$eq": filter.Resource}
	}
	if len(clauses) == 0 {
		return nil
	}
	return clauses
}

// chunkMetadata flattens a chunk into Pinecone metadata.
func chunkMetadata(c domain.Chunk) map[string]any {
	return map[string]any{
		"content":     c.Content,
		"title":       c.Title,
		"url":         c.URL,
		"resource":    c.Resource,
		"domain":      c.Domain,
		"source_type": string(c.SourceType),
		"doc_type":    string(c.DocType),
		"ordinal":     float64(c.Ordinal),
	}
}

// metadataChunk rebuilds a chunk from Pinecone metadata.
func metadataChunk(m map[string]any) domain.Chunk {
	return domain.Chunk{
		Content:    stringValue(m, "content"),
		Title:      stringValue(m, "title"),
		URL:        stringValue(m, "url"),
		Resource:   stringValue(m, "resource"),
		Domain:     stringValue(m, "domain"),
		SourceType: domain.SourceType(stringValue(m, "source_type")),
		DocType:    domain.DocType(stringValue(m, "doc_type")),
		Ordinal:    intValue(m, "ordinal"),
	}
}

func stringValue(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func intValue(m map[string]any, key string) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return 0
}
