package driven

import (
	"context"

	"github.com/custodia-labs/grounder/internal/core/domain"
)

// Connector fetches documents from a content source.
// Each source type (localfile, sitemap, wiki, ...) implements this
// interface.
type Connector interface {
	// Type returns the source type this connector serves.
	Type() domain.SourceType

	// Fetch retrieves all documents of the source. Documents are raw:
	// cleaning, title derivation and chunking happen downstream.
	Fetch(ctx context.Context) ([]domain.Document, error)

	// Watch reports source changes on the returned channel until ctx is
	// cancelled. Connectors that cannot watch return
	// domain.ErrUnsupportedType.
	Watch(ctx context.Context) (<-chan struct{}, error)

	// Close releases resources.
	Close() error
}

// ConnectorBuilder creates a Connector from a source configuration.
type ConnectorBuilder func(source domain.Source) (Connector, error)

// ConnectorFactory creates connectors from source configuration.
// It maintains a registry of source types and their builders.
type ConnectorFactory interface {
	// Create returns a Connector for the given source.
	// Returns domain.ErrUnsupportedType if the source type is unknown.
	Create(source domain.Source) (Connector, error)

	// Register adds a connector builder for the given source type.
	Register(sourceType domain.SourceType, builder ConnectorBuilder)

	// SupportedTypes returns all registered source types.
	SupportedTypes() []domain.SourceType
}
