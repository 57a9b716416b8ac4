package services

import (
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/grounder/internal/core/domain"
	"github.com/custodia-labs/grounder/internal/core/ports/driven"
)

// Ensure ConnectorRegistry implements the interface.
var _ driven.ConnectorFactory = (*ConnectorRegistry)(nil)

// ConnectorRegistry creates connectors from source configuration.
// Source types are registered once at startup; selection is a map
// lookup keyed on the declared SourceType, not tag-string matching.
type ConnectorRegistry struct {
	mu       sync.RWMutex
	builders map[domain.SourceType]driven.ConnectorBuilder
}

// NewConnectorRegistry creates an empty registry.
func NewConnectorRegistry() *ConnectorRegistry {
	return &ConnectorRegistry{
		builders: make(map[domain.SourceType]driven.ConnectorBuilder),
	}
}

// Register adds a connector builder for the given source type.
// Registering the same type twice replaces the earlier builder.
func (r *ConnectorRegistry) Register(sourceType domain.SourceType, builder driven.ConnectorBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[sourceType] = builder
}

// Create returns a Connector for the given source.
func (r *ConnectorRegistry) Create(source domain.Source) (driven.Connector, error) {
	r.mu.RLock()
	builder, ok := r.builders[source.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedType, source.Type)
	}
	return builder(source)
}

// SupportedTypes returns all registered source types, sorted.
func (r *ConnectorRegistry) SupportedTypes() []domain.SourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.SourceType, 0, len(r.builders))
	for t := range r.builders {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
