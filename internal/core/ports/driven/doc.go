// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Connector: fetches documents from a content source
//   - ConnectorFactory: creates connectors from source configuration
//   - Tokenizer: token counts in the completion model's encoding
//   - EmbeddingService: dense embeddings
//   - SparseEncoder: batch-fit lexical embeddings
//   - VectorStore: the hybrid (dense + sparse) index
//   - SnapshotStore: per-source chunk snapshots for change detection
//   - CompletionService: grounded answer generation
//   - PromptStore: the role-tagged prompt skeleton
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: any adapter or connector package
package driven
