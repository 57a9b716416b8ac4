package domain

// SourceType identifies the connector that fetches a source's documents.
// Connector selection is a factory lookup keyed on this type; unknown
// types surface as ErrUnsupportedType rather than being matched on tag
// strings scattered through the pipeline.
type SourceType string

const (
	// SourceTypeLocalFile reads documents from a local directory tree.
	SourceTypeLocalFile SourceType = "localfile"

	// SourceTypeSitemap fetches pages listed in an XML sitemap.
	SourceTypeSitemap SourceType = "sitemap"
)

// Source is the configuration of one content source.
// Each source owns a disjoint metadata filter (its Resource) and a
// disjoint snapshot directory, which is what makes sequential per-source
// ingestion safe without shared state.
type Source struct {
	// Resource is the unique identifier of the source. It becomes the
	// resource metadata field on every chunk and the filter used when
	// replacing the source's vectors.
	Resource string

	// Type selects the connector used to fetch documents.
	Type SourceType

	// Domain is the deployment/site identifier stamped on chunks.
	Domain string

	// DocType classifies everything this source produces.
	DocType DocType

	// Config holds connector-specific settings (path, url, glob, ...).
	Config map[string]string
}
