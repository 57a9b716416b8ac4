// Package text provides the document normaliser: content cleaning and
// title derivation, applied to every document before chunking.
package text

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/custodia-labs/grounder/internal/core/domain"
)

// Normaliser cleans raw document text and derives missing titles.
type Normaliser struct{}

// New creates a new text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Normalise returns a copy of the document with cleaned content and a
// guaranteed title. Documents without a title get one derived from the
// last path segment of their location, prefixed with the source's
// resource name.
func (n *Normaliser) Normalise(doc domain.Document, source domain.Source) domain.Document {
	out := doc
	out.Content = Clean(doc.Content)
	if strings.TrimSpace(out.Title) == "" {
		out.Title = deriveTitle(source.Resource, doc.Location)
	}
	return out
}

// Clean strips non-printable characters and collapses any run of three
// or more of the same whitespace character down to exactly two.
func Clean(s string) string {
	return collapseRuns(stripNonPrintable(s))
}

// stripNonPrintable removes control characters, keeping newlines and
// tabs, which carry structure the chunker uses for break points.
func stripNonPrintable(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// collapseRuns reduces runs of >= 3 identical whitespace characters to
// exactly 2. Runs of different whitespace characters are untouched.
func collapseRuns(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(runes); {
		r := runes[i]
		j := i + 1
		for j < len(runes) && runes[j] == r {
			j++
		}
		count := j - i
		if unicode.IsSpace(r) && count >= 3 {
			count = 2
		}
		for k := 0; k < count; k++ {
			b.WriteRune(r)
		}
		i = j
	}
	return b.String()
}

// deriveTitle builds a title from the last path segment of a location,
// extension stripped, underscores and dashes replaced with spaces, and
// prefixed with the resource name.
func deriveTitle(resource, location string) string {
	name := path.Base(strings.TrimSuffix(location, "/"))

	// Drop query strings from URL locations.
	if idx := strings.IndexByte(name, '?'); idx >= 0 {
		name = name[:idx]
	}

	if ext := path.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}

	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.TrimSpace(name)

	if name == "" || name == "." {
		return resource
	}
	return fmt.Sprintf("%s %s", resource, name)
}
