// Package web provides a connector fetching documents over HTTP from a
// sitemap or an explicit URL list.
package web

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/grounder/internal/core/domain"
	"github.com/custodia-labs/grounder/internal/core/ports/driven"
	"github.com/custodia-labs/grounder/internal/logger"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Source config keys.
const (
	// ConfigSitemap is the sitemap URL to expand into page URLs.
	ConfigSitemap = "sitemap"

	// ConfigURLs is a comma-separated list of page URLs, used instead
	// of a sitemap.
	ConfigURLs = "urls"

	// ConfigRequestsPerSecond paces page fetches (default: 2).
	ConfigRequestsPerSecond = "requests_per_second"
)

// Default configuration values.
const (
	DefaultRequestsPerSecond = 2
	DefaultTimeout           = 30 * time.Second

	// maxBodyBytes caps a single page read.
	maxBodyBytes = 4 << 20

	userAgent = "grounder/1.0 (+https://github.com/custodia-labs/grounder)"
)

// Connector fetches pages over HTTP.
type Connector struct {
	source  domain.Source
	client  *http.Client
	limiter *rate.Limiter
}

type sitemapIndex struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// New creates a web connector for the given source. The source config
// must carry either a sitemap URL or an explicit URL list.
func New(source domain.Source) (driven.Connector, error) {
	if source.Config[ConfigSitemap] == "" && source.Config[ConfigURLs] == "" {
		return nil, fmt.Errorf("web %s: %w: config key %q or %q is required",
			source.Resource, domain.ErrInvalidInput, ConfigSitemap, ConfigURLs)
	}

	rps := DefaultRequestsPerSecond
	if raw := source.Config[ConfigRequestsPerSecond]; raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("web %s: %w: invalid %q value %q",
				source.Resource, domain.ErrInvalidInput, ConfigRequestsPerSecond, raw)
		}
		rps = parsed
	}

	return &Connector{
		source:  source,
		client:  &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// Type returns the source type this connector serves.
func (c *Connector) Type() domain.SourceType {
	return domain.SourceTypeSitemap
}

// Fetch expands the sitemap (or URL list) and downloads each page. A
// page that fails to download is logged and skipped so one broken link
// doesn't abort the whole source.
func (c *Connector) Fetch(ctx context.Context) ([]domain.Document, error) {
	urls, err := c.pageURLs(ctx)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(urls))
	for _, pageURL := range urls {
		body, err := c.get(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("web %s: skipping %s: %v", c.source.Resource, pageURL, err)
			continue
		}

		docs = append(docs, domain.Document{
			Content:  stripHTML(string(body)),
			Title:    extractTitle(string(body)),
			Location: pageURL,
		})
	}
	return docs, nil
}

// Watch is not supported for web sources.
func (c *Connector) Watch(_ context.Context) (<-chan struct{}, error) {
	return nil, fmt.Errorf("web %s: %w: watch not supported", c.source.Resource, domain.ErrUnsupportedType)
}

// Close releases resources.
func (c *Connector) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// pageURLs returns the URLs to fetch, from the explicit list or by
// expanding the sitemap.
func (c *Connector) pageURLs(ctx context.Context) ([]string, error) {
	if raw := c.source.Config[ConfigURLs]; raw != "" {
		var urls []string
		for _, u := range strings.Split(raw, ",") {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		return urls, nil
	}

	body, err := c.get(ctx, c.source.Config[ConfigSitemap])
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap: %w", err)
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}

	urls := make([]string, 0, len(index.URLs))
	for _, entry := range index.URLs {
		if loc := strings.TrimSpace(entry.Loc); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}

func (c *Connector) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

// stripHTML reduces a page to its text. Script and style bodies are
// dropped entirely; tags become spaces so adjacent words don't fuse.
func stripHTML(page string) string {
	var b strings.Builder
	b.Grow(len(page) / 2)

	var inTag, skip, nameDone bool
	var tagName strings.Builder
	lower := strings.ToLower(page)

	for i := 0; i < len(page); i++ {
		ch := page[i]
		switch {
		case ch == '<':
			inTag = true
			nameDone = false
			tagName.Reset()
		case ch == '>' && inTag:
			inTag = false
			name := strings.TrimPrefix(tagName.String(), "/")
			closing := strings.HasPrefix(tagName.String(), "/")
			if name == "script" || name == "style" {
				skip = !closing
			}
			b.WriteByte(' ')
		case inTag:
			if nameDone {
				continue
			}
			if lower[i] == '/' || lower[i] >= 'a' && lower[i] <= 'z' {
				tagName.WriteByte(lower[i])
			} else {
				nameDone = true
			}
		case !skip:
			b.WriteByte(ch)
		}
	}
	return decodeEntities(b.String())
}

// extractTitle pulls the <title> text, empty when absent.
func extractTitle(page string) string {
	lower := strings.ToLower(page)
	start := strings.Index(lower, "<title")
	if start < 0 {
		return ""
	}
	open := strings.Index(lower[start:], ">")
	if open < 0 {
		return ""
	}
	rest := page[start+open+1:]
	end := strings.Index(strings.ToLower(rest), "</title>")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(decodeEntities(rest[:end]))
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&apos;", "'",
	"&nbsp;", " ",
)

func decodeEntities(s string) string {
	return entityReplacer.Replace(s)
}
