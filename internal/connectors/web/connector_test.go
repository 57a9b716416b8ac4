package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/grounder/internal/core/domain"
)

func sourceWith(config map[string]string) domain.Source {
	return domain.Source{
		Resource: "docs-site",
		Type:     domain.SourceTypeSitemap,
		DocType:  domain.DocTypeHard,
		Config:   config,
	}
}

func TestFetch_ExpandsSitemap(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<urlset>
  <url><loc>` + server.URL + `/page-one</loc></url>
  <url><loc>` + server.URL + `/page-two</loc></url>
</urlset>`))
	})
	mux.HandleFunc("/page-one", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Page One</title></head><body><p>first page body</p></body></html>`))
	})
	mux.HandleFunc("/page-two", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>second page body</body></html>`))
	})

	conn, err := New(sourceWith(map[string]string{
		ConfigSitemap:           server.URL + "/sitemap.xml",
		ConfigRequestsPerSecond: "100",
	}))
	require.NoError(t, err)
	defer conn.Close()

	docs, err := conn.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, server.URL+"/page-one", docs[0].Location)
	assert.Equal(t, "Page One", docs[0].Title)
	assert.Contains(t, docs[0].Content, "first page body")
	assert.NotContains(t, docs[0].Content, "<p>")
	assert.Equal(t, "", docs[1].Title)
}

func TestFetch_SkipsFailingPages(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>alive</body></html>"))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	conn, err := New(sourceWith(map[string]string{
		ConfigURLs:              server.URL + "/ok, " + server.URL + "/gone",
		ConfigRequestsPerSecond: "100",
	}))
	require.NoError(t, err)

	docs, err := conn.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "alive")
}

func TestNew_RequiresSitemapOrURLs(t *testing.T) {
	_, err := New(sourceWith(map[string]string{}))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNew_RejectsBadRate(t *testing.T) {
	_, err := New(sourceWith(map[string]string{
		ConfigURLs:              "https://example.com",
		ConfigRequestsPerSecond: "zero",
	}))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWatch_Unsupported(t *testing.T) {
	conn, err := New(sourceWith(map[string]string{ConfigURLs: "https://example.com"}))
	require.NoError(t, err)

	_, err = conn.Watch(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestStripHTML(t *testing.T) {
	page := `<html><head><style>.x{color:red}</style><script>var a=1;</script></head>` +
		`<body><h1 class="big">Title</h1><p>Body &amp; more</p></body></html>`

	text := stripHTML(page)
	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "Body & more")
	assert.NotContains(t, text, "color:red")
	assert.NotContains(t, text, "var a=1")
	assert.NotContains(t, text, "class=")
}

func TestExtractTitle(t *testing.T) {
	assert.Equal(t, "My Page", extractTitle(`<html><title>My Page</title></html>`))
	assert.Equal(t, "Styled", extractTitle(`<TITLE lang="en"> Styled </TITLE>`))
	assert.Equal(t, "", extractTitle(`<html><body>no title</body></html>`))
}
