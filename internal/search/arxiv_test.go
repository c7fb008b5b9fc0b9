// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/internal/httputil"
)

const entryXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2410.04618v1</id>
    <published>2024-10-06T21:55:10Z</published>
    <title>Towards   a Theory
      of Digests</title>
    <summary>We study digests.</summary>
    <author><name>Ada Lovelace</name></author>
    <author><name>Alan Turing</name></author>
    <arxiv:comment xmlns:arxiv="http://arxiv.org/schemas/atom">Accepted at ACL 2025</arxiv:comment>
    <arxiv:journal_ref xmlns:arxiv="http://arxiv.org/schemas/atom">Proceedings of ACL 2025, pp. 1-12</arxiv:journal_ref>
    <arxiv:doi xmlns:arxiv="http://arxiv.org/schemas/atom">10.1234/acl.2025.1</arxiv:doi>
  </entry>
</feed>`

const emptyFeed = `<?xml version="1.0" encoding="UTF-8"?><feed xmlns="http://www.w3.org/2005/Atom"></feed>`

func withArxivServer(t *testing.T, handler http.HandlerFunc) *ArxivClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	orig := arxivAPIBase
	arxivAPIBase = ts.URL
	t.Cleanup(func() { arxivAPIBase = orig })

	return &ArxivClient{Client: ts.Client(), UserAgent: "paper-digest/test"}
}

func TestLookupArxiv(t *testing.T) {
	c := withArxivServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2410.04618", r.URL.Query().Get("id_list"))
		assert.Equal(t, "paper-digest/test", r.Header.Get("User-Agent"))
		w.Write([]byte(entryXML))
	})

	entry, err := c.LookupArxiv(context.Background(), "arXiv:2410.04618")
	require.NoError(t, err)

	assert.Equal(t, "2410.04618v1", entry.ID)
	assert.Equal(t, "Towards a Theory of Digests", entry.Title)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, entry.Authors)
	assert.Equal(t, "Proceedings of ACL 2025, pp. 1-12", entry.JournalRef)
	assert.Equal(t, "Accepted at ACL 2025", entry.Comment)
	assert.Equal(t, "10.1234/acl.2025.1", entry.DOI)
	assert.Equal(t, "2024-10-06", entry.PublishedDate())
}

func TestLookupArxiv_NotFound(t *testing.T) {
	c := withArxivServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(emptyFeed))
	})
	_, err := c.LookupArxiv(context.Background(), "2410.00000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupArxiv_HTTPError(t *testing.T) {
	c := withArxivServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.LookupArxiv(context.Background(), "2410.04618")
	assert.Error(t, err)
}

func TestLookupArxiv_EmptyID(t *testing.T) {
	c := &ArxivClient{}
	_, err := c.LookupArxiv(context.Background(), "not an id")
	assert.Error(t, err)
}

func TestSearchByTitle(t *testing.T) {
	c := withArxivServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ti:Towards a Theory of Digests", r.URL.Query().Get("search_query"))
		assert.Equal(t, "3", r.URL.Query().Get("max_results"))
		w.Write([]byte(entryXML))
	})

	entry, err := c.SearchByTitle(context.Background(), "Towards a Theory of Digests")
	require.NoError(t, err)
	assert.Equal(t, "https://arxiv.org/pdf/2410.04618v1.pdf", entry.PDFURL())
}

func TestSearchByTitle_NotFound(t *testing.T) {
	c := withArxivServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(emptyFeed))
	})
	_, err := c.SearchByTitle(context.Background(), "Nothing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestThrottleSpacesCalls(t *testing.T) {
	c := withArxivServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(entryXML))
	})
	c.Throttle = httputil.NewThrottle(40 * time.Millisecond)

	start := time.Now()
	for i := 0; i < 2; i++ {
		_, err := c.LookupArxiv(context.Background(), "2410.04618")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2410.04618", "2410.04618"},
		{"arXiv:2410.04618", "2410.04618"},
		{"2410.04618v2", "2410.04618v2"},
		{"https://arxiv.org/abs/2410.04618", "2410.04618"},
		{"https://arxiv.org/pdf/1706.03762v7.pdf", "1706.03762v7"},
		{"hep-th/9901001", "hep-th/9901001"},
		{"", ""},
		{"null", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeID(tt.in))
		})
	}
}
