// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/pkg/types"
)

const fakePDF = "%PDF-1.4 fake content"

func testHTTPConfig() types.HTTPConfig {
	return types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "paper-digest/test"}
}

func TestFetchRemoteDocument(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/abs" {
			http.Redirect(w, r, "/paper.pdf", http.StatusMovedPermanently)
			return
		}
		if got := r.Header.Get("User-Agent"); got != "paper-digest/test" {
			t.Errorf("User-Agent = %q, want paper-digest/test", got)
		}
		if got := r.Header.Get("Accept"); got != "application/pdf" {
			t.Errorf("Accept = %q, want application/pdf", got)
		}
		w.Write([]byte(fakePDF))
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "documents", "X", "X.pdf")
	raw, err := FetchRemoteDocument(context.Background(), ts.Client(), ts.URL+"/abs", dest, testHTTPConfig())
	require.NoError(t, err)

	assert.Equal(t, dest, raw.LocalPath)
	assert.Equal(t, int64(len(fakePDF)), raw.Size)
	assert.Equal(t, ts.URL+"/paper.pdf", raw.SourceMetadata["final_url"])

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, fakePDF, string(data))

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFetchRemoteDocument_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "X.pdf")
	_, err := FetchRemoteDocument(context.Background(), ts.Client(), ts.URL, dest, testHTTPConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrAcquisition))
	assert.NoFileExists(t, dest)
}

func TestFetchRemoteDocument_NotPDF(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>login required</html>"))
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "X.pdf")
	_, err := FetchRemoteDocument(context.Background(), ts.Client(), ts.URL, dest, testHTTPConfig())
	assert.ErrorIs(t, err, types.ErrAcquisition)
	assert.NoFileExists(t, dest)
}

func TestFetchRemoteDocument_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(fakePDF))
	}))
	defer ts.Close()

	client := &http.Client{Timeout: 20 * time.Millisecond}
	_, err := FetchRemoteDocument(context.Background(), client, ts.URL, filepath.Join(t.TempDir(), "X.pdf"), testHTTPConfig())
	assert.ErrorIs(t, err, types.ErrAcquisition)
}

func TestReadLocalDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.pdf")
	require.NoError(t, os.WriteFile(path, []byte(fakePDF), 0o644))

	raw, err := ReadLocalDocument(path)
	require.NoError(t, err)
	assert.Equal(t, path, raw.LocalPath)
	assert.Equal(t, int64(len(fakePDF)), raw.Size)
}

func TestReadLocalDocument_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "missing.pdf")},
		{"directory", dir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadLocalDocument(tt.path)
			assert.ErrorIs(t, err, types.ErrAcquisition)
			var se *types.StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, types.StageAcquire, se.Stage)
		})
	}
}

const postHTML = `<html><head>
<title>Fallback title - 小红书</title>
<meta property="og:description" content="og description">
</head><body>
<div class="author-wrapper"><span class="username">paper-blogger</span></div>
<div id="detail-title">读论文: Attention Is All You Need</div>
<div id="detail-desc">Transformer 论文解读 arXiv 1706.03762</div>
</body></html>`

func TestFetchSocialPost(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "web_session=abc", r.Header.Get("Cookie"))
		w.Write([]byte(postHTML))
	}))
	defer ts.Close()

	raw, err := FetchSocialPost(context.Background(), ts.Client(), ts.URL+"/explore/66f1", testHTTPConfig(),
		types.SocialConfig{Cookies: "web_session=abc"})
	require.NoError(t, err)

	assert.Contains(t, raw.Text, "Attention Is All You Need")
	assert.Contains(t, raw.Text, "1706.03762")
	assert.Equal(t, "66f1", raw.SourceMetadata["post_id"])
	assert.Equal(t, "paper-blogger", raw.SourceMetadata["author"])
	assert.Positive(t, raw.Size)
}

func TestFetchSocialPost_OpenGraphFallback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><head><meta property="og:title" content="T"><meta property="og:description" content="D"></head></html>`))
	}))
	defer ts.Close()

	raw, err := FetchSocialPost(context.Background(), ts.Client(), ts.URL, testHTTPConfig(), types.SocialConfig{Cookies: "x=y"})
	require.NoError(t, err)
	assert.Equal(t, "T\n\nD", raw.Text)
}

func TestFetchSocialPost_MissingCookies(t *testing.T) {
	_, err := FetchSocialPost(context.Background(), http.DefaultClient, "https://www.xiaohongshu.com/explore/1", testHTTPConfig(), types.SocialConfig{})
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.ErrorIs(t, err, types.ErrAcquisition)
}

func TestFetchSocialPost_AuthFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	_, err := FetchSocialPost(context.Background(), ts.Client(), ts.URL, testHTTPConfig(), types.SocialConfig{Cookies: "stale"})
	assert.ErrorIs(t, err, types.ErrAcquisition)
}

func TestResolvePage_Derived(t *testing.T) {
	desc := ClassifyLink("https://arxiv.org/abs/2410.04618")
	res, err := ResolvePage(context.Background(), http.DefaultClient, desc, testHTTPConfig())
	require.NoError(t, err)
	assert.Equal(t, "https://arxiv.org/pdf/2410.04618.pdf", res.DocumentURL)
}

func TestResolvePage_CitationMeta(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head>
<meta name="citation_title" content="Deep Residual Learning">
<meta name="citation_pdf_url" content="/content/paper.pdf">
<meta name="citation_doi" content="10.1109/CVPR.2016.90">
</head><body><article><h1>Deep Residual Learning</h1><p>We present a residual learning framework.</p></article></body></html>`))
	}))
	defer ts.Close()

	desc := types.SourceDescriptor{Kind: types.KindBibliographicPage, URL: ts.URL + "/article/1"}
	res, err := ResolvePage(context.Background(), ts.Client(), desc, testHTTPConfig())
	require.NoError(t, err)

	assert.Equal(t, ts.URL+"/content/paper.pdf", res.DocumentURL)
	assert.Equal(t, "Deep Residual Learning", res.Title)
	assert.Equal(t, "10.1109/CVPR.2016.90", res.Raw.SourceMetadata["doi"])
	assert.Positive(t, res.Raw.Size)
	assert.Equal(t, ts.URL+"/article/1", res.Raw.SourceMetadata["page_url"])
}

func TestResolvePage_NoDocumentLink(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>A blog post</title></head><body><p>Some discussion of a paper.</p></body></html>`))
	}))
	defer ts.Close()

	desc := types.SourceDescriptor{Kind: types.KindOther, URL: ts.URL}
	res, err := ResolvePage(context.Background(), ts.Client(), desc, testHTTPConfig())
	require.NoError(t, err)
	assert.Empty(t, res.DocumentURL)
	assert.Equal(t, "A blog post", res.Title)
}

func TestResolvePage_ServesPDF(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte(fakePDF))
	}))
	defer ts.Close()

	desc := types.SourceDescriptor{Kind: types.KindOther, URL: ts.URL + "/download"}
	res, err := ResolvePage(context.Background(), ts.Client(), desc, testHTTPConfig())
	require.NoError(t, err)
	assert.Equal(t, ts.URL+"/download", res.DocumentURL)
}
