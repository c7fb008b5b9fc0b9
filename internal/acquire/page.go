// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"code.sajari.com/docconv"
	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// maxPageBytes bounds how much of an HTML page is read.
const maxPageBytes = 8 << 20

// PageResult is what a bibliographic or unrecognized page yields.
type PageResult struct {
	// DocumentURL is a direct document link found on, or derived from, the page.
	DocumentURL string

	// Title is the paper title the page declares, if any.
	Title string

	// Raw carries the readable page text as context for metadata extraction.
	Raw types.RawContent
}

// ResolvePage turns a bibliographic page or unrecognized link into a
// document URL and/or page text. Descriptors with a derived document URL
// resolve without any network call.
func ResolvePage(ctx context.Context, client *http.Client, desc types.SourceDescriptor, cfg types.HTTPConfig) (PageResult, error) {
	if desc.DerivedURL != "" {
		return PageResult{DocumentURL: desc.DerivedURL}, nil
	}

	start := time.Now()
	resp, err := httputil.Get(ctx, client, desc.URL, cfg.UserAgent, map[string]string{
		"Accept": "text/html,application/xhtml+xml",
	})
	if err != nil {
		return PageResult{}, acquisitionError(fmt.Errorf("fetching page: %w", err))
	}
	defer resp.Body.Close()

	// Some links labelled as pages serve the document directly.
	if strings.Contains(resp.Header.Get("Content-Type"), "application/pdf") {
		return PageResult{DocumentURL: resp.Request.URL.String()}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return PageResult{}, acquisitionError(fmt.Errorf("reading page: %w", err))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return PageResult{}, acquisitionError(fmt.Errorf("parsing page: %w", err))
	}

	base := resp.Request.URL
	result := PageResult{
		DocumentURL: absoluteURL(base, firstNonEmpty(
			metaContent(doc, `meta[name="citation_pdf_url"]`),
			doc.Find(`link[type="application/pdf"]`).First().AttrOr("href", ""),
		)),
		Title: firstNonEmpty(
			metaContent(doc, `meta[name="citation_title"]`),
			metaContent(doc, `meta[name="dc.title"]`),
			metaContent(doc, `meta[property="og:title"]`),
			doc.Find("title").First().Text(),
		),
	}

	text := pageText(body)
	if text == "" {
		text = strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	}
	result.Raw = types.RawContent{
		Text: text,
		SourceMetadata: map[string]string{
			"page_url":  base.String(),
			"page_type": string(desc.Kind),
		},
		Elapsed: time.Since(start),
		Size:    int64(len(body)),
	}
	if doi := metaContent(doc, `meta[name="citation_doi"]`); doi != "" {
		result.Raw.SourceMetadata["doi"] = doi
	}
	if id := metaContent(doc, `meta[name="citation_arxiv_id"]`); id != "" {
		result.Raw.SourceMetadata["arxiv_id"] = id
	}
	return result, nil
}

// pageText extracts readable text with docconv, using readability to drop
// navigation and boilerplate.
func pageText(html []byte) string {
	res, err := docconv.Convert(bytes.NewReader(html), "text/html", true)
	if err != nil || res == nil {
		return ""
	}
	return strings.TrimSpace(res.Body)
}

func absoluteURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}
