// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries the arXiv API: lookup of a record by identifier
// for venue/date enrichment, and title search for locating a document
// when only the title is known.
package search

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/paper-digest/internal/httputil"
)

// arxivAPIBase is the arXiv query endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// arxivPDFBase is the canonical document-download prefix.
var arxivPDFBase = "https://arxiv.org/pdf/"

// titleSearchResults is how many candidates a title search asks for.
const titleSearchResults = 3

// ErrNotFound is returned when arXiv has no matching record.
var ErrNotFound = errors.New("no matching arXiv record")

// ArxivEntry is one arXiv record.
type ArxivEntry struct {
	ID         string
	Title      string
	Summary    string
	Authors    []string
	Published  time.Time
	JournalRef string
	Comment    string
	DOI        string
}

// PublishedDate returns the published date as YYYY-MM-DD, or "".
func (e ArxivEntry) PublishedDate() string {
	if e.Published.IsZero() {
		return ""
	}
	return e.Published.Format("2006-01-02")
}

// PDFURL returns the document-download URL for the entry.
func (e ArxivEntry) PDFURL() string {
	return arxivPDFBase + e.ID + ".pdf"
}

// ArxivClient queries the arXiv API. Calls are spaced by Throttle, which
// is shared across concurrent pipeline runs.
type ArxivClient struct {
	Client    *http.Client
	UserAgent string
	Throttle  *httputil.Throttle
}

// LookupArxiv fetches the record for id.
func (c *ArxivClient) LookupArxiv(ctx context.Context, id string) (ArxivEntry, error) {
	id = NormalizeID(id)
	if id == "" {
		return ArxivEntry{}, fmt.Errorf("empty arXiv ID")
	}
	entries, err := c.query(ctx, url.Values{"id_list": {id}})
	if err != nil {
		return ArxivEntry{}, err
	}
	if len(entries) == 0 {
		return ArxivEntry{}, fmt.Errorf("arXiv ID %s: %w", id, ErrNotFound)
	}
	return entries[0], nil
}

// SearchByTitle returns the best title match.
func (c *ArxivClient) SearchByTitle(ctx context.Context, title string) (ArxivEntry, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return ArxivEntry{}, fmt.Errorf("empty title")
	}
	entries, err := c.query(ctx, url.Values{
		"search_query": {"ti:" + title},
		"max_results":  {fmt.Sprint(titleSearchResults)},
	})
	if err != nil {
		return ArxivEntry{}, err
	}
	if len(entries) == 0 {
		return ArxivEntry{}, fmt.Errorf("title %q: %w", title, ErrNotFound)
	}
	return entries[0], nil
}

func (c *ArxivClient) query(ctx context.Context, params url.Values) ([]ArxivEntry, error) {
	if err := c.Throttle.Wait(ctx); err != nil {
		return nil, err
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.Get(ctx, client, arxivAPIBase+"?"+params.Encode(), c.UserAgent, nil)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	var entries []ArxivEntry
	for _, e := range feed.Entries {
		id := extractArxivID(e.ID)
		if id == "" {
			continue
		}
		entry := ArxivEntry{
			ID:         id,
			Title:      collapseSpace(e.Title),
			Summary:    strings.TrimSpace(e.Summary),
			JournalRef: collapseSpace(e.JournalRef),
			Comment:    collapseSpace(e.Comment),
			DOI:        strings.TrimSpace(e.DOI),
		}
		for _, a := range e.Authors {
			entry.Authors = append(entry.Authors, strings.TrimSpace(a.Name))
		}
		if t, parseErr := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); parseErr == nil {
			entry.Published = t.UTC()
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string        `xml:"id"`
	Title      string        `xml:"title"`
	Summary    string        `xml:"summary"`
	Published  string        `xml:"published"`
	Authors    []arxivAuthor `xml:"author"`
	JournalRef string        `xml:"http://arxiv.org/schemas/atom journal_ref"`
	Comment    string        `xml:"http://arxiv.org/schemas/atom comment"`
	DOI        string        `xml:"http://arxiv.org/schemas/atom doi"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041v1"). Error
// entries, whose id points at the API error page, yield "".
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(idURL[idx+len(prefix):])
}

var idPattern = regexp.MustCompile(`(?i)(?:arxiv:)?(\d{4}\.\d{4,5}(?:v\d+)?|[a-z-]+(?:\.[A-Z]{2})?/\d{7}(?:v\d+)?)`)

// NormalizeID extracts an arXiv identifier from forms such as
// "arXiv:2410.04618", "2410.04618v2", or an abs/pdf URL.
func NormalizeID(s string) string {
	s = strings.TrimSpace(s)
	if m := idPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
