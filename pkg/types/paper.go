// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-digest pipeline:
// source descriptors, acquired content, the paper record threaded through
// every stage, figures, digests, persisted blocks, and configuration.
package types

import (
	"strings"
	"time"
)

// PlaceholderTitle is used whenever no title could be determined.
const PlaceholderTitle = "Unknown Paper"

// DateLayout is the calendar-date layout used for publication dates.
const DateLayout = "2006-01-02"

// SourceKind classifies an input link.
type SourceKind string

const (
	KindSocialPost        SourceKind = "social_post"
	KindDocument          SourceKind = "document"
	KindBibliographicPage SourceKind = "bibliographic_page"
	KindOther             SourceKind = "other"
)

// SourceDescriptor is the classifier's verdict on an input link.
type SourceDescriptor struct {
	Kind SourceKind `json:"kind" yaml:"kind"`

	// URL is the link as given, trimmed.
	URL string `json:"url" yaml:"url"`

	// DerivedURL is a direct document URL computed from URL, when one exists
	// (e.g. an arXiv abstract page mapped to its PDF).
	DerivedURL string `json:"derived_url,omitempty" yaml:"derived_url,omitempty"`

	// Message is a human-readable explanation of the classification.
	Message string `json:"message" yaml:"message"`
}

// DocumentURL returns the URL to download a document from: DerivedURL when
// set, otherwise URL.
func (d SourceDescriptor) DocumentURL() string {
	if d.DerivedURL != "" {
		return d.DerivedURL
	}
	return d.URL
}

// RawContent is what an acquirer hands to the parser and metadata stage.
type RawContent struct {
	// Text is textual content (a social post body or page text).
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// LocalPath points at binary content written to disk.
	LocalPath string `json:"local_path,omitempty" yaml:"local_path,omitempty"`

	// SourceMetadata carries acquirer-specific details (post ID, final URL).
	SourceMetadata map[string]string `json:"source_metadata,omitempty" yaml:"source_metadata,omitempty"`

	// Elapsed and Size are observability data reported by every acquirer.
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
	Size    int64         `json:"size" yaml:"size"`
}

// DocumentMetadata holds the fields a document declares about itself.
type DocumentMetadata struct {
	Title        string `json:"title" yaml:"title"`
	Author       string `json:"author" yaml:"author"`
	Subject      string `json:"subject" yaml:"subject"`
	Keywords     string `json:"keywords" yaml:"keywords"`
	Creator      string `json:"creator" yaml:"creator"`
	Producer     string `json:"producer" yaml:"producer"`
	CreationDate string `json:"creationDate" yaml:"creation_date"`
	ModDate      string `json:"modDate" yaml:"mod_date"`
	Pages        int    `json:"pages" yaml:"pages"`
}

// PaperRecord is the aggregate one pipeline run builds for one document.
// It is owned by that run and never shared across runs.
type PaperRecord struct {
	Title          string    `json:"title" yaml:"title"`
	Authors        []string  `json:"authors" yaml:"authors"`
	PublishedOn    time.Time `json:"publication_date" yaml:"publication_date"`
	Venue          string    `json:"venue" yaml:"venue"`
	Abstract       string    `json:"abstract" yaml:"abstract"`
	Affiliations   string    `json:"affiliations" yaml:"affiliations"`
	Keywords       []string  `json:"keywords" yaml:"keywords"`
	DOI            string    `json:"doi,omitempty" yaml:"doi,omitempty"`
	ArxivID        string    `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`
	ProjectPage    string    `json:"project_page,omitempty" yaml:"project_page,omitempty"`
	OtherResources string    `json:"other_resources,omitempty" yaml:"other_resources,omitempty"`

	// SourceURL is the link the run started from.
	SourceURL string `json:"source_url,omitempty" yaml:"source_url,omitempty"`

	// DocumentURL is where the document was downloaded from.
	DocumentURL string `json:"document_url,omitempty" yaml:"document_url,omitempty"`

	// DocumentPath is the local document file.
	DocumentPath string `json:"document_path,omitempty" yaml:"document_path,omitempty"`

	// RawText is the parsed, truncated body text.
	RawText string `json:"-" yaml:"-"`

	// SocialText is the social post body, when the run started from one.
	SocialText string `json:"-" yaml:"-"`

	Metadata DocumentMetadata `json:"document_metadata" yaml:"document_metadata"`

	Figures []Figure `json:"figures" yaml:"figures"`
}

// NewPaperRecord returns a record carrying the placeholder title.
func NewPaperRecord(sourceURL string) *PaperRecord {
	return &PaperRecord{Title: PlaceholderTitle, SourceURL: sourceURL}
}

// HasPlaceholderTitle reports whether the title is still the placeholder.
func (p *PaperRecord) HasPlaceholderTitle() bool {
	return p.Title == "" || p.Title == PlaceholderTitle
}

// SetTitle sets the title, falling back to the placeholder for blank input.
func (p *PaperRecord) SetTitle(title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = PlaceholderTitle
	}
	p.Title = title
}

// PublicationDate returns the date as YYYY-MM-DD, or "" when unset.
func (p *PaperRecord) PublicationDate() string {
	if p.PublishedOn.IsZero() {
		return ""
	}
	return p.PublishedOn.Format(DateLayout)
}

// AddKeywords appends keywords, dropping blanks and case-insensitive duplicates.
func (p *PaperRecord) AddKeywords(keywords ...string) {
	seen := make(map[string]bool, len(p.Keywords))
	for _, k := range p.Keywords {
		seen[strings.ToLower(k)] = true
	}
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" || seen[strings.ToLower(k)] {
			continue
		}
		seen[strings.ToLower(k)] = true
		p.Keywords = append(p.Keywords, k)
	}
}

// ParseCalendarDate turns a generation-service date string into a full
// calendar date. A bare year becomes January 1st and a year-month becomes
// the first of the month; anything else unparseable yields ok=false.
func ParseCalendarDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return time.Time{}, false
	}
	for _, layout := range []string{DateLayout, time.RFC3339, "2006-01", "2006/01/02", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	if len(s) >= 10 {
		if t, err := time.Parse(DateLayout, s[:10]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
