// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// arxivPDFBase is the canonical document-download prefix for arXiv papers.
// Declared as a var so tests can substitute httptest servers.
var arxivPDFBase = "https://arxiv.org/pdf/"

var socialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)xiaohongshu\.com`),
	regexp.MustCompile(`(?i)xhslink\.com`),
}

var documentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.pdf$`),
	regexp.MustCompile(`(?i)arxiv\.org/pdf`),
	regexp.MustCompile(`(?i)\.pdf\?`),
}

// arxivAbsPattern captures the identifier of an arXiv abstract page.
var arxivAbsPattern = regexp.MustCompile(`(?i)arxiv\.org/abs/(\d+\.\d+(?:v\d+)?)`)

// academicDomains lists journal, preprint, and indexing sites.
var academicDomains = []*regexp.Regexp{
	regexp.MustCompile(`(?i)nature\.com`),
	regexp.MustCompile(`(?i)science\.org`),
	regexp.MustCompile(`(?i)sciencedirect\.com`),
	regexp.MustCompile(`(?i)ieee\.org`),
	regexp.MustCompile(`(?i)acm\.org`),
	regexp.MustCompile(`(?i)springer\.com`),
	regexp.MustCompile(`(?i)sciencemag\.org`),
	regexp.MustCompile(`(?i)pnas\.org`),
	regexp.MustCompile(`(?i)cell\.com`),
	regexp.MustCompile(`(?i)aaai\.org`),
	regexp.MustCompile(`(?i)openreview\.net`),
	regexp.MustCompile(`(?i)arxiv\.org`),
	regexp.MustCompile(`(?i)biorxiv\.org`),
	regexp.MustCompile(`(?i)medrxiv\.org`),
	regexp.MustCompile(`(?i)doi\.org`),
	regexp.MustCompile(`(?i)researchgate\.net`),
	regexp.MustCompile(`(?i)semanticscholar\.org`),
	regexp.MustCompile(`(?i)google\.com/scholar`),
}

// ClassifyLink maps a link to a source descriptor. It never rejects input:
// anything unrecognized is classified as KindOther.
func ClassifyLink(link string) types.SourceDescriptor {
	link = strings.TrimSpace(link)

	if matchAny(socialPatterns, link) {
		return types.SourceDescriptor{
			Kind:    types.KindSocialPost,
			URL:     link,
			Message: "social post: fetching the post and extracting the paper it describes",
		}
	}

	if matchAny(documentPatterns, link) {
		return types.SourceDescriptor{
			Kind:    types.KindDocument,
			URL:     link,
			Message: "direct document link: downloading and analyzing",
		}
	}

	if m := arxivAbsPattern.FindStringSubmatch(link); m != nil {
		derived := ArxivPDFURL(m[1])
		return types.SourceDescriptor{
			Kind:       types.KindBibliographicPage,
			URL:        link,
			DerivedURL: derived,
			Message:    fmt.Sprintf("arXiv abstract page: converted to document link %s", derived),
		}
	}

	if matchAny(academicDomains, link) {
		return types.SourceDescriptor{
			Kind:    types.KindBibliographicPage,
			URL:     link,
			Message: "academic page: looking for a document link or searching by title",
		}
	}

	return types.SourceDescriptor{
		Kind:    types.KindOther,
		URL:     link,
		Message: "unrecognized link: extracting paper details and looking for a document",
	}
}

// ArxivPDFURL returns the document-download URL for an arXiv identifier.
func ArxivPDFURL(id string) string {
	return arxivPDFBase + id + ".pdf"
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
