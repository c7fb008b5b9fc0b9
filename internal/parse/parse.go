// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package parse extracts body text and declared metadata from PDF
// documents. Text is read in fixed-size page batches and bounded by a
// character ceiling so downstream prompts stay within budget.
package parse

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/pdiddy/paper-digest/pkg/types"
)

const (
	defaultPagesPerBatch = 10
	defaultMaxChars      = 50000

	// TruncationMarker is appended when text exceeds the ceiling.
	TruncationMarker = "\n\n[content truncated]"
)

// Document is the parser's output.
type Document struct {
	Text      string
	Metadata  types.DocumentMetadata
	Truncated bool
}

// pageSource abstracts page access so batching can be tested without a
// real PDF.
type pageSource interface {
	NumPage() int
	PageText(n int) (string, error)
}

// pdfSource reads pages from a ledongthuc/pdf reader.
type pdfSource struct {
	r *pdf.Reader
}

func (s pdfSource) NumPage() int { return s.r.NumPage() }

func (s pdfSource) PageText(n int) (string, error) {
	p := s.r.Page(n)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}

// Parse opens the document at path and returns its text and metadata.
// Any failure to open or read the document yields types.ErrParse.
func Parse(path string, cfg types.ParseConfig) (doc Document, err error) {
	// The PDF reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			doc = Document{}
			err = parseError(fmt.Errorf("reading %s: %v", path, r))
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return Document{}, parseError(fmt.Errorf("opening %s: %w", path, err))
	}
	defer f.Close()

	meta := readInfo(r)
	meta.Pages = r.NumPage()

	text, truncated := assemble(pdfSource{r: r}, cfg)
	return Document{Text: text, Metadata: meta, Truncated: truncated}, nil
}

// readInfo reads the document information dictionary.
func readInfo(r *pdf.Reader) types.DocumentMetadata {
	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return types.DocumentMetadata{}
	}
	field := func(key string) string {
		return cleanText(strings.TrimSpace(info.Key(key).Text()))
	}
	return types.DocumentMetadata{
		Title:        field("Title"),
		Author:       field("Author"),
		Subject:      field("Subject"),
		Keywords:     field("Keywords"),
		Creator:      field("Creator"),
		Producer:     field("Producer"),
		CreationDate: field("CreationDate"),
		ModDate:      field("ModDate"),
	}
}

// assemble reads pages in batches, prefixing each page with a separator,
// and stops once the ceiling is exceeded.
func assemble(src pageSource, cfg types.ParseConfig) (string, bool) {
	batchSize := cfg.PagesPerBatch
	if batchSize <= 0 {
		batchSize = defaultPagesPerBatch
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}

	total := src.NumPage()
	var out strings.Builder
	chars := 0

	for start := 1; start <= total; start += batchSize {
		end := min(start+batchSize-1, total)

		var batch strings.Builder
		for n := start; n <= end; n++ {
			fmt.Fprintf(&batch, "\n\n--- Page %d ---\n\n", n)
			text, err := src.PageText(n)
			if err != nil {
				// An unreadable page keeps its separator and contributes no text.
				continue
			}
			batch.WriteString(cleanText(text))
		}

		out.WriteString(batch.String())
		chars += utf8.RuneCountInString(batch.String())
		if chars > maxChars {
			break
		}
	}

	text := out.String()
	if utf8.RuneCountInString(text) > maxChars {
		return string([]rune(text)[:maxChars]) + TruncationMarker, true
	}
	return text, false
}

// cleanText drops NUL and other control characters except newlines and tabs.
func cleanText(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r == utf8.RuneError || unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func parseError(err error) error {
	return types.NewStageError(types.StageParse, types.ErrParse, err)
}
