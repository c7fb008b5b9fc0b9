// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package blocks

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// inline returns the rich text of n's inline children. Images are queued
// on the walker rather than returned.
func (w *walker) inline(n ast.Node) []types.Span {
	var spans []types.Span
	w.collect(n, types.Span{}, &spans)
	return chunk(merge(spans))
}

func (w *walker) collect(n ast.Node, style types.Span, out *[]types.Span) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			s := style
			s.Text = string(c.Segment.Value(w.src))
			if c.SoftLineBreak() || c.HardLineBreak() {
				s.Text += "\n"
			}
			*out = append(*out, s)

		case *ast.String:
			s := style
			s.Text = string(c.Value)
			*out = append(*out, s)

		case *ast.Emphasis:
			s := style
			if c.Level >= 2 {
				s.Bold = true
			} else {
				s.Italic = true
			}
			w.collect(c, s, out)

		case *east.Strikethrough:
			s := style
			s.Strikethrough = true
			w.collect(c, s, out)

		case *ast.CodeSpan:
			s := style
			s.Code = true
			s.Text = plain(c, w.src)
			*out = append(*out, s)

		case *ast.Link:
			s := style
			s.Link = string(c.Destination)
			w.collect(c, s, out)

		case *ast.AutoLink:
			s := style
			s.Text = string(c.Label(w.src))
			s.Link = string(c.URL(w.src))
			*out = append(*out, s)

		case *ast.Image:
			w.pending = append(w.pending, image{
				src: string(c.Destination),
				alt: plain(c, w.src),
			})

		case *ast.RawHTML:
			// Inline tags carry no text of their own, but an <img> still
			// becomes an image block after the paragraph.
			w.pending = append(w.pending, inlineImages(rawHTML(c, w.src))...)

		default:
			w.collect(c, style, out)
		}
	}
}

// plain concatenates the text under n without formatting.
func plain(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// merge joins adjacent spans with identical formatting and trims the
// trailing line break of the run.
func merge(spans []types.Span) []types.Span {
	var out []types.Span
	for _, s := range spans {
		if s.Text == "" {
			continue
		}
		if n := len(out); n > 0 && sameStyle(out[n-1], s) {
			out[n-1].Text += s.Text
			continue
		}
		out = append(out, s)
	}
	if n := len(out); n > 0 {
		out[n-1].Text = strings.TrimRight(out[n-1].Text, "\n")
		if out[n-1].Text == "" {
			out = out[:n-1]
		}
	}
	return out
}

func sameStyle(a, b types.Span) bool {
	return a.Bold == b.Bold && a.Italic == b.Italic && a.Strikethrough == b.Strikethrough &&
		a.Code == b.Code && a.Link == b.Link
}

// chunk splits spans longer than MaxRichText runes into consecutive spans
// with the same formatting.
func chunk(spans []types.Span) []types.Span {
	var out []types.Span
	for _, s := range spans {
		r := []rune(s.Text)
		for len(r) > MaxRichText {
			part := s
			part.Text = string(r[:MaxRichText])
			out = append(out, part)
			r = r[MaxRichText:]
		}
		s.Text = string(r)
		out = append(out, s)
	}
	return out
}

func isBlank(spans []types.Span) bool {
	for _, s := range spans {
		if strings.TrimSpace(s.Text) != "" {
			return false
		}
	}
	return true
}

func rawHTML(n *ast.RawHTML, src []byte) string {
	var b strings.Builder
	for i := 0; i < n.Segments.Len(); i++ {
		seg := n.Segments.At(i)
		b.Write(seg.Value(src))
	}
	return b.String()
}

// inlineImages returns the <img> elements of an inline HTML fragment.
func inlineImages(raw string) []image {
	if !strings.Contains(strings.ToLower(raw), "<img") {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil
	}
	var out []image
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		out = append(out, image{src: img.AttrOr("src", ""), alt: img.AttrOr("alt", "")})
	})
	return out
}
