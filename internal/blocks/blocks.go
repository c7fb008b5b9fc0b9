// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package blocks converts a markdown digest into the block structure the
// external store persists: headings, paragraphs, lists, quotes, code,
// dividers, tables, and images with externally resolved URLs.
package blocks

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// MaxRichText is the store's limit on the characters of one rich-text value.
const MaxRichText = 2000

// ImageResolver turns a local image file into a URL the store can embed.
type ImageResolver interface {
	Resolve(ctx context.Context, localPath string) (string, error)
}

// LocateFunc maps an image reference from the digest to a local file.
// It reports false for references that are not local files.
type LocateFunc func(ref string) (string, bool)

// Result is the outcome of a conversion.
type Result struct {
	Blocks []types.Block

	// Truncated reports that blocks beyond types.MaxBlocks were dropped.
	Truncated bool

	// Images counts image blocks; Unresolved counts images that fell back
	// to a text placeholder.
	Images     int
	Unresolved int
}

// Converter converts markdown to blocks. Resolver may be nil, in which case
// every local image becomes a placeholder paragraph.
type Converter struct {
	Resolver ImageResolver
	Locate   LocateFunc
	Logger   *slog.Logger
}

var parser = goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough)).Parser()

// Convert parses markdown and returns at most types.MaxBlocks top-level
// blocks.
func (c *Converter) Convert(ctx context.Context, markdown string) Result {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	src := []byte(markdown)
	doc := parser.Parse(text.NewReader(src))

	w := &walker{ctx: ctx, c: c, src: src, logger: logger, resolved: map[string]string{}}
	var out []types.Block
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		out = append(out, w.block(n)...)
	}

	res := Result{Blocks: out, Images: w.images, Unresolved: w.unresolved}
	if len(out) > types.MaxBlocks {
		logger.Warn("digest exceeds block limit, truncating",
			"blocks", len(out), "limit", types.MaxBlocks)
		res.Blocks = out[:types.MaxBlocks]
		res.Truncated = true
	}
	return res
}

type walker struct {
	ctx        context.Context
	c          *Converter
	src        []byte
	logger     *slog.Logger
	resolved   map[string]string
	images     int
	unresolved int

	// pending collects inline images met while building rich text.
	pending []image
}

type image struct {
	src, alt, caption string
}

// block converts one block-level node.
func (w *walker) block(n ast.Node) []types.Block {
	switch n := n.(type) {
	case *ast.Heading:
		return w.withImages(types.Block{Kind: headingKind(n.Level), Text: w.inline(n)})

	case *ast.Paragraph, *ast.TextBlock:
		spans := w.inline(n)
		if isBlank(spans) {
			return w.withImages()
		}
		return w.withImages(types.Block{Kind: types.BlockParagraph, Text: spans})

	case *ast.List:
		kind := types.BlockBullet
		if n.IsOrdered() {
			kind = types.BlockNumbered
		}
		var out []types.Block
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			out = append(out, w.listItem(item, kind))
		}
		return out

	case *ast.Blockquote:
		var spans []types.Span
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			for _, b := range w.block(c) {
				if len(spans) > 0 && len(b.Text) > 0 {
					spans = append(spans, types.Span{Text: "\n"})
				}
				spans = append(spans, b.Text...)
			}
		}
		return []types.Block{{Kind: types.BlockQuote, Text: chunk(merge(spans))}}

	case *ast.FencedCodeBlock:
		return []types.Block{{
			Kind:     types.BlockCode,
			Language: string(n.Language(w.src)),
			Text:     chunk([]types.Span{{Text: strings.TrimRight(w.lines(n), "\n")}}),
		}}

	case *ast.CodeBlock:
		return []types.Block{{
			Kind: types.BlockCode,
			Text: chunk([]types.Span{{Text: strings.TrimRight(w.lines(n), "\n")}}),
		}}

	case *ast.ThematicBreak:
		return []types.Block{{Kind: types.BlockDivider}}

	case *east.Table:
		return []types.Block{w.table(n)}

	case *ast.HTMLBlock:
		raw := w.lines(n)
		if n.HasClosure() {
			raw += string(n.ClosureLine.Value(w.src))
		}
		return w.htmlBlock(raw)

	default:
		var out []types.Block
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			out = append(out, w.block(c)...)
		}
		return out
	}
}

func headingKind(level int) types.BlockKind {
	switch {
	case level <= 1:
		return types.BlockHeading1
	case level == 2:
		return types.BlockHeading2
	default:
		return types.BlockHeading3
	}
}

// listItem converts a list item: its first text block is the item text and
// everything after it becomes children.
func (w *walker) listItem(item ast.Node, kind types.BlockKind) types.Block {
	b := types.Block{Kind: kind}
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		switch c.(type) {
		case *ast.Paragraph, *ast.TextBlock:
			if b.Text == nil {
				b.Text = w.inline(c)
				b.Children = append(b.Children, w.withImages()...)
				continue
			}
		}
		b.Children = append(b.Children, w.block(c)...)
	}
	if b.Text == nil {
		b.Text = []types.Span{}
	}
	return b
}

func (w *walker) table(t *east.Table) types.Block {
	b := types.Block{Kind: types.BlockTable}
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		if _, ok := row.(*east.TableHeader); ok {
			b.HasHeader = true
		}
		var cells [][]types.Span
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, w.inline(cell))
		}
		b.Rows = append(b.Rows, cells)
	}
	w.pending = nil
	return b
}

func (w *walker) lines(n ast.Node) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(w.src))
	}
	return buf.String()
}

// htmlBlock handles raw HTML: <figure> and <img> become image blocks,
// anything else is kept as its text content.
func (w *walker) htmlBlock(raw string) []types.Block {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil
	}

	var out []types.Block
	figs := doc.Find("figure")
	figs.Each(func(_ int, fig *goquery.Selection) {
		img := fig.Find("img").First()
		out = append(out, w.image(image{
			src:     img.AttrOr("src", ""),
			alt:     img.AttrOr("alt", ""),
			caption: collapse(fig.Find("figcaption").Text()),
		}))
	})
	if figs.Length() == 0 {
		doc.Find("img").Each(func(_ int, img *goquery.Selection) {
			out = append(out, w.image(image{src: img.AttrOr("src", ""), alt: img.AttrOr("alt", "")}))
		})
	}
	if len(out) > 0 {
		return out
	}

	if s := collapse(doc.Text()); s != "" {
		return []types.Block{{Kind: types.BlockParagraph, Text: chunk([]types.Span{{Text: s}})}}
	}
	return nil
}

// withImages appends blocks for images collected from inline content.
func (w *walker) withImages(blocks ...types.Block) []types.Block {
	for _, img := range w.pending {
		blocks = append(blocks, w.image(img))
	}
	w.pending = nil
	return blocks
}

// image resolves an image into an image block, or a placeholder paragraph
// when it cannot be resolved.
func (w *walker) image(img image) types.Block {
	w.images++
	url, ok := w.resolve(img.src)
	if !ok {
		w.unresolved++
		label := img.alt
		if img.caption != "" {
			label += " — " + img.caption
		}
		return types.Block{Kind: types.BlockParagraph, Text: chunk([]types.Span{{Text: fmt.Sprintf("[Figure: %s]", label), Italic: true}})}
	}
	b := types.Block{Kind: types.BlockImage, ImageURL: url}
	if caption := firstNonEmpty(img.caption, img.alt); caption != "" {
		b.Text = chunk([]types.Span{{Text: caption}})
	}
	return b
}

func (w *walker) resolve(src string) (string, bool) {
	src = html.UnescapeString(strings.TrimSpace(src))
	if src == "" {
		return "", false
	}
	if url, ok := w.resolved[src]; ok {
		return url, url != ""
	}

	var url string
	local, isLocal := "", false
	if w.c.Locate != nil {
		local, isLocal = w.c.Locate(src)
	}
	switch {
	case isLocal && w.c.Resolver != nil:
		u, err := w.c.Resolver.Resolve(w.ctx, local)
		if err != nil {
			w.logger.Warn("image upload failed, using placeholder", "path", local, "error", err)
		} else {
			url = u
		}
	case isLocal:
		w.logger.Debug("no image host configured, using placeholder", "path", local)
	case strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://"):
		url = src
	}
	w.resolved[src] = url
	return url, url != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
