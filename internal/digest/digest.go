// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package digest renders a paper record into a structured markdown digest
// with one generation call and writes it to the outputs directory.
package digest

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdiddy/paper-digest/internal/figures"
	"github.com/pdiddy/paper-digest/internal/llm"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// DefaultBodyChars bounds the document text included in the prompt.
const DefaultBodyChars = 20000

//go:embed template.md
var defaultTemplate string

// DefaultTemplate returns the built-in digest template.
func DefaultTemplate() string { return defaultTemplate }

// LoadTemplate reads a template file. An empty path returns the built-in
// template.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return defaultTemplate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading digest template: %w", err)
	}
	return string(data), nil
}

// Renderer produces digests. Template and Sections must agree on the
// section headings figures are anchored to.
type Renderer struct {
	Generator llm.Generator
	Template  string
	BodyChars int
	Rules     *figures.Rules
	Sections  figures.Sections
	Logger    *slog.Logger
}

// NewRenderer returns a Renderer configured from cfg.
func NewRenderer(gen llm.Generator, cfg types.DigestConfig, rules *figures.Rules, logger *slog.Logger) (*Renderer, error) {
	tmpl, err := LoadTemplate(cfg.TemplateFile)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		Generator: gen,
		Template:  tmpl,
		BodyChars: cfg.BodyChars,
		Rules:     rules,
		Sections:  figures.DefaultSections,
		Logger:    logger,
	}, nil
}

func (r *Renderer) bodyChars() int {
	if r.BodyChars > 0 {
		return r.BodyChars
	}
	return DefaultBodyChars
}

func (r *Renderer) threshold() int {
	if r.Rules != nil {
		return r.Rules.Threshold
	}
	return figures.DefaultThreshold
}

func (r *Renderer) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Render generates the digest of rec, embedding only eligible figures whose
// images live under relDir, and writes it to outPath. Images the reply
// cites outside eligible are removed. When the digest then embeds no figure
// although eligible ones exist, the placement engine inserts them.
func (r *Renderer) Render(ctx context.Context, rec *types.PaperRecord, eligible []types.Figure, relDir, outPath string) (types.DigestDocument, error) {
	prompt, err := r.renderPrompt(rec, eligible, relDir)
	if err != nil {
		return types.DigestDocument{}, renderError(fmt.Errorf("rendering prompt: %w", err))
	}

	reply, err := r.Generator.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		return types.DigestDocument{}, renderError(fmt.Errorf("generating digest: %w", err))
	}

	markdown := strings.TrimSpace(llm.StripFences(reply))
	if markdown == "" {
		return types.DigestDocument{}, renderError(llm.ErrEmptyResponse)
	}

	if stripped, n := figures.StripIneligible(markdown, eligible); n > 0 {
		markdown = stripped
		r.logger().Warn("digest embedded figures that are not eligible, removed them", "removed", n)
	}

	doc := types.DigestDocument{OutputPath: outPath}
	if len(eligible) > 0 && figures.CountFigures(markdown) == 0 {
		var placed int
		markdown, placed = figures.Place(markdown, eligible, relDir, r.Sections)
		doc.FallbackPlaced = placed > 0
		r.logger().Warn("digest embedded no figures, placed them automatically", "placed", placed)
	}
	markdown = strings.TrimRight(markdown, "\n") + "\n"

	doc.Markdown = markdown
	doc.Referenced = referenced(markdown, eligible)

	if err := writeFileAtomic(outPath, []byte(markdown)); err != nil {
		return types.DigestDocument{}, renderError(err)
	}

	r.logger().Info("digest written",
		"path", outPath,
		"chars", len([]rune(markdown)),
		"figures", figures.CountFigures(markdown),
		"eligible", len(eligible),
	)
	return doc, nil
}

// referenced returns the figures whose images markdown embeds.
func referenced(markdown string, figs []types.Figure) []types.Figure {
	refs := figures.ReferencedFilenames(markdown)
	var out []types.Figure
	for _, f := range figs {
		if refs[f.Filename] {
			out = append(out, f)
		}
	}
	return out
}

// writeFileAtomic writes data to a temp file next to path and renames it.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".digest-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing digest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming digest: %w", err)
	}
	return nil
}

func renderError(err error) error {
	return types.NewStageError(types.StageRender, types.ErrRender, err)
}

// abstractPatterns locate the localized abstract section of a digest.
var abstractPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)##\s*📝\s*摘要\s*\(.*?\)\s*\n+(.*?)(?:\n##|\n---|\z)`),
	regexp.MustCompile(`(?s)##\s*摘要\s*\(.*?\)\s*\n+(.*?)(?:\n##|\n---|\z)`),
	regexp.MustCompile(`(?s)##\s*📝?\s*摘要\s*\n+(.*?)(?:\n##|\n---|\z)`),
}

var (
	boldPattern   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicPattern = regexp.MustCompile(`\*(.+?)\*`)
)

// abstractLimit caps the localized abstract at the store's rich-text limit.
const abstractLimit = 2000

// LocalizedAbstract returns the abstract section of a digest with emphasis
// markers removed and whitespace collapsed. Without one it falls back to
// the first 200 characters of the digest.
func LocalizedAbstract(markdown string) string {
	for _, re := range abstractPatterns {
		m := re.FindStringSubmatch(markdown)
		if m == nil {
			continue
		}
		s := boldPattern.ReplaceAllString(m[1], "$1")
		s = italicPattern.ReplaceAllString(s, "$1")
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			continue
		}
		return truncateRunes(s, abstractLimit)
	}
	return strings.TrimSpace(strings.ReplaceAll(truncateRunes(markdown, 200), "#", ""))
}
