// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package digest

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/pdiddy/paper-digest/internal/figures"
	"github.com/pdiddy/paper-digest/pkg/types"
)

const systemPrompt = `You are an expert research-paper editor. You write complete, structured paper digests in Simplified Chinese and fill every section of the template you are given.`

var funcMap = template.FuncMap{
	"join": strings.Join,
	"orNone": func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "[无]"
		}
		return s
	},
}

var digestPromptTmpl = template.Must(template.New("digest").Funcs(funcMap).Parse(`Write a structured digest of the paper below, following the template exactly.

# Paper
- Title: {{.Record.Title}}
- Authors: {{join .Record.Authors ", "}}
- Affiliations: {{orNone .Record.Affiliations}}
- Publication date: {{orNone .Record.PublicationDate}}
- Venue: {{orNone .Record.Venue}}
- Keywords: {{join .Record.Keywords ", "}}
- Project page: {{orNone .Record.ProjectPage}}
- Other resources: {{orNone .Record.OtherResources}}
{{- if .Record.ArxivID}}
- arXiv: {{.Record.ArxivID}}
{{- end}}

# Social post (reference)
{{orNone .Social}}

# Abstract
{{orNone .Record.Abstract}}

# Full text (first {{.BodyChars}} characters, primary source)
{{orNone .Body}}
{{if .Figures}}
# Figures and tables ({{len .Figures}} selected)

Only the figures listed here may be embedded. Each one scored at least {{.Threshold}}/10 for importance.
{{range .Figures}}
[{{.Label}}]
  File: {{.Path}}
  Page: {{.Page}}
  Caption: {{.Caption}}
{{end}}
Embed a figure with exactly this HTML, next to the text that discusses it:

<figure>
  <img src="{{.RelDir}}/FILENAME" alt="TYPE NUMBER">
  <figcaption><strong>TYPE NUMBER</strong>: original English caption (中文：Chinese translation)</figcaption>
</figure>

Rules for figures:
1. Embed only figures from the list above and never use markdown image syntax.
2. Method figures belong in "{{.Sections.Approach}}" or "{{.Sections.MethodDetails}}"; result figures and tables in "{{.Sections.Experiments}}".
3. Introduce every figure with a sentence that cites it by its number, such as "如图1所示" or "表2展示了". Never write "如图所示" or "下图" without a number.
4. The number you cite must match the figure you embed.
{{end}}
# Template
{{.Template}}

# Requirements
1. Keep every section and heading of the template, in order.
2. Prefer the full text over the abstract, and the abstract over the social post.
3. Use lists and tables for key concepts; keep each section to three to five short paragraphs.
4. Mark missing information as [信息不足]; never invent data.
5. Keep proper nouns, model, dataset and metric names in their original spelling.
6. Keep the digest short enough to fit in 100 blocks (about 5,000 to 8,000 characters).

Reply with the markdown digest only.
`))

type promptFigure struct {
	types.Figure
	Path string
}

type promptData struct {
	Record    *types.PaperRecord
	Social    string
	Body      string
	BodyChars int
	Figures   []promptFigure
	Threshold int
	RelDir    string
	Sections  figures.Sections
	Template  string
}

func (r *Renderer) renderPrompt(rec *types.PaperRecord, eligible []types.Figure, relDir string) (string, error) {
	data := promptData{
		Record:    rec,
		Social:    rec.SocialText,
		Body:      truncateRunes(rec.RawText, r.bodyChars()),
		BodyChars: r.bodyChars(),
		Threshold: r.threshold(),
		RelDir:    relDir,
		Sections:  r.Sections,
		Template:  r.Template,
	}
	for _, f := range eligible {
		data.Figures = append(data.Figures, promptFigure{Figure: f, Path: relDir + "/" + f.Filename})
	}

	var buf bytes.Buffer
	if err := digestPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
