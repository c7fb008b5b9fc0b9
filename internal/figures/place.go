// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package figures

import (
	"fmt"
	"html"
	"strings"
	"unicode"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Sections names the digest headings figures are placed under.
type Sections struct {
	// MethodDetails and Approach anchor method figures, in that order.
	MethodDetails string
	Approach      string

	// Experiments anchors experiment figures.
	Experiments string

	// Appendix is created for experiment figures when Experiments is
	// missing; OtherAppendix is created for the remaining figures when
	// Appendix is missing too.
	Appendix      string
	OtherAppendix string
}

// DefaultSections matches the headings of the built-in digest template.
var DefaultSections = Sections{
	MethodDetails: "⚙️ 方法实现细节",
	Approach:      "💡 本文方法",
	Experiments:   "📊 实验与结果",
	Appendix:      "📊 Figures & Tables",
	OtherAppendix: "📊 Other Figures",
}

// FigureHTML renders f as an HTML figure whose image lives under relDir.
func FigureHTML(f types.Figure, relDir string) string {
	return fmt.Sprintf("<figure>\n  <img src=\"%s/%s\" alt=\"%s\">\n  <figcaption>%s</figcaption>\n</figure>\n",
		relDir, f.Filename, html.EscapeString(f.Label()), html.EscapeString(f.Caption))
}

// CountFigures returns the number of <figure> elements in markdown.
func CountFigures(markdown string) int {
	return strings.Count(markdown, "<figure>")
}

// Place inserts the figures markdown does not yet reference into the
// sections their bucket maps to and returns the new markdown and the
// number placed. Method figures go at the end of the method-details
// section, else the approach section, else they join the experiment
// figures. Experiment figures go at the end of the experiments section,
// else into a new appendix. Other figures go into the appendix. Placing
// the same figures twice yields the same markdown.
func Place(markdown string, figs []types.Figure, relDir string, sections Sections) (string, int) {
	pending := Unreferenced(figs, markdown)
	if len(pending) == 0 {
		return markdown, 0
	}
	Sort(pending)

	var method, experiment, other []types.Figure
	for _, f := range pending {
		bucket := f.Bucket
		if bucket == "" {
			bucket = Classify(f)
		}
		switch bucket {
		case types.BucketMethod:
			method = append(method, f)
		case types.BucketExperiment:
			experiment = append(experiment, f)
		default:
			other = append(other, f)
		}
	}

	doc := parseOutline(markdown)

	if len(method) > 0 {
		if !doc.appendToSection(sections.MethodDetails, renderBlock(method, relDir)) &&
			!doc.appendToSection(sections.Approach, renderBlock(method, relDir)) {
			experiment = append(method, experiment...)
			Sort(experiment)
		}
	}

	if len(experiment) > 0 {
		if !doc.appendToSection(sections.Experiments, renderBlock(experiment, relDir)) {
			doc.appendSection(sections.Appendix, renderBlock(experiment, relDir))
		}
	}

	if len(other) > 0 {
		if !doc.prependToSection(sections.Appendix, renderBlock(other, relDir)) {
			doc.appendSection(sections.OtherAppendix, renderBlock(other, relDir))
		}
	}

	return doc.String(), len(pending)
}

func renderBlock(figs []types.Figure, relDir string) []string {
	var lines []string
	for _, f := range figs {
		lines = append(lines, "")
		lines = append(lines, strings.Split(strings.TrimSuffix(FigureHTML(f, relDir), "\n"), "\n")...)
	}
	return append(lines, "")
}

// outline is markdown split into lines with level-2-and-deeper headings
// located outside fenced code.
type outline struct {
	lines []string
}

func parseOutline(markdown string) *outline {
	return &outline{lines: strings.Split(markdown, "\n")}
}

func (o *outline) String() string {
	return strings.Join(o.lines, "\n")
}

// headings returns the indexes of "##" heading lines.
func (o *outline) headings() []int {
	var idx []int
	fenced := false
	for i, l := range o.lines {
		t := strings.TrimSpace(l)
		if strings.HasPrefix(t, "```") || strings.HasPrefix(t, "~~~") {
			fenced = !fenced
			continue
		}
		if !fenced && strings.HasPrefix(t, "##") {
			idx = append(idx, i)
		}
	}
	return idx
}

// find returns the heading line of the section named name and the line
// index where that section ends.
func (o *outline) find(name string) (start, end int, ok bool) {
	if name == "" {
		return 0, 0, false
	}
	want := normalizeHeading(name)
	hs := o.headings()
	for k, i := range hs {
		if !strings.HasPrefix(normalizeHeading(o.lines[i]), want) {
			continue
		}
		end = len(o.lines)
		if k+1 < len(hs) {
			end = hs[k+1]
		}
		return i, end, true
	}
	return 0, 0, false
}

func (o *outline) insert(at int, block []string) {
	lines := make([]string, 0, len(o.lines)+len(block))
	lines = append(lines, o.lines[:at]...)
	lines = append(lines, block...)
	o.lines = append(lines, o.lines[at:]...)
}

// appendToSection inserts block just before the heading that follows the
// named section.
func (o *outline) appendToSection(name string, block []string) bool {
	_, end, ok := o.find(name)
	if !ok {
		return false
	}
	for end > 0 && strings.TrimSpace(o.lines[end-1]) == "" {
		end--
	}
	o.insert(end, block)
	return true
}

// prependToSection inserts block right after the named heading.
func (o *outline) prependToSection(name string, block []string) bool {
	start, _, ok := o.find(name)
	if !ok {
		return false
	}
	o.insert(start+1, block)
	return true
}

// appendSection adds a new "## name" section, after a thematic break, at
// the end of the document.
func (o *outline) appendSection(name string, block []string) {
	for len(o.lines) > 0 && strings.TrimSpace(o.lines[len(o.lines)-1]) == "" {
		o.lines = o.lines[:len(o.lines)-1]
	}
	o.lines = append(o.lines, "", "---", "", "## "+name)
	o.lines = append(o.lines, block...)
}

// normalizeHeading strips heading markers, whitespace, and emoji variation
// selectors so anchors match however the heading was spaced.
func normalizeHeading(s string) string {
	s = strings.TrimLeft(strings.TrimSpace(s), "#")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\uFE0F', unicode.IsSpace(r):
			return -1
		}
		return r
	}, s)
}
