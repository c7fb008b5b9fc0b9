// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package figures

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/pkg/types"
)

const rel = "../documents/X/extracted_images"

const fullDigest = `# X

## 💡 本文方法

We propose X.

## ⚙️ 方法实现细节

Details.

### Training

Loss.

## 📊 实验与结果

Results.

## 🔍 局限性

None.
`

func placedFigures() []types.Figure {
	return []types.Figure{
		{Type: types.TypeTable, Number: "1", Caption: "Main comparison.", Filename: "X-Table1-1.png", Bucket: types.BucketExperiment},
		{Type: types.TypeFigure, Number: "1", Caption: "Overview.", Filename: "X-Figure1-1.png", Bucket: types.BucketMethod},
		{Type: types.TypeFigure, Number: "7", Caption: "Samples.", Filename: "X-Figure7-1.png", Bucket: types.BucketOther},
	}
}

func TestPlace(t *testing.T) {
	out, n := Place(fullDigest, placedFigures(), rel, DefaultSections)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, CountFigures(out))

	method := strings.Index(out, "X-Figure1-1.png")
	details := strings.Index(out, "## ⚙️ 方法实现细节")
	training := strings.Index(out, "### Training")
	assert.True(t, details < method && method < training, "method figure ends the method-details section before the next heading")

	table := strings.Index(out, "X-Table1-1.png")
	results := strings.Index(out, "## 📊 实验与结果")
	limits := strings.Index(out, "## 🔍 局限性")
	assert.True(t, results < table && table < limits)

	other := strings.Index(out, "X-Figure7-1.png")
	assert.Greater(t, other, limits)
	assert.Contains(t, out, "## 📊 Other Figures")

	assert.Contains(t, out, `<img src="../documents/X/extracted_images/X-Figure1-1.png" alt="Figure 1">`)
	assert.Contains(t, out, "<figcaption>Overview.</figcaption>")
}

func TestPlaceIdempotent(t *testing.T) {
	once, _ := Place(fullDigest, placedFigures(), rel, DefaultSections)
	twice, n := Place(once, placedFigures(), rel, DefaultSections)
	assert.Equal(t, 0, n)
	assert.Equal(t, once, twice)
}

func TestPlaceSkipsReferenced(t *testing.T) {
	md := fullDigest + "\n<img src=\"" + rel + "/X-Table1-1.png\">\n"
	out, n := Place(md, placedFigures(), rel, DefaultSections)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, strings.Count(out, "X-Table1-1.png"))
}

func TestPlaceApproachAnchor(t *testing.T) {
	md := "## 💡 本文方法\n\nWe propose X.\n\n## 📊 实验与结果\n\nResults.\n"
	out, _ := Place(md, placedFigures()[1:2], rel, DefaultSections)
	fig := strings.Index(out, "X-Figure1-1.png")
	assert.True(t, fig > strings.Index(out, "本文方法") && fig < strings.Index(out, "实验与结果"))
}

func TestPlaceFallbackAppendix(t *testing.T) {
	md := "# X\n\n## Summary\n\nText.\n"
	out, n := Place(md, placedFigures(), rel, DefaultSections)
	require.Equal(t, 3, n)

	assert.Contains(t, out, "\n---\n\n## 📊 Figures & Tables\n")
	assert.NotContains(t, out, "Other Figures", "other figures join the existing appendix")

	appendix := strings.Index(out, "## 📊 Figures & Tables")
	for _, name := range []string{"X-Figure1-1.png", "X-Table1-1.png", "X-Figure7-1.png"} {
		assert.Greater(t, strings.Index(out, name), appendix, name)
	}
	// Method figures without a method section sort ahead of the tables.
	assert.Less(t, strings.Index(out, "X-Figure1-1.png"), strings.Index(out, "X-Table1-1.png"))
}

func TestPlaceHeadingSpacing(t *testing.T) {
	md := "##⚙ 方法 实现细节\n\nDetails.\n"
	out, _ := Place(md, placedFigures()[1:2], rel, DefaultSections)
	assert.NotContains(t, out, "Figures & Tables", "anchor matches despite spacing and missing variation selector")
}

func TestPlaceIgnoresFencedHeadings(t *testing.T) {
	md := "## 📊 实验与结果\n\n```\n## not a heading\n```\n\nMore results.\n"
	out, _ := Place(md, placedFigures()[:1], rel, DefaultSections)
	assert.Greater(t, strings.Index(out, "X-Table1-1.png"), strings.Index(out, "More results."))
}

func TestFigureHTMLEscapes(t *testing.T) {
	f := types.Figure{Type: types.TypeFigure, Number: "3", Caption: "a < b & c", Filename: "f.png"}
	assert.Equal(t, "<figure>\n  <img src=\"r/f.png\" alt=\"Figure 3\">\n  <figcaption>a &lt; b &amp; c</figcaption>\n</figure>\n", FigureHTML(f, "r"))
}
