// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strconv"

// FigureType distinguishes figures from tables.
type FigureType string

const (
	TypeFigure FigureType = "Figure"
	TypeTable  FigureType = "Table"
)

// Bucket is the digest section a figure belongs to.
type Bucket string

const (
	BucketMethod     Bucket = "method"
	BucketExperiment Bucket = "experiment"
	BucketOther      Bucket = "other"
)

// Score is the importance score of a figure. Method and Experiment range
// over 0–4, Density over 0–2.
type Score struct {
	Method     int `json:"method" yaml:"method"`
	Experiment int `json:"experiment" yaml:"experiment"`
	Density    int `json:"density" yaml:"density"`
}

// Total returns the 0–10 importance score.
func (s Score) Total() int {
	return s.Method + s.Experiment + s.Density
}

// Figure is a visual element extracted from a document.
type Figure struct {
	Type     FigureType `json:"type" yaml:"type"`
	Number   string     `json:"number" yaml:"number"`
	Caption  string     `json:"caption" yaml:"caption"`
	Filename string     `json:"filename" yaml:"filename"`
	Page     int        `json:"page" yaml:"page"`

	// Source names the extractor that produced the figure.
	Source string `json:"source" yaml:"source"`

	Score  Score  `json:"score" yaml:"score"`
	Bucket Bucket `json:"bucket" yaml:"bucket"`
}

// Label returns "Figure 3" or "Table 1".
func (f Figure) Label() string {
	return string(f.Type) + " " + f.Number
}

// Key identifies a figure uniquely within a paper.
func (f Figure) Key() string {
	return string(f.Type) + "#" + f.Number
}

// NumericNumber returns the figure number as an int. Non-numeric numbers
// report ok=false.
func (f Figure) NumericNumber() (int, bool) {
	n, err := strconv.Atoi(f.Number)
	if err != nil {
		return 0, false
	}
	return n, true
}

// DigestDocument is the rendered digest of one paper.
type DigestDocument struct {
	Markdown string `json:"markdown" yaml:"markdown"`

	// Referenced lists the figures the digest embeds.
	Referenced []Figure `json:"referenced" yaml:"referenced"`

	// OutputPath is where the digest was written.
	OutputPath string `json:"output_path" yaml:"output_path"`

	// FallbackPlaced reports whether figures were inserted by the
	// placement engine because the generation service embedded none.
	FallbackPlaced bool `json:"fallback_placed" yaml:"fallback_placed"`
}
