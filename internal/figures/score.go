// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package figures

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Dimension ceilings. Rule files may lower a max but never raise it.
const (
	maxMethod     = 4
	maxExperiment = 4
	maxDensity    = 2
)

// DefaultThreshold is the total score at which a figure becomes eligible.
const DefaultThreshold = 7

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rules is the figure scoring table.
type Rules struct {
	Threshold  int           `yaml:"threshold"`
	Method     DimensionRule `yaml:"method"`
	Experiment DimensionRule `yaml:"experiment"`
	Density    DensityRule   `yaml:"density"`
}

// DimensionRule scores one caption-driven dimension.
type DimensionRule struct {
	Max   int        `yaml:"max"`
	Base  BaseScores `yaml:"base"`
	Terms []TermRule `yaml:"terms"`
}

// BaseScores are awarded by figure type before any term matches.
// EarlyFigure applies to figures numbered 1 and 2.
type BaseScores struct {
	EarlyFigure int `yaml:"early_figure"`
	Figure      int `yaml:"figure"`
	Table       int `yaml:"table"`
}

// TermRule awards Score when any of Match occurs in the caption,
// case-insensitively.
type TermRule struct {
	Score int      `yaml:"score"`
	Match []string `yaml:"match"`
}

// DensityRule scores how much a figure carries, judged by caption length.
type DensityRule struct {
	Max          int `yaml:"max"`
	LongCaption  int `yaml:"long_caption"`
	ShortCaption int `yaml:"short_caption"`
	TableBonus   int `yaml:"table_bonus"`
}

// DefaultRules returns the built-in scoring table.
func DefaultRules() *Rules {
	r, err := parseRules(defaultRulesYAML, &Rules{})
	if err != nil {
		panic(fmt.Sprintf("figures: built-in rules: %v", err))
	}
	return r
}

// LoadRules reads a YAML rule file over the built-in rules. An empty path
// returns the built-in rules.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading figure rules: %w", err)
	}
	r, err := parseRules(data, DefaultRules())
	if err != nil {
		return nil, fmt.Errorf("parsing figure rules %s: %w", path, err)
	}
	return r, nil
}

func parseRules(data []byte, base *Rules) (*Rules, error) {
	if err := yaml.Unmarshal(data, base); err != nil {
		return nil, err
	}
	base.Method.Max = clamp(base.Method.Max, 0, maxMethod)
	base.Experiment.Max = clamp(base.Experiment.Max, 0, maxExperiment)
	base.Density.Max = clamp(base.Density.Max, 0, maxDensity)
	if base.Threshold <= 0 {
		base.Threshold = DefaultThreshold
	}
	return base, nil
}

// Score rates f on every dimension. Each dimension stays within its bounds.
func (r *Rules) Score(f types.Figure) types.Score {
	caption := strings.ToLower(f.Caption)
	return types.Score{
		Method:     r.Method.score(f, caption),
		Experiment: r.Experiment.score(f, caption),
		Density:    r.Density.score(f),
	}
}

// Eligible reports whether a scored figure reaches the threshold.
func (r *Rules) Eligible(f types.Figure) bool {
	return f.Score.Total() >= r.Threshold
}

// EligibleFigures returns the figures at or above the threshold, in order.
func (r *Rules) EligibleFigures(figs []types.Figure) []types.Figure {
	var out []types.Figure
	for _, f := range figs {
		if r.Eligible(f) {
			out = append(out, f)
		}
	}
	return out
}

func (d DimensionRule) score(f types.Figure, caption string) int {
	s := d.Base.forFigure(f)
	for _, t := range d.Terms {
		if t.Score > s && matchesAny(caption, t.Match) {
			s = t.Score
		}
	}
	return clamp(s, 0, d.Max)
}

func (b BaseScores) forFigure(f types.Figure) int {
	if f.Type == types.TypeTable {
		return b.Table
	}
	if n, ok := f.NumericNumber(); ok && n <= 2 {
		return b.EarlyFigure
	}
	return b.Figure
}

func (d DensityRule) score(f types.Figure) int {
	n := utf8.RuneCountInString(strings.TrimSpace(f.Caption))
	s := 0
	switch {
	case d.LongCaption > 0 && n >= d.LongCaption:
		s = 2
	case d.ShortCaption > 0 && n >= d.ShortCaption:
		s = 1
	}
	if f.Type == types.TypeTable {
		s += d.TableBonus
	}
	return clamp(s, 0, d.Max)
}

func matchesAny(caption string, terms []string) bool {
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" && strings.Contains(caption, t) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
